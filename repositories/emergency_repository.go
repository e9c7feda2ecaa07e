package repositories

import (
	"context"
	"time"

	"lifeline/models"
	"lifeline/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EmergencyRepository struct {
	collection *mongo.Collection
}

func NewEmergencyRepository(database *mongo.Database) *EmergencyRepository {
	return &EmergencyRepository{
		collection: database.Collection("emergencies"),
	}
}

func (er *EmergencyRepository) Create(ctx context.Context, emergency *models.Emergency) error {
	emergency.ID = primitive.NewObjectID()
	emergency.CreatedAt = time.Now()
	emergency.UpdatedAt = emergency.CreatedAt

	if emergency.Status == "" {
		emergency.Status = models.EmergencyStatusPending
	}

	_, err := er.collection.InsertOne(ctx, emergency)
	if err != nil {
		logrus.Errorf("Failed to create emergency: %v", err)
		return utils.NewStoreUnavailableError("create emergency", err)
	}

	return nil
}

func (er *EmergencyRepository) GetByID(ctx context.Context, id string) (*models.Emergency, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.NewValidationError("invalid emergency ID")
	}

	var emergency models.Emergency
	err = er.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&emergency)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("Emergency")
		}
		logrus.Errorf("Failed to get emergency by ID: %v", err)
		return nil, utils.NewStoreUnavailableError("get emergency", err)
	}

	return &emergency, nil
}

// conditionalUpdate applies set iff the record's current status equals
// expectedStatus, as a single FindOneAndUpdate so the check and the write
// are atomic per document. Exactly one of N concurrent callers with the
// same expected status succeeds; losers get a StaleStateError carrying the
// status observed afterwards.
func (er *EmergencyRepository) conditionalUpdate(ctx context.Context, id, expectedStatus string, extraFilter, set bson.M) (*models.Emergency, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.NewValidationError("invalid emergency ID")
	}

	filter := bson.M{"_id": objectID, "status": expectedStatus}
	for k, v := range extraFilter {
		filter[k] = v
	}
	set["updatedAt"] = time.Now()

	var updated models.Emergency
	err = er.collection.FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)

	if err == nil {
		return &updated, nil
	}

	if err != mongo.ErrNoDocuments {
		logrus.Errorf("Conditional update failed for emergency %s: %v", id, err)
		return nil, utils.NewStoreUnavailableError("update emergency", err)
	}

	// Lost the race or the record is gone. Report the actual status so the
	// caller can translate.
	current, getErr := er.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, utils.StaleStateError{
		ID:       id,
		Expected: expectedStatus,
		Actual:   current.Status,
	}
}

func (er *EmergencyRepository) ClaimPending(ctx context.Context, id, ambulanceID string, at time.Time) (*models.Emergency, error) {
	ambObjectID, err := primitive.ObjectIDFromHex(ambulanceID)
	if err != nil {
		return nil, utils.NewValidationError("invalid ambulance ID")
	}

	return er.conditionalUpdate(ctx, id, models.EmergencyStatusPending, nil, bson.M{
		"status":            models.EmergencyStatusAssigned,
		"assignedAmbulance": ambObjectID,
		"acceptedAt":        at,
	})
}

func (er *EmergencyRepository) CompleteAssigned(ctx context.Context, id, ambulanceID string, at time.Time) (*models.Emergency, error) {
	ambObjectID, err := primitive.ObjectIDFromHex(ambulanceID)
	if err != nil {
		return nil, utils.NewValidationError("invalid ambulance ID")
	}

	return er.conditionalUpdate(ctx, id, models.EmergencyStatusAssigned,
		bson.M{"assignedAmbulance": ambObjectID},
		bson.M{
			"status":      models.EmergencyStatusCompleted,
			"completedAt": at,
		})
}

func (er *EmergencyRepository) CancelPending(ctx context.Context, id string, at time.Time) (*models.Emergency, error) {
	return er.conditionalUpdate(ctx, id, models.EmergencyStatusPending, nil, bson.M{
		"status":      models.EmergencyStatusCancelled,
		"cancelledAt": at,
	})
}

func (er *EmergencyRepository) ExpirePending(ctx context.Context, id string, at time.Time) (*models.Emergency, error) {
	return er.conditionalUpdate(ctx, id, models.EmergencyStatusPending, nil, bson.M{
		"status":    models.EmergencyStatusExpired,
		"expiredAt": at,
	})
}

func (er *EmergencyRepository) FindByStatus(ctx context.Context, status string) ([]models.Emergency, error) {
	return er.find(ctx, bson.M{"status": status})
}

func (er *EmergencyRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Emergency, error) {
	return er.find(ctx, bson.M{
		"status":    models.EmergencyStatusPending,
		"createdAt": bson.M{"$lt": cutoff},
	})
}

func (er *EmergencyRepository) find(ctx context.Context, filter bson.M) ([]models.Emergency, error) {
	cursor, err := er.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		logrus.Errorf("Failed to query emergencies: %v", err)
		return nil, utils.NewStoreUnavailableError("find emergencies", err)
	}
	defer cursor.Close(ctx)

	var emergencies []models.Emergency
	if err := cursor.All(ctx, &emergencies); err != nil {
		logrus.Errorf("Failed to decode emergencies: %v", err)
		return nil, utils.NewStoreUnavailableError("decode emergencies", err)
	}

	return emergencies, nil
}

// DeleteOlderThan removes terminal emergencies created before cutoff,
// bounding store size. Open records (pending, assigned) are never deleted
// here; the expiry sweep owns closing stale pending ones.
func (er *EmergencyRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := er.collection.DeleteMany(ctx, bson.M{
		"createdAt": bson.M{"$lt": cutoff},
		"status": bson.M{"$in": []string{
			models.EmergencyStatusCompleted,
			models.EmergencyStatusCancelled,
			models.EmergencyStatusExpired,
		}},
	})
	if err != nil {
		logrus.Errorf("Failed to delete old emergencies: %v", err)
		return 0, utils.NewStoreUnavailableError("delete emergencies", err)
	}

	return result.DeletedCount, nil
}
