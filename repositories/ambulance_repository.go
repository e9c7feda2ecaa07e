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

type AmbulanceRepository struct {
	collection *mongo.Collection
}

func NewAmbulanceRepository(database *mongo.Database) *AmbulanceRepository {
	return &AmbulanceRepository{
		collection: database.Collection("ambulances"),
	}
}

func (ar *AmbulanceRepository) Create(ctx context.Context, ambulance *models.Ambulance) error {
	ambulance.ID = primitive.NewObjectID()
	ambulance.CreatedAt = time.Now()
	ambulance.UpdatedAt = ambulance.CreatedAt
	ambulance.LastSeenAt = ambulance.CreatedAt

	if ambulance.Status == "" {
		ambulance.Status = models.AmbulanceStatusOffline
	}

	_, err := ar.collection.InsertOne(ctx, ambulance)
	if err != nil {
		logrus.Errorf("Failed to create ambulance: %v", err)
		return utils.NewStoreUnavailableError("create ambulance", err)
	}

	return nil
}

func (ar *AmbulanceRepository) GetByID(ctx context.Context, id string) (*models.Ambulance, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.NewValidationError("invalid ambulance ID")
	}

	var ambulance models.Ambulance
	err = ar.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&ambulance)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("Ambulance")
		}
		logrus.Errorf("Failed to get ambulance by ID: %v", err)
		return nil, utils.NewStoreUnavailableError("get ambulance", err)
	}

	return &ambulance, nil
}

// conditionalUpdate mirrors the emergency repository's compare-and-swap:
// one FindOneAndUpdate keyed on current status, StaleStateError for losers.
func (ar *AmbulanceRepository) conditionalUpdate(ctx context.Context, id, expectedStatus string, extraFilter, set bson.M, unset bson.M) (*models.Ambulance, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.NewValidationError("invalid ambulance ID")
	}

	filter := bson.M{"_id": objectID, "status": expectedStatus}
	for k, v := range extraFilter {
		filter[k] = v
	}
	set["updatedAt"] = time.Now()

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var updated models.Ambulance
	err = ar.collection.FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)

	if err == nil {
		return &updated, nil
	}

	if err != mongo.ErrNoDocuments {
		logrus.Errorf("Conditional update failed for ambulance %s: %v", id, err)
		return nil, utils.NewStoreUnavailableError("update ambulance", err)
	}

	current, getErr := ar.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, utils.StaleStateError{
		ID:       id,
		Expected: expectedStatus,
		Actual:   current.Status,
	}
}

func (ar *AmbulanceRepository) AssignToEmergency(ctx context.Context, id, emergencyID string, at time.Time) (*models.Ambulance, error) {
	emObjectID, err := primitive.ObjectIDFromHex(emergencyID)
	if err != nil {
		return nil, utils.NewValidationError("invalid emergency ID")
	}

	return ar.conditionalUpdate(ctx, id, models.AmbulanceStatusAvailable,
		bson.M{"assignedEmergency": nil},
		bson.M{
			"status":            models.AmbulanceStatusOnDuty,
			"assignedEmergency": emObjectID,
			"lastSeenAt":        at,
		}, nil)
}

func (ar *AmbulanceRepository) ReleaseFromDuty(ctx context.Context, id, emergencyID string, at time.Time) (*models.Ambulance, error) {
	emObjectID, err := primitive.ObjectIDFromHex(emergencyID)
	if err != nil {
		return nil, utils.NewValidationError("invalid emergency ID")
	}

	return ar.conditionalUpdate(ctx, id, models.AmbulanceStatusOnDuty,
		bson.M{"assignedEmergency": emObjectID},
		bson.M{
			"status":     models.AmbulanceStatusAvailable,
			"lastSeenAt": at,
		},
		bson.M{"assignedEmergency": ""})
}

func (ar *AmbulanceRepository) SetStatus(ctx context.Context, id, expectedStatus, newStatus string) (*models.Ambulance, error) {
	extraFilter := bson.M{}
	if newStatus == models.AmbulanceStatusAvailable {
		// Cannot become available while holding an assignment.
		extraFilter["assignedEmergency"] = nil
	}

	return ar.conditionalUpdate(ctx, id, expectedStatus, extraFilter, bson.M{
		"status":     newStatus,
		"lastSeenAt": time.Now(),
	}, nil)
}

func (ar *AmbulanceRepository) UpdateLocation(ctx context.Context, id string, location models.GeoPoint, at time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return utils.NewValidationError("invalid ambulance ID")
	}

	result, err := ar.collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{
		"$set": bson.M{
			"location":   location,
			"lastSeenAt": at,
			"updatedAt":  time.Now(),
		},
	})
	if err != nil {
		logrus.Errorf("Failed to update ambulance location: %v", err)
		return utils.NewStoreUnavailableError("update ambulance location", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("Ambulance")
	}

	return nil
}

func (ar *AmbulanceRepository) FindByStatus(ctx context.Context, status string) ([]models.Ambulance, error) {
	cursor, err := ar.collection.Find(ctx, bson.M{"status": status})
	if err != nil {
		logrus.Errorf("Failed to query ambulances: %v", err)
		return nil, utils.NewStoreUnavailableError("find ambulances", err)
	}
	defer cursor.Close(ctx)

	var ambulances []models.Ambulance
	if err := cursor.All(ctx, &ambulances); err != nil {
		logrus.Errorf("Failed to decode ambulances: %v", err)
		return nil, utils.NewStoreUnavailableError("decode ambulances", err)
	}

	return ambulances, nil
}
