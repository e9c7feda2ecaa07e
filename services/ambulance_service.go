package services

import (
	"context"

	"lifeline/interfaces"
	"lifeline/models"
	"lifeline/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AmbulanceService handles ambulance registration and reads. Dispatch-side
// transitions (status, claims, location) live on DispatchService.
type AmbulanceService struct {
	ambulances interfaces.AmbulanceStore
	validator  *utils.ValidationService
}

func NewAmbulanceService(ambulances interfaces.AmbulanceStore) *AmbulanceService {
	return &AmbulanceService{
		ambulances: ambulances,
		validator:  utils.NewValidationService(),
	}
}

// Register creates an ambulance in offline status. Approval by the operator
// happens outside this service; until a status call flips it to available
// the unit receives no dispatches.
func (as *AmbulanceService) Register(ctx context.Context, req models.RegisterAmbulanceRequest) (*models.Ambulance, error) {
	if validationErrors := as.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewValidationError(validationErrors[0].Message)
	}

	ambulance := &models.Ambulance{
		Name:          req.Name,
		VehicleNumber: req.VehicleNumber,
		DriverName:    req.DriverName,
		DriverPhone:   req.DriverPhone,
		Status:        models.AmbulanceStatusOffline,
	}

	if req.HospitalID != "" {
		hospitalObjectID, err := primitive.ObjectIDFromHex(req.HospitalID)
		if err != nil {
			return nil, utils.NewValidationError("invalid hospital ID")
		}
		ambulance.HospitalID = &hospitalObjectID
	}

	if len(req.Location) == 2 {
		point := models.NewGeoPoint(req.Location[0], req.Location[1])
		if !point.IsValid() {
			return nil, utils.NewValidationError("location must be [longitude, latitude] within valid ranges")
		}
		ambulance.Location = point
	}

	if err := as.ambulances.Create(ctx, ambulance); err != nil {
		return nil, err
	}

	logrus.Infof("Ambulance %s registered (%s)", ambulance.ID.Hex(), ambulance.VehicleNumber)
	return ambulance, nil
}

func (as *AmbulanceService) Get(ctx context.Context, ambulanceID string) (*models.Ambulance, error) {
	return as.ambulances.GetByID(ctx, ambulanceID)
}
