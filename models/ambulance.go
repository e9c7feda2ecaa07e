package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ambulance statuses
const (
	AmbulanceStatusOffline   = "offline"
	AmbulanceStatusAvailable = "available"
	AmbulanceStatusOnDuty    = "onDuty"
)

// Core Ambulance struct
type Ambulance struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	HospitalID    *primitive.ObjectID `json:"hospitalId,omitempty" bson:"hospitalId,omitempty"`
	Name          string              `json:"name" bson:"name"`
	VehicleNumber string              `json:"vehicleNumber" bson:"vehicleNumber"`
	DriverName    string              `json:"driverName,omitempty" bson:"driverName,omitempty"`
	DriverPhone   string              `json:"driverPhone,omitempty" bson:"driverPhone,omitempty"`
	Status        string              `json:"status" bson:"status"`
	Location      GeoPoint            `json:"location" bson:"location"`

	// Non-nil iff status is onDuty and a claim succeeded.
	AssignedEmergency *primitive.ObjectID `json:"assignedEmergency,omitempty" bson:"assignedEmergency,omitempty"`

	LastSeenAt time.Time `json:"lastSeenAt" bson:"lastSeenAt"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

func IsValidAmbulanceStatus(status string) bool {
	switch status {
	case AmbulanceStatusOffline, AmbulanceStatusAvailable, AmbulanceStatusOnDuty:
		return true
	}
	return false
}

// =================== REQUEST MODELS ===================

type RegisterAmbulanceRequest struct {
	Name          string    `json:"name" validate:"required,max=200"`
	VehicleNumber string    `json:"vehicleNumber" validate:"required,max=50"`
	HospitalID    string    `json:"hospitalId,omitempty" validate:"omitempty,len=24"`
	DriverName    string    `json:"driverName,omitempty" validate:"max=200"`
	DriverPhone   string    `json:"driverPhone,omitempty" validate:"max=30"`
	Location      []float64 `json:"location,omitempty" validate:"omitempty,len=2"`
}

type UpdateAmbulanceStatusRequest struct {
	Status string `json:"status" validate:"required,ambulance_status"`
}

type LocationReportRequest struct {
	// [longitude, latitude]
	Location []float64 `json:"location" validate:"required,len=2"`
}

// =================== RESPONSE MODELS ===================

type AmbulanceResponse struct {
	ID                string    `json:"id"`
	HospitalID        string    `json:"hospitalId,omitempty"`
	Name              string    `json:"name"`
	VehicleNumber     string    `json:"vehicleNumber"`
	DriverName        string    `json:"driverName,omitempty"`
	DriverPhone       string    `json:"driverPhone,omitempty"`
	Status            string    `json:"status"`
	Location          GeoPoint  `json:"location"`
	AssignedEmergency string    `json:"assignedEmergency,omitempty"`
	LastSeenAt        time.Time `json:"lastSeenAt"`
}

func (a *Ambulance) ToResponse() AmbulanceResponse {
	resp := AmbulanceResponse{
		ID:            a.ID.Hex(),
		Name:          a.Name,
		VehicleNumber: a.VehicleNumber,
		DriverName:    a.DriverName,
		DriverPhone:   a.DriverPhone,
		Status:        a.Status,
		Location:      a.Location,
		LastSeenAt:    a.LastSeenAt,
	}
	if a.HospitalID != nil {
		resp.HospitalID = a.HospitalID.Hex()
	}
	if a.AssignedEmergency != nil {
		resp.AssignedEmergency = a.AssignedEmergency.Hex()
	}
	return resp
}
