package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Emergency statuses
const (
	EmergencyStatusPending   = "pending"
	EmergencyStatusAssigned  = "assigned"
	EmergencyStatusCompleted = "completed"
	EmergencyStatusCancelled = "cancelled"
	EmergencyStatusExpired   = "expired"
)

// Core Emergency struct
type Emergency struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RequesterID primitive.ObjectID `json:"requesterId" bson:"requesterId"`
	Location    GeoPoint           `json:"location" bson:"location"`
	Address     string             `json:"address,omitempty" bson:"address,omitempty"`
	Category    string             `json:"category,omitempty" bson:"category,omitempty"`
	Notes       string             `json:"notes,omitempty" bson:"notes,omitempty"`
	Status      string             `json:"status" bson:"status"`

	// Non-nil iff status is assigned or completed. Terminal records keep it
	// for audit.
	AssignedAmbulance *primitive.ObjectID `json:"assignedAmbulance,omitempty" bson:"assignedAmbulance,omitempty"`

	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty" bson:"acceptedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	ExpiredAt   *time.Time `json:"expiredAt,omitempty" bson:"expiredAt,omitempty"`
}

// IsTerminal reports whether the emergency can no longer change state.
func (e *Emergency) IsTerminal() bool {
	return IsTerminalEmergencyStatus(e.Status)
}

func IsTerminalEmergencyStatus(status string) bool {
	switch status {
	case EmergencyStatusCompleted, EmergencyStatusCancelled, EmergencyStatusExpired:
		return true
	}
	return false
}

// CanTransitionEmergency reports whether the from -> to edge is legal.
// Legal edges: pending -> assigned|cancelled|expired, assigned -> completed.
func CanTransitionEmergency(from, to string) bool {
	switch from {
	case EmergencyStatusPending:
		return to == EmergencyStatusAssigned || to == EmergencyStatusCancelled || to == EmergencyStatusExpired
	case EmergencyStatusAssigned:
		return to == EmergencyStatusCompleted
	}
	return false
}

// =================== REQUEST MODELS ===================

type CreateEmergencyRequest struct {
	// [longitude, latitude]
	Location []float64 `json:"location" validate:"required,len=2"`
	Address  string    `json:"address,omitempty" validate:"max=500"`
	Category string    `json:"category,omitempty" validate:"omitempty,emergency_category"`
	Notes    string    `json:"notes,omitempty" validate:"max=2000"`
}

type NearbyEmergenciesRequest struct {
	Longitude    float64 `form:"longitude" validate:"min=-180,max=180"`
	Latitude     float64 `form:"latitude" validate:"min=-90,max=90"`
	RadiusMeters float64 `form:"radius" validate:"omitempty,gt=0,max=100000"`
}

// =================== RESPONSE MODELS ===================

type EmergencyResponse struct {
	ID                string     `json:"id"`
	RequesterID       string     `json:"requesterId"`
	Location          GeoPoint   `json:"location"`
	Address           string     `json:"address,omitempty"`
	Category          string     `json:"category,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Status            string     `json:"status"`
	AssignedAmbulance string     `json:"assignedAmbulance,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	AcceptedAt        *time.Time `json:"acceptedAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

func (e *Emergency) ToResponse() EmergencyResponse {
	resp := EmergencyResponse{
		ID:          e.ID.Hex(),
		RequesterID: e.RequesterID.Hex(),
		Location:    e.Location,
		Address:     e.Address,
		Category:    e.Category,
		Notes:       e.Notes,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
		AcceptedAt:  e.AcceptedAt,
		CompletedAt: e.CompletedAt,
	}
	if e.AssignedAmbulance != nil {
		resp.AssignedAmbulance = e.AssignedAmbulance.Hex()
	}
	return resp
}

type NearbyEmergency struct {
	Emergency      EmergencyResponse `json:"emergency"`
	DistanceMeters float64           `json:"distanceMeters"`
}
