// models/websocket.go
package models

import (
	"time"
)

// WebSocket message types
const (
	WSTypeNewEmergency       = "new_emergency"
	WSTypeEmergencyTaken     = "emergency_taken"
	WSTypeAssignmentConfirm  = "assignment_confirmed"
	WSTypeEmergencyCompleted = "emergency_completed"
	WSTypeEmergencyCancelled = "emergency_cancelled"
	WSTypeEmergencyExpired   = "emergency_expired"
	WSTypeAmbulanceStatus    = "ambulance_status"
	WSTypeLocationReport     = "location_report"
	WSTypeError              = "error"
	WSTypePong               = "pong"
)

type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
}

// Broadcast to available ambulances when a new emergency opens.
type WSNewEmergency struct {
	EmergencyID    string    `json:"emergencyId"`
	Location       GeoPoint  `json:"location"`
	Address        string    `json:"address,omitempty"`
	Category       string    `json:"category,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	DistanceMeters float64   `json:"distanceMeters"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Sent to ambulances that were notified of an emergency another unit claimed.
type WSEmergencyTaken struct {
	EmergencyID   string    `json:"emergencyId"`
	AmbulanceID   string    `json:"ambulanceId"`
	AmbulanceName string    `json:"ambulanceName,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Sent to the requester once a claim succeeds.
type WSAssignmentConfirmed struct {
	EmergencyID   string    `json:"emergencyId"`
	AmbulanceID   string    `json:"ambulanceId"`
	AmbulanceName string    `json:"ambulanceName"`
	VehicleNumber string    `json:"vehicleNumber,omitempty"`
	DriverName    string    `json:"driverName,omitempty"`
	DriverPhone   string    `json:"driverPhone,omitempty"`
	AcceptedAt    time.Time `json:"acceptedAt"`
}

type WSEmergencyLifecycle struct {
	EmergencyID string    `json:"emergencyId"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

type WSAmbulanceStatus struct {
	AmbulanceID string    `json:"ambulanceId"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

// Inbound frame: an ambulance client reporting its position.
type WSLocationReport struct {
	Location []float64 `json:"location"`
}

type WSHubStats struct {
	TotalConnections  int           `json:"totalConnections"`
	ActiveConnections int           `json:"activeConnections"`
	ActiveRooms       int           `json:"activeRooms"`
	MessagesSent      int64         `json:"messagesSent"`
	MessagesDropped   int64         `json:"messagesDropped"`
	Uptime            time.Duration `json:"uptime"`
	LastUpdate        time.Time     `json:"lastUpdate"`
}
