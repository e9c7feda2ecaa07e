package interfaces

import (
	"context"
	"time"

	"lifeline/models"
)

// EmergencyStore is the authoritative store for Emergency records. Every
// state transition goes through a conditional update keyed on the current
// status: among N concurrent callers expecting the same status exactly one
// succeeds, the rest get utils.StaleStateError carrying the actual status.
type EmergencyStore interface {
	Create(ctx context.Context, emergency *models.Emergency) error
	GetByID(ctx context.Context, id string) (*models.Emergency, error)

	// ClaimPending transitions pending -> assigned and records the winning
	// ambulance and acceptance time.
	ClaimPending(ctx context.Context, id, ambulanceID string, at time.Time) (*models.Emergency, error)

	// CompleteAssigned transitions assigned -> completed, conditional on the
	// assignment belonging to ambulanceID.
	CompleteAssigned(ctx context.Context, id, ambulanceID string, at time.Time) (*models.Emergency, error)

	// CancelPending transitions pending -> cancelled.
	CancelPending(ctx context.Context, id string, at time.Time) (*models.Emergency, error)

	// ExpirePending transitions pending -> expired.
	ExpirePending(ctx context.Context, id string, at time.Time) (*models.Emergency, error)

	FindByStatus(ctx context.Context, status string) ([]models.Emergency, error)
	FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Emergency, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AmbulanceStore is the authoritative store for Ambulance records, with the
// same conditional-update contract as EmergencyStore.
type AmbulanceStore interface {
	Create(ctx context.Context, ambulance *models.Ambulance) error
	GetByID(ctx context.Context, id string) (*models.Ambulance, error)

	// AssignToEmergency transitions available -> onDuty and sets the
	// assignment.
	AssignToEmergency(ctx context.Context, id, emergencyID string, at time.Time) (*models.Ambulance, error)

	// ReleaseFromDuty transitions onDuty -> available and clears the
	// assignment, conditional on the assignment matching emergencyID.
	ReleaseFromDuty(ctx context.Context, id, emergencyID string, at time.Time) (*models.Ambulance, error)

	// SetStatus transitions expectedStatus -> newStatus. Transitions to
	// available additionally require no assignment to be held.
	SetStatus(ctx context.Context, id, expectedStatus, newStatus string) (*models.Ambulance, error)

	UpdateLocation(ctx context.Context, id string, location models.GeoPoint, at time.Time) error
	FindByStatus(ctx context.Context, status string) ([]models.Ambulance, error)
}

// AmbulanceTarget identifies an ambulance picked for notification together
// with its ranked distance from the emergency.
type AmbulanceTarget struct {
	AmbulanceID    string
	DistanceMeters float64
}

// Notifier fans out dispatch transitions to subscribers. Implementations are
// best-effort: a failed or absent subscriber never fails the triggering
// operation.
type Notifier interface {
	// NotifyNewEmergency tells each target about the open emergency and
	// subscribes it to that emergency's event group.
	NotifyNewEmergency(emergency *models.Emergency, targets []AmbulanceTarget)

	// NotifyAssigned confirms the assignment to the requester and tells the
	// remaining subscribed ambulances the emergency is taken.
	NotifyAssigned(emergency *models.Emergency, ambulance *models.Ambulance)

	// NotifyResolved reports a terminal transition (completed, cancelled,
	// expired) to the requester and subscribed ambulances, then tears the
	// emergency's group down.
	NotifyResolved(emergency *models.Emergency)

	// SetAmbulanceAvailability adds or removes the ambulance from the
	// available-ambulance broadcast group. Called synchronously with the
	// status transition that caused it.
	SetAmbulanceAvailability(ambulanceID string, available bool)
}

// DispatchService is the subset of the coordinator the websocket layer
// drives directly (inbound location frames, connects, disconnects).
type DispatchService interface {
	ReportLocation(ctx context.Context, ambulanceID string, longitude, latitude float64) error
	HandleAmbulanceDisconnect(ctx context.Context, ambulanceID string)

	// SyncAmbulanceSubscription re-derives the ambulance's broadcast-group
	// membership from its stored status, for reconnects.
	SyncAmbulanceSubscription(ctx context.Context, ambulanceID string)
}
