package services

import (
	"context"
	"sync"
	"time"

	"lifeline/interfaces"
	"lifeline/models"
	"lifeline/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory stores with the same conditional-update contract as the mongo
// repositories: transitions are atomic per record and losers get a
// StaleStateError carrying the observed status.

type fakeEmergencyStore struct {
	mu      sync.Mutex
	records map[string]*models.Emergency
}

func newFakeEmergencyStore() *fakeEmergencyStore {
	return &fakeEmergencyStore{records: make(map[string]*models.Emergency)}
}

func (s *fakeEmergencyStore) Create(ctx context.Context, emergency *models.Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emergency.ID = primitive.NewObjectID()
	emergency.CreatedAt = time.Now()
	emergency.UpdatedAt = emergency.CreatedAt
	if emergency.Status == "" {
		emergency.Status = models.EmergencyStatusPending
	}

	copied := *emergency
	s.records[emergency.ID.Hex()] = &copied
	return nil
}

func (s *fakeEmergencyStore) GetByID(ctx context.Context, id string) (*models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *fakeEmergencyStore) getLocked(id string) (*models.Emergency, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, utils.NewNotFoundError("Emergency")
	}
	copied := *record
	return &copied, nil
}

// transition applies mutate iff the record's status equals expected.
func (s *fakeEmergencyStore) transition(id, expected string, mutate func(*models.Emergency) error) (*models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, utils.NewNotFoundError("Emergency")
	}
	if record.Status != expected {
		return nil, utils.StaleStateError{ID: id, Expected: expected, Actual: record.Status}
	}
	if err := mutate(record); err != nil {
		return nil, err
	}
	record.UpdatedAt = time.Now()

	copied := *record
	return &copied, nil
}

func (s *fakeEmergencyStore) ClaimPending(ctx context.Context, id, ambulanceID string, at time.Time) (*models.Emergency, error) {
	ambObjectID, err := primitive.ObjectIDFromHex(ambulanceID)
	if err != nil {
		return nil, utils.NewValidationError("invalid ambulance ID")
	}
	return s.transition(id, models.EmergencyStatusPending, func(e *models.Emergency) error {
		e.Status = models.EmergencyStatusAssigned
		e.AssignedAmbulance = &ambObjectID
		e.AcceptedAt = &at
		return nil
	})
}

func (s *fakeEmergencyStore) CompleteAssigned(ctx context.Context, id, ambulanceID string, at time.Time) (*models.Emergency, error) {
	return s.transition(id, models.EmergencyStatusAssigned, func(e *models.Emergency) error {
		if e.AssignedAmbulance == nil || e.AssignedAmbulance.Hex() != ambulanceID {
			return utils.StaleStateError{ID: id, Expected: models.EmergencyStatusAssigned, Actual: e.Status}
		}
		e.Status = models.EmergencyStatusCompleted
		e.CompletedAt = &at
		return nil
	})
}

func (s *fakeEmergencyStore) CancelPending(ctx context.Context, id string, at time.Time) (*models.Emergency, error) {
	return s.transition(id, models.EmergencyStatusPending, func(e *models.Emergency) error {
		e.Status = models.EmergencyStatusCancelled
		e.CancelledAt = &at
		return nil
	})
}

func (s *fakeEmergencyStore) ExpirePending(ctx context.Context, id string, at time.Time) (*models.Emergency, error) {
	return s.transition(id, models.EmergencyStatusPending, func(e *models.Emergency) error {
		e.Status = models.EmergencyStatusExpired
		e.ExpiredAt = &at
		return nil
	})
}

func (s *fakeEmergencyStore) FindByStatus(ctx context.Context, status string) ([]models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []models.Emergency
	for _, record := range s.records {
		if record.Status == status {
			found = append(found, *record)
		}
	}
	return found, nil
}

func (s *fakeEmergencyStore) FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []models.Emergency
	for _, record := range s.records {
		if record.Status == models.EmergencyStatusPending && record.CreatedAt.Before(cutoff) {
			found = append(found, *record)
		}
	}
	return found, nil
}

func (s *fakeEmergencyStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if record.CreatedAt.Before(cutoff) && models.IsTerminalEmergencyStatus(record.Status) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// setCreatedAt backdates a record, for sweep tests.
func (s *fakeEmergencyStore) setCreatedAt(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[id]; ok {
		record.CreatedAt = at
	}
}

type fakeAmbulanceStore struct {
	mu      sync.Mutex
	records map[string]*models.Ambulance

	// Errors returned by AssignToEmergency before the real transition runs,
	// consumed one per call.
	assignFailures []error
}

func newFakeAmbulanceStore() *fakeAmbulanceStore {
	return &fakeAmbulanceStore{records: make(map[string]*models.Ambulance)}
}

func (s *fakeAmbulanceStore) Create(ctx context.Context, ambulance *models.Ambulance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ambulance.ID = primitive.NewObjectID()
	ambulance.CreatedAt = time.Now()
	ambulance.UpdatedAt = ambulance.CreatedAt
	if ambulance.Status == "" {
		ambulance.Status = models.AmbulanceStatusOffline
	}

	copied := *ambulance
	s.records[ambulance.ID.Hex()] = &copied
	return nil
}

func (s *fakeAmbulanceStore) GetByID(ctx context.Context, id string) (*models.Ambulance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, utils.NewNotFoundError("Ambulance")
	}
	copied := *record
	return &copied, nil
}

func (s *fakeAmbulanceStore) transition(id, expected string, mutate func(*models.Ambulance) error) (*models.Ambulance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, utils.NewNotFoundError("Ambulance")
	}
	if record.Status != expected {
		return nil, utils.StaleStateError{ID: id, Expected: expected, Actual: record.Status}
	}
	if err := mutate(record); err != nil {
		return nil, err
	}
	record.UpdatedAt = time.Now()

	copied := *record
	return &copied, nil
}

func (s *fakeAmbulanceStore) AssignToEmergency(ctx context.Context, id, emergencyID string, at time.Time) (*models.Ambulance, error) {
	s.mu.Lock()
	if len(s.assignFailures) > 0 {
		failure := s.assignFailures[0]
		s.assignFailures = s.assignFailures[1:]
		s.mu.Unlock()
		return nil, failure
	}
	s.mu.Unlock()

	emergencyObjectID, err := primitive.ObjectIDFromHex(emergencyID)
	if err != nil {
		return nil, utils.NewValidationError("invalid emergency ID")
	}
	return s.transition(id, models.AmbulanceStatusAvailable, func(a *models.Ambulance) error {
		if a.AssignedEmergency != nil {
			return utils.StaleStateError{ID: id, Expected: models.AmbulanceStatusAvailable, Actual: a.Status}
		}
		a.Status = models.AmbulanceStatusOnDuty
		a.AssignedEmergency = &emergencyObjectID
		return nil
	})
}

func (s *fakeAmbulanceStore) ReleaseFromDuty(ctx context.Context, id, emergencyID string, at time.Time) (*models.Ambulance, error) {
	return s.transition(id, models.AmbulanceStatusOnDuty, func(a *models.Ambulance) error {
		if a.AssignedEmergency == nil || a.AssignedEmergency.Hex() != emergencyID {
			return utils.StaleStateError{ID: id, Expected: models.AmbulanceStatusOnDuty, Actual: a.Status}
		}
		a.Status = models.AmbulanceStatusAvailable
		a.AssignedEmergency = nil
		return nil
	})
}

func (s *fakeAmbulanceStore) SetStatus(ctx context.Context, id, expectedStatus, newStatus string) (*models.Ambulance, error) {
	return s.transition(id, expectedStatus, func(a *models.Ambulance) error {
		if newStatus == models.AmbulanceStatusAvailable && a.AssignedEmergency != nil {
			return utils.StaleStateError{ID: id, Expected: expectedStatus, Actual: a.Status}
		}
		a.Status = newStatus
		return nil
	})
}

func (s *fakeAmbulanceStore) UpdateLocation(ctx context.Context, id string, location models.GeoPoint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return utils.NewNotFoundError("Ambulance")
	}
	record.Location = location
	record.LastSeenAt = at
	record.UpdatedAt = at
	return nil
}

func (s *fakeAmbulanceStore) FindByStatus(ctx context.Context, status string) ([]models.Ambulance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []models.Ambulance
	for _, record := range s.records {
		if record.Status == status {
			found = append(found, *record)
		}
	}
	return found, nil
}

// fakeNotifier records fanout calls.
type fakeNotifier struct {
	mu sync.Mutex

	newEmergencies map[string][]interfaces.AmbulanceTarget
	assigned       []string // emergency ids in call order
	resolved       []string // "<emergencyID>:<status>"
	availability   map[string]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		newEmergencies: make(map[string][]interfaces.AmbulanceTarget),
		availability:   make(map[string]bool),
	}
}

func (n *fakeNotifier) NotifyNewEmergency(emergency *models.Emergency, targets []interfaces.AmbulanceTarget) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newEmergencies[emergency.ID.Hex()] = append([]interfaces.AmbulanceTarget(nil), targets...)
}

func (n *fakeNotifier) NotifyAssigned(emergency *models.Emergency, ambulance *models.Ambulance) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, emergency.ID.Hex())
}

func (n *fakeNotifier) NotifyResolved(emergency *models.Emergency) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, emergency.ID.Hex()+":"+emergency.Status)
}

func (n *fakeNotifier) SetAmbulanceAvailability(ambulanceID string, available bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.availability[ambulanceID] = available
}

func (n *fakeNotifier) targetsFor(emergencyID string) []interfaces.AmbulanceTarget {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.newEmergencies[emergencyID]
}

func (n *fakeNotifier) isAvailable(ambulanceID string) (bool, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	available, seen := n.availability[ambulanceID]
	return available, seen
}

func (n *fakeNotifier) resolvedEvents() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.resolved...)
}
