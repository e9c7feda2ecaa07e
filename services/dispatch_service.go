package services

import (
	"context"
	"sync"
	"time"

	"lifeline/geoindex"
	"lifeline/interfaces"
	"lifeline/models"
	"lifeline/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DispatchConfig tunes the matching engine.
type DispatchConfig struct {
	// Radius for the nearby-available-ambulance broadcast on creation.
	RadiusMeters float64

	// Upper bound on ambulances notified per emergency.
	MaxCandidates int

	// Upper bound on any single store round trip made by an interactive
	// call; on timeout the call fails closed.
	StoreTimeout time.Duration
}

func (c DispatchConfig) withDefaults() DispatchConfig {
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = 10000
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 10
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

// DispatchService is the coordinator: it owns every emergency and ambulance
// state transition, enforces exclusivity through the stores' conditional
// updates, keeps the geo indexes in sync, and drives fanout.
type DispatchService struct {
	emergencies interfaces.EmergencyStore
	ambulances  interfaces.AmbulanceStore

	emergencyIndex *geoindex.Index
	ambulanceIndex *geoindex.Index

	notifier  interfaces.Notifier
	validator *utils.ValidationService
	config    DispatchConfig

	// Per-ambulance locks so a status transition and its broadcast-group
	// membership change form one critical section.
	transitionLocks sync.Map // ambulanceID -> *sync.Mutex
}

func NewDispatchService(
	emergencies interfaces.EmergencyStore,
	ambulances interfaces.AmbulanceStore,
	emergencyIndex *geoindex.Index,
	ambulanceIndex *geoindex.Index,
	notifier interfaces.Notifier,
	config DispatchConfig,
) *DispatchService {
	return &DispatchService{
		emergencies:    emergencies,
		ambulances:     ambulances,
		emergencyIndex: emergencyIndex,
		ambulanceIndex: ambulanceIndex,
		notifier:       notifier,
		validator:      utils.NewValidationService(),
		config:         config.withDefaults(),
	}
}

func (ds *DispatchService) lockAmbulance(ambulanceID string) func() {
	v, _ := ds.transitionLocks.LoadOrStore(ambulanceID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (ds *DispatchService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ds.config.StoreTimeout)
}

// =================== EMERGENCY LIFECYCLE ===================

// CreateEmergency opens a pending emergency, indexes it, and notifies the
// nearest available ambulances.
func (ds *DispatchService) CreateEmergency(ctx context.Context, requesterID string, req models.CreateEmergencyRequest) (*models.Emergency, error) {
	if validationErrors := ds.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewValidationError(validationErrors[0].Message)
	}

	point := models.NewGeoPoint(req.Location[0], req.Location[1])
	if !point.IsValid() {
		return nil, utils.NewValidationError("location must be [longitude, latitude] within valid ranges")
	}

	requesterObjectID, err := primitive.ObjectIDFromHex(requesterID)
	if err != nil {
		return nil, utils.NewValidationError("invalid requester ID")
	}

	emergency := &models.Emergency{
		RequesterID: requesterObjectID,
		Location:    point,
		Address:     req.Address,
		Category:    req.Category,
		Notes:       req.Notes,
		Status:      models.EmergencyStatusPending,
	}

	storeCtx, cancel := ds.storeCtx(ctx)
	defer cancel()
	if err := ds.emergencies.Create(storeCtx, emergency); err != nil {
		return nil, err
	}

	emergencyID := emergency.ID.Hex()
	ds.emergencyIndex.Upsert(emergencyID, point.Latitude(), point.Longitude(), models.EmergencyStatusPending)

	targets := ds.nearbyAvailableAmbulances(point)
	ds.notifier.NotifyNewEmergency(emergency, targets)

	logrus.Infof("Emergency %s created by %s, %d ambulances notified", emergencyID, requesterID, len(targets))
	return emergency, nil
}

func (ds *DispatchService) nearbyAvailableAmbulances(point models.GeoPoint) []interfaces.AmbulanceTarget {
	matches := ds.ambulanceIndex.Nearby(point.Latitude(), point.Longitude(), ds.config.RadiusMeters, models.AmbulanceStatusAvailable)
	if len(matches) > ds.config.MaxCandidates {
		matches = matches[:ds.config.MaxCandidates]
	}

	targets := make([]interfaces.AmbulanceTarget, len(matches))
	for i, m := range matches {
		targets[i] = interfaces.AmbulanceTarget{
			AmbulanceID:    m.ID,
			DistanceMeters: m.DistanceMeters,
		}
	}
	return targets
}

// AcceptEmergency performs the exclusive claim. Among concurrent callers for
// the same emergency exactly one wins; losers learn who holds the claim.
func (ds *DispatchService) AcceptEmergency(ctx context.Context, ambulanceID, emergencyID string) (*models.Emergency, *models.Ambulance, error) {
	unlock := ds.lockAmbulance(ambulanceID)
	defer unlock()

	storeCtx, cancel := ds.storeCtx(ctx)
	defer cancel()

	ambulance, err := ds.ambulances.GetByID(storeCtx, ambulanceID)
	if err != nil {
		return nil, nil, err
	}
	if ambulance.AssignedEmergency != nil && ambulance.AssignedEmergency.Hex() == emergencyID {
		// Retry of an accept that already landed on both records.
		emergency, err := ds.emergencies.GetByID(storeCtx, emergencyID)
		if err != nil {
			return nil, nil, err
		}
		return emergency, ambulance, nil
	}
	if ambulance.Status != models.AmbulanceStatusAvailable || ambulance.AssignedEmergency != nil {
		return nil, nil, utils.NewAmbulanceBusyError()
	}

	now := time.Now()
	emergency, err := ds.emergencies.ClaimPending(storeCtx, emergencyID, ambulanceID, now)
	if err != nil {
		stale, ok := utils.AsStaleState(err)
		if !ok {
			return nil, nil, err
		}
		// A retrying winner whose ambulance-side write never landed resumes
		// at the repair step instead of losing to its own claim.
		emergency, err = ds.resumeOwnClaim(storeCtx, emergencyID, ambulanceID, stale)
		if err != nil {
			return nil, nil, err
		}
	}

	ambulance, err = ds.repairAmbulanceAssignment(storeCtx, ambulanceID, emergencyID, now)
	if err != nil {
		// The claim stands; a retried accept resumes from here.
		return nil, nil, err
	}

	ds.emergencyIndex.Remove(emergencyID)
	ds.ambulanceIndex.Upsert(ambulanceID, ambulance.Location.Latitude(), ambulance.Location.Longitude(), models.AmbulanceStatusOnDuty)
	ds.notifier.SetAmbulanceAvailability(ambulanceID, false)
	ds.notifier.NotifyAssigned(emergency, ambulance)

	logrus.Infof("Emergency %s claimed by ambulance %s", emergencyID, ambulanceID)
	return emergency, ambulance, nil
}

// resumeOwnClaim returns the emergency when the lost claim is the caller's
// own earlier claim, so the accept can resume at the ambulance-side repair.
// Any other loss is translated to the caller-facing race outcome.
func (ds *DispatchService) resumeOwnClaim(ctx context.Context, emergencyID, ambulanceID string, stale utils.StaleStateError) (*models.Emergency, error) {
	if stale.Actual == models.EmergencyStatusAssigned {
		emergency, err := ds.emergencies.GetByID(ctx, emergencyID)
		if err == nil && emergency.AssignedAmbulance != nil && emergency.AssignedAmbulance.Hex() == ambulanceID {
			return emergency, nil
		}
	}
	return nil, ds.translateClaimLoss(ctx, emergencyID, stale)
}

// translateClaimLoss turns a store-level stale state into the caller-facing
// race outcome.
func (ds *DispatchService) translateClaimLoss(ctx context.Context, emergencyID string, stale utils.StaleStateError) error {
	if stale.Actual != models.EmergencyStatusAssigned {
		return utils.NewAlreadyResolvedError(stale.Actual)
	}

	emergency, err := ds.emergencies.GetByID(ctx, emergencyID)
	if err != nil || emergency.AssignedAmbulance == nil {
		return utils.NewAlreadyClaimedError("", "")
	}

	holderID := emergency.AssignedAmbulance.Hex()
	holderName := ""
	if holder, err := ds.ambulances.GetByID(ctx, holderID); err == nil {
		holderName = holder.Name
	}
	return utils.NewAlreadyClaimedError(holderID, holderName)
}

// repairAmbulanceAssignment applies the ambulance side of a successful claim.
// The two writes are not atomic across records, so if the ambulance update
// fails the claim may briefly name an ambulance still marked available; this
// retries until the records agree.
func (ds *DispatchService) repairAmbulanceAssignment(ctx context.Context, ambulanceID, emergencyID string, at time.Time) (*models.Ambulance, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		ambulance, err := ds.ambulances.AssignToEmergency(ctx, ambulanceID, emergencyID, at)
		if err == nil {
			return ambulance, nil
		}

		if _, ok := utils.AsStaleState(err); ok {
			// Already repaired (e.g. a retried accept).
			current, getErr := ds.ambulances.GetByID(ctx, ambulanceID)
			if getErr == nil && current.Status == models.AmbulanceStatusOnDuty &&
				current.AssignedEmergency != nil && current.AssignedEmergency.Hex() == emergencyID {
				return current, nil
			}
		}

		lastErr = err
		logrus.Warnf("Ambulance %s assignment repair attempt %d failed: %v", ambulanceID, attempt+1, err)
	}

	return nil, utils.NewStoreUnavailableError("assign ambulance", lastErr)
}

// CompleteEmergency finishes an assignment. Only the assigned ambulance may
// complete it.
func (ds *DispatchService) CompleteEmergency(ctx context.Context, ambulanceID, emergencyID string) (*models.Emergency, error) {
	unlock := ds.lockAmbulance(ambulanceID)
	defer unlock()

	storeCtx, cancel := ds.storeCtx(ctx)
	defer cancel()

	emergency, err := ds.emergencies.GetByID(storeCtx, emergencyID)
	if err != nil {
		return nil, err
	}
	if emergency.Status != models.EmergencyStatusAssigned {
		return nil, utils.NewInvalidTransitionError(emergency.Status, models.EmergencyStatusCompleted)
	}
	if emergency.AssignedAmbulance == nil || emergency.AssignedAmbulance.Hex() != ambulanceID {
		return nil, utils.NewNotAuthorizedError("Emergency is not assigned to this ambulance")
	}

	now := time.Now()
	emergency, err = ds.emergencies.CompleteAssigned(storeCtx, emergencyID, ambulanceID, now)
	if err != nil {
		if stale, ok := utils.AsStaleState(err); ok {
			return nil, utils.NewInvalidTransitionError(stale.Actual, models.EmergencyStatusCompleted)
		}
		return nil, err
	}

	ambulance, err := ds.ambulances.ReleaseFromDuty(storeCtx, ambulanceID, emergencyID, now)
	if err != nil {
		// Completion stands; log and leave the ambulance to a retried
		// status call rather than failing the operation.
		logrus.Errorf("Failed to release ambulance %s after completion: %v", ambulanceID, err)
	} else {
		ds.ambulanceIndex.Upsert(ambulanceID, ambulance.Location.Latitude(), ambulance.Location.Longitude(), models.AmbulanceStatusAvailable)
		ds.notifier.SetAmbulanceAvailability(ambulanceID, true)
	}

	ds.notifier.NotifyResolved(emergency)
	logrus.Infof("Emergency %s completed by ambulance %s", emergencyID, ambulanceID)
	return emergency, nil
}

// CancelEmergency withdraws a pending emergency. Only the requester may
// cancel, and only before assignment.
func (ds *DispatchService) CancelEmergency(ctx context.Context, requesterID, emergencyID string) (*models.Emergency, error) {
	storeCtx, cancel := ds.storeCtx(ctx)
	defer cancel()

	emergency, err := ds.emergencies.GetByID(storeCtx, emergencyID)
	if err != nil {
		return nil, err
	}
	if emergency.RequesterID.Hex() != requesterID {
		return nil, utils.NewNotAuthorizedError("Only the requester may cancel this emergency")
	}

	emergency, err = ds.emergencies.CancelPending(storeCtx, emergencyID, time.Now())
	if err != nil {
		if stale, ok := utils.AsStaleState(err); ok {
			if models.IsTerminalEmergencyStatus(stale.Actual) {
				return nil, utils.NewAlreadyResolvedError(stale.Actual)
			}
			return nil, utils.NewInvalidTransitionError(stale.Actual, models.EmergencyStatusCancelled)
		}
		return nil, err
	}

	ds.emergencyIndex.Remove(emergencyID)
	ds.notifier.NotifyResolved(emergency)

	logrus.Infof("Emergency %s cancelled by requester %s", emergencyID, requesterID)
	return emergency, nil
}

// ExpireStale expires pending emergencies older than maxAge, using the same
// conditional path as acceptance so a late accept and the sweeper resolve
// their race through the store. Returns how many were expired.
func (ds *DispatchService) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	stale, err := ds.emergencies.FindPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		emergencyID := stale[i].ID.Hex()
		emergency, err := ds.emergencies.ExpirePending(ctx, emergencyID, time.Now())
		if err != nil {
			if _, ok := utils.AsStaleState(err); ok {
				// Lost to a late acceptance or cancellation.
				continue
			}
			logrus.Errorf("Failed to expire emergency %s: %v", emergencyID, err)
			continue
		}

		ds.emergencyIndex.Remove(emergencyID)
		ds.notifier.NotifyResolved(emergency)
		expired++
	}

	return expired, nil
}

// CleanupRetired deletes terminal emergencies older than the retention
// period. Open records are left alone, so the geo index never dangles: only
// pending emergencies are indexed and only terminal ones are deleted.
func (ds *DispatchService) CleanupRetired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	deleted, err := ds.emergencies.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// =================== AMBULANCE OPERATIONS ===================

// SetAmbulanceStatus applies an explicit status change and keeps index and
// broadcast-group membership in step with it.
func (ds *DispatchService) SetAmbulanceStatus(ctx context.Context, ambulanceID, newStatus string) (*models.Ambulance, error) {
	if !models.IsValidAmbulanceStatus(newStatus) {
		return nil, utils.NewValidationError("unknown ambulance status: " + newStatus)
	}

	unlock := ds.lockAmbulance(ambulanceID)
	defer unlock()

	storeCtx, cancel := ds.storeCtx(ctx)
	defer cancel()

	ambulance, err := ds.ambulances.GetByID(storeCtx, ambulanceID)
	if err != nil {
		return nil, err
	}
	if ambulance.Status == newStatus {
		return ambulance, nil
	}
	if newStatus == models.AmbulanceStatusAvailable && ambulance.AssignedEmergency != nil {
		return nil, utils.NewInvalidTransitionError(ambulance.Status, newStatus)
	}

	ambulance, err = ds.ambulances.SetStatus(storeCtx, ambulanceID, ambulance.Status, newStatus)
	if err != nil {
		if stale, ok := utils.AsStaleState(err); ok {
			return nil, utils.NewInvalidTransitionError(stale.Actual, newStatus)
		}
		return nil, err
	}

	ds.applyAmbulanceIndexState(ambulance)
	ds.notifier.SetAmbulanceAvailability(ambulanceID, newStatus == models.AmbulanceStatusAvailable)

	logrus.Infof("Ambulance %s status set to %s", ambulanceID, newStatus)
	return ambulance, nil
}

func (ds *DispatchService) applyAmbulanceIndexState(ambulance *models.Ambulance) {
	ambulanceID := ambulance.ID.Hex()
	if ambulance.Status == models.AmbulanceStatusOffline {
		ds.ambulanceIndex.Remove(ambulanceID)
		return
	}
	ds.ambulanceIndex.Upsert(ambulanceID, ambulance.Location.Latitude(), ambulance.Location.Longitude(), ambulance.Status)
}

// ReportLocation records a periodic position report from an ambulance.
func (ds *DispatchService) ReportLocation(ctx context.Context, ambulanceID string, longitude, latitude float64) error {
	point := models.NewGeoPoint(longitude, latitude)
	if !point.IsValid() {
		return utils.NewValidationError("location must be [longitude, latitude] within valid ranges")
	}

	storeCtx, cancel := ds.storeCtx(ctx)
	defer cancel()

	if err := ds.ambulances.UpdateLocation(storeCtx, ambulanceID, point, time.Now()); err != nil {
		return err
	}

	ambulance, err := ds.ambulances.GetByID(storeCtx, ambulanceID)
	if err != nil {
		return err
	}
	ds.applyAmbulanceIndexState(ambulance)

	return nil
}

// HandleAmbulanceDisconnect treats a dropped connection of an available
// ambulance as an implicit transition to offline. Busy ambulances keep
// their assignment.
func (ds *DispatchService) HandleAmbulanceDisconnect(ctx context.Context, ambulanceID string) {
	unlock := ds.lockAmbulance(ambulanceID)
	defer unlock()

	storeCtx, cancel := ds.storeCtx(ctx)
	defer cancel()

	ambulance, err := ds.ambulances.GetByID(storeCtx, ambulanceID)
	if err != nil {
		logrus.Warnf("Disconnect handling: failed to load ambulance %s: %v", ambulanceID, err)
		return
	}
	if ambulance.Status != models.AmbulanceStatusAvailable {
		return
	}

	if _, err := ds.ambulances.SetStatus(storeCtx, ambulanceID, models.AmbulanceStatusAvailable, models.AmbulanceStatusOffline); err != nil {
		logrus.Warnf("Disconnect handling: failed to offline ambulance %s: %v", ambulanceID, err)
		return
	}

	ds.ambulanceIndex.Remove(ambulanceID)
	ds.notifier.SetAmbulanceAvailability(ambulanceID, false)
	logrus.Infof("Ambulance %s marked offline after disconnect", ambulanceID)
}

// SyncAmbulanceSubscription re-derives broadcast-group membership from the
// stored status, so a reconnecting available ambulance resumes receiving
// alerts.
func (ds *DispatchService) SyncAmbulanceSubscription(ctx context.Context, ambulanceID string) {
	storeCtx, cancel := ds.storeCtx(ctx)
	defer cancel()

	ambulance, err := ds.ambulances.GetByID(storeCtx, ambulanceID)
	if err != nil {
		logrus.Warnf("Subscription sync: failed to load ambulance %s: %v", ambulanceID, err)
		return
	}

	ds.applyAmbulanceIndexState(ambulance)
	ds.notifier.SetAmbulanceAvailability(ambulanceID, ambulance.Status == models.AmbulanceStatusAvailable)
}

// =================== READS ===================

func (ds *DispatchService) GetEmergency(ctx context.Context, emergencyID string) (*models.Emergency, error) {
	return ds.emergencies.GetByID(ctx, emergencyID)
}

func (ds *DispatchService) GetAmbulance(ctx context.Context, ambulanceID string) (*models.Ambulance, error) {
	return ds.ambulances.GetByID(ctx, ambulanceID)
}

// ListNearbyPending answers the dashboard query "pending emergencies near a
// point", ranked by distance.
func (ds *DispatchService) ListNearbyPending(ctx context.Context, longitude, latitude, radiusMeters float64) ([]models.NearbyEmergency, error) {
	if !utils.IsValidCoordinate(latitude, longitude) {
		return nil, utils.NewValidationError("invalid coordinates")
	}
	if radiusMeters <= 0 {
		radiusMeters = ds.config.RadiusMeters
	}

	matches := ds.emergencyIndex.Nearby(latitude, longitude, radiusMeters, models.EmergencyStatusPending)

	results := make([]models.NearbyEmergency, 0, len(matches))
	for _, m := range matches {
		emergency, err := ds.emergencies.GetByID(ctx, m.ID)
		if err != nil {
			// Index entry outlived the record; drop it.
			ds.emergencyIndex.Remove(m.ID)
			continue
		}
		if emergency.Status != models.EmergencyStatusPending {
			ds.applyEmergencyIndexState(emergency)
			continue
		}
		results = append(results, models.NearbyEmergency{
			Emergency:      emergency.ToResponse(),
			DistanceMeters: m.DistanceMeters,
		})
	}

	return results, nil
}

func (ds *DispatchService) applyEmergencyIndexState(emergency *models.Emergency) {
	emergencyID := emergency.ID.Hex()
	if emergency.Status != models.EmergencyStatusPending {
		ds.emergencyIndex.Remove(emergencyID)
		return
	}
	ds.emergencyIndex.Upsert(emergencyID, emergency.Location.Latitude(), emergency.Location.Longitude(), emergency.Status)
}

// =================== STARTUP ===================

// RebuildIndexes repopulates both geo indexes from the stores. The indexes
// are projections; after a restart the store is the only truth.
func (ds *DispatchService) RebuildIndexes(ctx context.Context) error {
	pending, err := ds.emergencies.FindByStatus(ctx, models.EmergencyStatusPending)
	if err != nil {
		return err
	}

	emergencyEntries := make([]geoindex.Entry, 0, len(pending))
	for i := range pending {
		emergencyEntries = append(emergencyEntries, geoindex.Entry{
			ID:        pending[i].ID.Hex(),
			Latitude:  pending[i].Location.Latitude(),
			Longitude: pending[i].Location.Longitude(),
			Status:    pending[i].Status,
			UpdatedAt: pending[i].UpdatedAt,
		})
	}
	ds.emergencyIndex.Rebuild(emergencyEntries)

	var ambulanceEntries []geoindex.Entry
	for _, status := range []string{models.AmbulanceStatusAvailable, models.AmbulanceStatusOnDuty} {
		ambulances, err := ds.ambulances.FindByStatus(ctx, status)
		if err != nil {
			return err
		}
		for i := range ambulances {
			ambulanceEntries = append(ambulanceEntries, geoindex.Entry{
				ID:        ambulances[i].ID.Hex(),
				Latitude:  ambulances[i].Location.Latitude(),
				Longitude: ambulances[i].Location.Longitude(),
				Status:    ambulances[i].Status,
				UpdatedAt: ambulances[i].UpdatedAt,
			})
		}
	}
	ds.ambulanceIndex.Rebuild(ambulanceEntries)

	logrus.Infof("Rebuilt geo indexes: %d pending emergencies, %d active ambulances",
		len(emergencyEntries), len(ambulanceEntries))
	return nil
}
