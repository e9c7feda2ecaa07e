package workers

import (
	"context"
	"sync"
	"time"

	"lifeline/services"

	"github.com/sirupsen/logrus"
)

// ExpiryWorker runs the background sweeps: timing out pending emergencies
// nobody accepted, and purging resolved records past their retention window.
// A sweep failure is logged and retried on the next tick, never fatal.
type ExpiryWorker struct {
	// Dependencies
	dispatchService *services.DispatchService

	// Worker configuration
	config ExpiryWorkerConfig

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Sweep tasks
	tasks []SweepTask

	// Metrics
	stats      ExpiryWorkerStats
	statsMutex sync.RWMutex
}

type ExpiryWorkerConfig struct {
	// How long an emergency may stay pending before it is expired
	PendingTimeout time.Duration `json:"pendingTimeout"`

	// How long resolved emergencies are kept before deletion
	RetentionPeriod time.Duration `json:"retentionPeriod"`

	// Sweep intervals
	ExpirySweepInterval     time.Duration `json:"expirySweepInterval"`
	RetentionSweepInterval  time.Duration `json:"retentionSweepInterval"`

	// Feature flags
	EnableExpirySweep    bool `json:"enableExpirySweep"`
	EnableRetentionSweep bool `json:"enableRetentionSweep"`
}

type SweepTask struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Interval    time.Duration `json:"interval"`
	LastRun     time.Time     `json:"lastRun"`
	NextRun     time.Time     `json:"nextRun"`
	Enabled     bool          `json:"enabled"`
	Function    func(ctx context.Context) error
}

type ExpiryWorkerStats struct {
	TasksExecuted      int64            `json:"tasksExecuted"`
	TasksFailed        int64            `json:"tasksFailed"`
	EmergenciesExpired int64            `json:"emergenciesExpired"`
	RecordsDeleted     int64            `json:"recordsDeleted"`
	LastSweepAt        time.Time        `json:"lastSweepAt"`
	TaskExecutionTimes map[string]int64 `json:"taskExecutionTimes"` // ms
	StartTime          time.Time        `json:"startTime"`
}

func DefaultExpiryWorkerConfig() ExpiryWorkerConfig {
	return ExpiryWorkerConfig{
		PendingTimeout:  2 * time.Minute,
		RetentionPeriod: 24 * time.Hour,

		ExpirySweepInterval:    30 * time.Second,
		RetentionSweepInterval: 1 * time.Hour,

		EnableExpirySweep:    true,
		EnableRetentionSweep: true,
	}
}

func NewExpiryWorker(dispatchService *services.DispatchService, config ExpiryWorkerConfig) *ExpiryWorker {
	ctx, cancel := context.WithCancel(context.Background())

	worker := &ExpiryWorker{
		dispatchService: dispatchService,
		config:          config,
		ctx:             ctx,
		cancel:          cancel,
		stats: ExpiryWorkerStats{
			StartTime:          time.Now(),
			TaskExecutionTimes: make(map[string]int64),
		},
	}

	worker.initializeTasks()

	return worker
}

func (ew *ExpiryWorker) Start() error {
	ew.mutex.Lock()
	defer ew.mutex.Unlock()

	if ew.isRunning {
		return nil
	}

	ew.isRunning = true

	logrus.Info("Starting Expiry Worker...")

	ew.wg.Add(1)
	go ew.taskScheduler()

	logrus.Infof("Expiry Worker started with %d tasks", len(ew.tasks))
	return nil
}

func (ew *ExpiryWorker) Stop() error {
	ew.mutex.Lock()
	defer ew.mutex.Unlock()

	if !ew.isRunning {
		return nil
	}

	logrus.Info("Stopping Expiry Worker...")

	ew.cancel()
	ew.isRunning = false
	ew.wg.Wait()

	logrus.Info("Expiry Worker stopped successfully")
	return nil
}

func (ew *ExpiryWorker) initializeTasks() {
	ew.tasks = []SweepTask{
		{
			Name:        "expire_pending",
			Description: "Expire pending emergencies past the accept timeout",
			Interval:    ew.config.ExpirySweepInterval,
			Enabled:     ew.config.EnableExpirySweep,
			Function:    ew.sweepPendingEmergencies,
		},
		{
			Name:        "retention_cleanup",
			Description: "Delete resolved emergencies past the retention period",
			Interval:    ew.config.RetentionSweepInterval,
			Enabled:     ew.config.EnableRetentionSweep,
			Function:    ew.sweepRetiredEmergencies,
		},
	}

	// First runs happen one interval from now
	now := time.Now()
	for i := range ew.tasks {
		ew.tasks[i].NextRun = now.Add(ew.tasks[i].Interval)
	}
}

func (ew *ExpiryWorker) taskScheduler() {
	defer ew.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ew.executeScheduledTasks()

		case <-ew.ctx.Done():
			return
		}
	}
}

func (ew *ExpiryWorker) executeScheduledTasks() {
	now := time.Now()

	for i := range ew.tasks {
		task := &ew.tasks[i]

		if !task.Enabled || now.Before(task.NextRun) {
			continue
		}

		startTime := time.Now()
		err := task.Function(ew.ctx)
		executionTime := time.Since(startTime)

		ew.statsMutex.Lock()
		ew.stats.TaskExecutionTimes[task.Name] = executionTime.Milliseconds()
		if err != nil {
			ew.stats.TasksFailed++
			logrus.Errorf("Sweep task %s failed: %v", task.Name, err)
		} else {
			ew.stats.TasksExecuted++
		}
		ew.statsMutex.Unlock()

		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
	}
}

func (ew *ExpiryWorker) sweepPendingEmergencies(ctx context.Context) error {
	expired, err := ew.dispatchService.ExpireStale(ctx, ew.config.PendingTimeout)
	if err != nil {
		return err
	}

	ew.statsMutex.Lock()
	ew.stats.EmergenciesExpired += int64(expired)
	ew.stats.LastSweepAt = time.Now()
	ew.statsMutex.Unlock()

	if expired > 0 {
		logrus.Infof("Expired %d stale pending emergencies", expired)
	}
	return nil
}

func (ew *ExpiryWorker) sweepRetiredEmergencies(ctx context.Context) error {
	deleted, err := ew.dispatchService.CleanupRetired(ctx, ew.config.RetentionPeriod)
	if err != nil {
		return err
	}

	ew.statsMutex.Lock()
	ew.stats.RecordsDeleted += deleted
	ew.stats.LastSweepAt = time.Now()
	ew.statsMutex.Unlock()

	if deleted > 0 {
		logrus.Infof("Cleaned up %d retired emergency records", deleted)
	}
	return nil
}

func (ew *ExpiryWorker) GetStats() ExpiryWorkerStats {
	ew.statsMutex.RLock()
	defer ew.statsMutex.RUnlock()

	stats := ew.stats
	stats.TaskExecutionTimes = make(map[string]int64, len(ew.stats.TaskExecutionTimes))
	for name, ms := range ew.stats.TaskExecutionTimes {
		stats.TaskExecutionTimes[name] = ms
	}
	return stats
}

func (ew *ExpiryWorker) IsRunning() bool {
	ew.mutex.RLock()
	defer ew.mutex.RUnlock()

	return ew.isRunning
}
