package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"crosschain_bridge/pkg/config"
	"crosschain_bridge/pkg/data"
	"crosschain_bridge/pkg/security"
)

// TaskStatus represents the current state of a scheduled task
type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusComplete TaskStatus = "complete"
	TaskStatusFailed   TaskStatus = "failed"
)

// Task is a recurring maintenance job
type Task struct {
	ID          string
	Name        string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	Status      TaskStatus
	Error       error
	CronID      cron.EntryID
	ExecutionFn func(context.Context) error
}

// Scheduler runs the bridge's recurring maintenance jobs: reputation decay
// for inactive validators, registry persistence, and stats reporting
type Scheduler struct {
	cron       *cron.Cron
	manager    *security.BridgeSecurityManager
	repo       data.Repository
	cfg        *config.MaintConfig
	tasks      map[string]*Task
	logger     *zap.Logger
	metrics    *Metrics
	workerPool chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex
}

// Metrics tracks maintenance job executions
type Metrics struct {
	TasksScheduled int64
	TasksCompleted int64
	TasksFailed    int64
	LastUpdate     time.Time
	mu             sync.RWMutex
}

// NewScheduler creates a scheduler for the given security manager. The
// repository may be nil, in which case the sync job is not registered.
func NewScheduler(manager *security.BridgeSecurityManager, repo data.Repository, cfg *config.MaintConfig, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		manager:    manager,
		repo:       repo,
		cfg:        cfg,
		tasks:      make(map[string]*Task),
		logger:     logger,
		metrics:    &Metrics{},
		workerPool: make(chan struct{}, cfg.MaxConcurrent),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the standard maintenance jobs and begins the cron loop
func (s *Scheduler) Start() error {
	if err := s.registerMaintenanceTasks(); err != nil {
		return err
	}

	s.logger.Info("Starting maintenance scheduler",
		zap.Int("tasks", len(s.tasks)),
		zap.Int("maxConcurrent", s.cfg.MaxConcurrent))

	s.cron.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping maintenance scheduler")

	s.cancel()
	<-s.cron.Stop().Done()
	return nil
}

// ScheduleTask adds a job to the scheduler
func (s *Scheduler) ScheduleTask(task *Task) error {
	if task.ID == "" || task.Schedule == "" || task.ExecutionFn == nil {
		return fmt.Errorf("task needs an id, a schedule, and an execution function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	cronID, err := s.cron.AddFunc(task.Schedule, func() {
		s.executeTask(s.ctx, task)
	})
	if err != nil {
		return fmt.Errorf("scheduling task %s: %w", task.ID, err)
	}

	task.CronID = cronID
	task.Status = TaskStatusPending
	task.NextRun = s.cron.Entry(cronID).Next
	s.tasks[task.ID] = task

	s.metrics.mu.Lock()
	s.metrics.TasksScheduled++
	s.metrics.LastUpdate = time.Now()
	s.metrics.mu.Unlock()

	s.logger.Info("Task scheduled",
		zap.String("taskID", task.ID),
		zap.String("schedule", task.Schedule))

	return nil
}

// GetTask returns a scheduled task by id
func (s *Scheduler) GetTask(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, fmt.Errorf("task not found: %s", id)
	}
	return task, nil
}

// GetMetrics returns a snapshot of the scheduler metrics
func (s *Scheduler) GetMetrics() Metrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()

	return Metrics{
		TasksScheduled: s.metrics.TasksScheduled,
		TasksCompleted: s.metrics.TasksCompleted,
		TasksFailed:    s.metrics.TasksFailed,
		LastUpdate:     s.metrics.LastUpdate,
	}
}

// Private methods

func (s *Scheduler) registerMaintenanceTasks() error {
	if err := s.ScheduleTask(&Task{
		ID:          "reputation-decay",
		Name:        "Inactive validator reputation decay",
		Schedule:    s.cfg.DecaySchedule,
		ExecutionFn: s.runReputationDecay,
	}); err != nil {
		return err
	}

	if s.repo != nil {
		if err := s.ScheduleTask(&Task{
			ID:          "registry-sync",
			Name:        "Validator registry persistence",
			Schedule:    s.cfg.SyncSchedule,
			ExecutionFn: s.runRegistrySync,
		}); err != nil {
			return err
		}
	}

	return s.ScheduleTask(&Task{
		ID:          "stats-report",
		Name:        "Validator network stats report",
		Schedule:    s.cfg.StatsSchedule,
		ExecutionFn: s.runStatsReport,
	})
}

func (s *Scheduler) runReputationDecay(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.DecayInactivity)
	decayed := s.manager.Registry().DecayInactive(cutoff, s.cfg.DecayPenalty)
	if decayed > 0 {
		s.logger.Info("Decayed inactive validators",
			zap.Int("count", decayed),
			zap.Float64("penalty", s.cfg.DecayPenalty))
	}
	return nil
}

func (s *Scheduler) runRegistrySync(ctx context.Context) error {
	return s.manager.Registry().SyncTo(ctx, s.repo)
}

func (s *Scheduler) runStatsReport(ctx context.Context) error {
	stats := s.manager.GetValidatorStats()
	s.logger.Info("Validator network stats",
		zap.Int("activeValidators", stats.ActiveValidators),
		zap.Int64("totalValidations", stats.TotalValidations),
		zap.Int64("fraudDetections", stats.FraudDetections),
		zap.Int64("challengesRaised", stats.ChallengesRaised),
		zap.Int64("slashingEvents", stats.SlashingEvents),
		zap.Float64("averageReputation", stats.AverageReputation))
	return nil
}

func (s *Scheduler) executeTask(ctx context.Context, task *Task) {
	select {
	case s.workerPool <- struct{}{}:
		defer func() { <-s.workerPool }()
	case <-ctx.Done():
		return
	}

	s.mu.Lock()
	task.Status = TaskStatusRunning
	task.LastRun = time.Now()
	s.mu.Unlock()

	err := task.ExecutionFn(ctx)

	s.mu.Lock()
	task.Error = err
	if err != nil {
		task.Status = TaskStatusFailed
	} else {
		task.Status = TaskStatusComplete
	}
	task.NextRun = s.cron.Entry(task.CronID).Next
	s.mu.Unlock()

	s.metrics.mu.Lock()
	if err != nil {
		s.metrics.TasksFailed++
	} else {
		s.metrics.TasksCompleted++
	}
	s.metrics.LastUpdate = time.Now()
	s.metrics.mu.Unlock()

	if err != nil {
		s.logger.Error("Maintenance task failed",
			zap.String("taskID", task.ID),
			zap.Error(err))
	}
}
