package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/logger"
)

// SessionCleaner removes expired sessions.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// Scheduler runs background maintenance tasks while a long-lived command
// (chat, tui, mcp) is running. Task state is kept in memory only.
type Scheduler struct {
	config   domain.SchedulerConfig
	sessions SessionCleaner
	now      func() time.Time
	tick     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	tasks   map[string]*domain.ScheduledTask
	busy    map[string]bool
	wg      sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithTickInterval sets how often due tasks are checked.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(config domain.SchedulerConfig, sessions SessionCleaner, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		config:   config,
		sessions: sessions,
		now:      time.Now,
		tick:     time.Minute,
		tasks:    make(map[string]*domain.ScheduledTask),
		busy:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initialiseTasks()
	return s
}

// initialiseTasks schedules every enabled task one interval from now, so
// short-lived commands never pay for maintenance.
func (s *Scheduler) initialiseTasks() {
	if cfg := s.config.GetTaskConfig(domain.TaskIDSessionCleanup); cfg.Enabled && cfg.Interval > 0 {
		s.tasks[domain.TaskIDSessionCleanup] = &domain.ScheduledTask{
			ID:       domain.TaskIDSessionCleanup,
			Name:     "Session Cleanup",
			Interval: cfg.Interval,
			Enabled:  true,
			NextRun:  s.now().Add(cfg.Interval),
		}
	}
}

// Start runs the scheduler loop. It blocks until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.markStopped()
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runDueTasks(ctx)
		}
	}
}

// Stop shuts the loop down and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Tasks returns a snapshot of every task, ordered by ID.
func (s *Scheduler) Tasks() []domain.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// runDueTasks starts every due task that is not already running.
func (s *Scheduler) runDueTasks(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []string
	for id, task := range s.tasks {
		if task.Due(now) && !s.busy[id] {
			s.busy[id] = true
			due = append(due, id)
		}
	}
	s.mu.Unlock()

	for _, id := range due {
		s.wg.Add(1)
		go func(id string) {
			defer s.wg.Done()
			s.runTask(ctx, id)
		}(id)
	}
}

func (s *Scheduler) runTask(ctx context.Context, id string) {
	started := s.now()

	var (
		n   int
		err error
	)
	switch id {
	case domain.TaskIDSessionCleanup:
		n, err = s.sessions.CleanupExpired(ctx)
	default:
		logger.Warn("scheduler: unknown task %s", id)
	}
	ended := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, id)

	task := s.tasks[id]
	task.LastRun = started
	task.NextRun = ended.Add(task.Interval)
	task.ItemsProcessed = n
	if err != nil {
		task.LastError = err.Error()
		logger.Warn("scheduler: %s: %v", id, err)
		return
	}
	task.LastError = ""
	task.LastSuccess = ended
	if n > 0 {
		logger.Info("scheduler: %s removed %d", id, n)
	}
}
