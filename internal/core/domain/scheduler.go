package domain

import "time"

// Task IDs for built-in background tasks.
const (
	TaskIDSessionCleanup = "session-cleanup"
)

// ScheduledTask is a recurring background task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	// LastRun and NextRun are zero until the task is first scheduled.
	LastRun time.Time
	NextRun time.Time

	// LastError is empty after a successful run.
	LastError   string
	LastSuccess time.Time

	// ItemsProcessed is what the last run handled, e.g. sessions removed.
	ItemsProcessed int
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// TaskConfig configures one task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig holds per-task configuration.
type SchedulerConfig struct {
	// Enabled is the master switch.
	Enabled bool

	TaskConfigs map[string]TaskConfig
}

// GetTaskConfig returns the configuration for taskID, or a zero TaskConfig.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig sweeps expired sessions every ten minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDSessionCleanup: {
				Enabled:  true,
				Interval: 10 * time.Minute,
			},
		},
	}
}
