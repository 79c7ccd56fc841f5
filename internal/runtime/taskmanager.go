package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task is a snapshot of one background loop.
type Task struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	Status      TaskStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusStopped  TaskStatus = "stopped"
	TaskStatusFailed   TaskStatus = "failed"
	TaskStatusCanceled TaskStatus = "canceled"
)

// TaskFunc runs until ctx is done or its work is finished.
type TaskFunc func(ctx context.Context) error

type task struct {
	Task
	cancel context.CancelFunc
}

// TaskManager owns the process's background loops and stops them together on shutdown.
type TaskManager struct {
	tasks  map[string]*task
	mu     sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTaskManager creates a new task manager
func NewTaskManager(ctx context.Context) *TaskManager {
	ctx, cancel := context.WithCancel(ctx)
	return &TaskManager{
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs fn on its own goroutine. Names are unique for the manager's lifetime.
func (tm *TaskManager) Start(name, description string, fn TaskFunc) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.ctx.Err() != nil {
		return fmt.Errorf("task manager is shut down")
	}
	if _, exists := tm.tasks[name]; exists {
		return fmt.Errorf("task %s already exists", name)
	}

	taskCtx, taskCancel := context.WithCancel(tm.ctx)
	t := &task{
		Task: Task{
			Name:        name,
			Description: description,
			StartTime:   time.Now(),
			Status:      TaskStatusRunning,
		},
		cancel: taskCancel,
	}
	tm.tasks[name] = t

	tm.wg.Add(1)
	go tm.run(taskCtx, t, fn)
	return nil
}

func (tm *TaskManager) run(ctx context.Context, t *task, fn TaskFunc) {
	defer tm.wg.Done()
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"task": t.Name, "panic": r}).Error("task panicked")
			tm.finish(t, TaskStatusFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	entry := log.WithField("task", t.Name)
	entry.WithField("description", t.Description).Debug("task started")

	err := fn(ctx)
	switch {
	case err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil:
		tm.finish(t, TaskStatusCanceled, nil)
	case err != nil:
		entry.WithError(err).Error("task failed")
		tm.finish(t, TaskStatusFailed, err)
	default:
		entry.Debug("task stopped")
		tm.finish(t, TaskStatusStopped, nil)
	}
}

func (tm *TaskManager) finish(t *task, status TaskStatus, err error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if t.Status != TaskStatusRunning {
		return
	}
	t.Status = status
	if err != nil {
		t.Error = err.Error()
	}
}

// Stop cancels one running task.
func (tm *TaskManager) Stop(name string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t, exists := tm.tasks[name]
	if !exists {
		return fmt.Errorf("task %s not found", name)
	}
	if t.Status != TaskStatusRunning {
		return fmt.Errorf("task %s is not running", name)
	}
	t.cancel()
	return nil
}

// Shutdown cancels every task and waits for them until ctx expires.
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.cancel()
	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}

// GetTask returns a snapshot of one task.
func (tm *TaskManager) GetTask(name string) (Task, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	t, exists := tm.tasks[name]
	if !exists {
		return Task{}, fmt.Errorf("task %s not found", name)
	}
	return t.Task, nil
}

// ListTasks returns snapshots sorted by name.
func (tm *TaskManager) ListTasks() []Task {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	out := make([]Task, 0, len(tm.tasks))
	for _, t := range tm.tasks {
		out = append(out, t.Task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TaskStats contains statistics about tasks
type TaskStats struct {
	Total    int `json:"total"`
	Running  int `json:"running"`
	Stopped  int `json:"stopped"`
	Failed   int `json:"failed"`
	Canceled int `json:"canceled"`
}

func (tm *TaskManager) GetStats() TaskStats {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	stats := TaskStats{Total: len(tm.tasks)}
	for _, t := range tm.tasks {
		switch t.Status {
		case TaskStatusRunning:
			stats.Running++
		case TaskStatusStopped:
			stats.Stopped++
		case TaskStatusFailed:
			stats.Failed++
		case TaskStatusCanceled:
			stats.Canceled++
		}
	}
	return stats
}

// StartPeriodic runs fn now and then every interval. A failing run is logged and
// does not end the loop.
func (tm *TaskManager) StartPeriodic(name, description string, interval time.Duration, fn TaskFunc) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", name)
	}
	return tm.Start(name, description, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				log.WithFields(log.Fields{"task": name}).WithError(err).Warn("periodic task run failed")
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
