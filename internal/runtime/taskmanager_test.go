package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/credential"
	statstracker "qwen2api-go/internal/stats"
	"qwen2api-go/internal/storage"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func statusOf(t *testing.T, tm *TaskManager, name string) TaskStatus {
	t.Helper()
	task, err := tm.GetTask(name)
	require.NoError(t, err)
	return task.Status
}

func TestTaskManagerRunsToCompletion(t *testing.T) {
	tm := NewTaskManager(context.Background())
	var called atomic.Bool
	require.NoError(t, tm.Start("once", "runs once", func(context.Context) error {
		called.Store(true)
		return nil
	}))

	require.NoError(t, tm.Shutdown(context.Background()))
	assert.True(t, called.Load())
	assert.Equal(t, TaskStatusStopped, statusOf(t, tm, "once"))
}

func TestTaskManagerRejectsDuplicates(t *testing.T) {
	tm := NewTaskManager(context.Background())
	block := func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
	require.NoError(t, tm.Start("loop", "", block))
	assert.Error(t, tm.Start("loop", "", block))
	require.NoError(t, tm.Shutdown(context.Background()))

	assert.Error(t, tm.Start("late", "", block), "no tasks after shutdown")
}

func TestTaskManagerStop(t *testing.T) {
	tm := NewTaskManager(context.Background())
	require.NoError(t, tm.Start("loop", "", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	require.NoError(t, tm.Stop("loop"))
	require.Eventually(t, func() bool { return statusOf(t, tm, "loop") == TaskStatusCanceled }, waitFor, tick)
	assert.Error(t, tm.Stop("loop"))
	assert.Error(t, tm.Stop("missing"))
	require.NoError(t, tm.Shutdown(context.Background()))
}

func TestTaskManagerFailureAndPanic(t *testing.T) {
	tm := NewTaskManager(context.Background())
	require.NoError(t, tm.Start("fails", "", func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, tm.Start("panics", "", func(context.Context) error { panic("kaboom") }))
	require.NoError(t, tm.Shutdown(context.Background()))

	failed, err := tm.GetTask("fails")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Error)

	panicked, err := tm.GetTask("panics")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, panicked.Status)
	assert.Contains(t, panicked.Error, "kaboom")

	stats := tm.GetStats()
	assert.Equal(t, TaskStats{Total: 2, Failed: 2}, stats)
}

func TestTaskManagerShutdownDeadline(t *testing.T) {
	tm := NewTaskManager(context.Background())
	release := make(chan struct{})
	require.NoError(t, tm.Start("stubborn", "", func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, tm.Shutdown(ctx))

	close(release)
	require.NoError(t, tm.Shutdown(context.Background()))
}

func TestStartPeriodic(t *testing.T) {
	tm := NewTaskManager(context.Background())
	var runs atomic.Int32
	require.NoError(t, tm.StartPeriodic("tick", "", 5*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	}))

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, waitFor, tick)
	require.NoError(t, tm.Shutdown(context.Background()))
	assert.Equal(t, TaskStatusCanceled, statusOf(t, tm, "tick"))

	assert.Error(t, tm.StartPeriodic("bad", "", 0, func(context.Context) error { return nil }))
}

func TestListTasksSorted(t *testing.T) {
	tm := NewTaskManager(context.Background())
	for _, name := range []string{"b", "c", "a"} {
		require.NoError(t, tm.Start(name, "", func(context.Context) error { return nil }))
	}
	require.NoError(t, tm.Shutdown(context.Background()))

	var names []string
	for _, task := range tm.ListTasks() {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestStartBackground(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream:\n  output_think: true\n"), 0o600))

	tm := NewTaskManager(context.Background())
	err := StartBackground(tm, Services{
		Config: config.NewManager(path, config.Defaults()),
		Pool:   credential.NewPool([]string{"tok-a"}),
		Usage:  statstracker.NewUsageStats(storage.NewMemoryBackend(), time.Hour),
	})
	require.NoError(t, err)

	var names []string
	for _, task := range tm.ListTasks() {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{TaskConfigWatcher, TaskPoolGauges, TaskUsageReset}, names)

	require.NoError(t, tm.Shutdown(context.Background()))
	for _, name := range names {
		assert.NotEqual(t, TaskStatusRunning, statusOf(t, tm, name), name)
	}
}

func TestStartBackgroundSkipsMissingServices(t *testing.T) {
	tm := NewTaskManager(context.Background())
	require.NoError(t, StartBackground(tm, Services{Config: config.NewStatic(config.Defaults())}))
	assert.Empty(t, tm.ListTasks())
	require.NoError(t, tm.Shutdown(context.Background()))
}
