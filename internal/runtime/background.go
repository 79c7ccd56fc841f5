package runtime

import (
	"context"
	"time"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/credential"
	statstracker "qwen2api-go/internal/stats"
)

// Background task names.
const (
	TaskConfigWatcher = "config-watcher"
	TaskPoolGauges    = "pool-gauges"
	TaskUsageReset    = "usage-reset"
)

// usageResetTick is how often the usage reset schedule is checked.
const usageResetTick = time.Minute

// Services are the long-lived components that own a background loop. Nil fields
// are skipped.
type Services struct {
	Config *config.Manager
	Pool   *credential.Pool
	Usage  *statstracker.UsageStats
}

// StartBackground registers the standard loops on tm.
func StartBackground(tm *TaskManager, svc Services) error {
	if svc.Config != nil && svc.Config.Path() != "" {
		if err := tm.Start(TaskConfigWatcher, "reload the config file on change", svc.Config.Watch); err != nil {
			return err
		}
	}
	if svc.Pool != nil {
		err := tm.StartPeriodic(TaskPoolGauges, "sample credential pool gauges", constants.PoolGaugeInterval, func(context.Context) error {
			svc.Pool.PublishGauges()
			return nil
		})
		if err != nil {
			return err
		}
	}
	if svc.Usage != nil {
		err := tm.Start(TaskUsageReset, "clear usage counters on schedule", func(ctx context.Context) error {
			svc.Usage.StartPeriodicReset(ctx, usageResetTick)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
