package tasks

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"qwen2api-go/internal/constants"
	apperrors "qwen2api-go/internal/errors"
	"qwen2api-go/internal/events"
	"qwen2api-go/internal/monitoring"
	"qwen2api-go/internal/upstream/qwen"
)

var (
	ErrTaskTimeout = apperrors.ErrTaskTimeout
	ErrTaskFailed  = apperrors.ErrTaskFailed
)

// StatusFetcher queries one task; usually a bound qwen.Client.TaskStatus.
type StatusFetcher func(ctx context.Context, taskID string) (qwen.TaskStatus, error)

// Poller turns a submitted media task into a single terminal result.
type Poller struct {
	Kind      Kind
	Policy    Policy
	Clock     Clock
	Fetch     StatusFetcher
	Publisher events.Publisher
}

func NewPoller(kind Kind, policy Policy, fetch StatusFetcher) *Poller {
	return &Poller{Kind: kind, Policy: policy, Clock: SystemClock{}, Fetch: fetch}
}

// Wait polls taskID every Policy.Interval. Each query consumes one attempt whatever
// its outcome; transport errors and non-final answers leave the task pending and
// do not reset the interval. A cancelled ctx stops polling at once and returns
// ctx.Err() with the task still pending.
func (p *Poller) Wait(ctx context.Context, taskID string) (Task, error) {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	task := Task{ID: taskID, Kind: p.Kind, Status: StatusPending, StartedAt: clock.Now()}
	entry := log.WithFields(log.Fields{"task_id": taskID, "kind": p.Kind})
	entry.WithField("max_attempts", p.Policy.MaxAttempts).Info("media task submitted, polling")

	for task.Attempts < p.Policy.MaxAttempts {
		timer := clock.NewTimer(p.Policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			entry.WithField("attempts", task.Attempts).Info("media task polling cancelled")
			return task, ctx.Err()
		case <-timer.C():
		}

		task.Attempts++
		status, err := p.query(ctx, taskID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return task, ctx.Err()
			}
			task.LastError = err.Error()
			monitoring.MediaPollAttemptsTotal.WithLabelValues(string(p.Kind), "error").Inc()
			entry.WithError(err).WithField("attempt", task.Attempts).Debug("media task status query failed")
		case status.Succeeded() && status.Content != "":
			task.ResultURL = status.Content
			monitoring.MediaPollAttemptsTotal.WithLabelValues(string(p.Kind), "succeeded").Inc()
			return p.finish(ctx, &task, StatusSucceeded, clock)
		case status.Failed():
			task.LastError = firstNonEmpty(status.Message, string(status.State))
			monitoring.MediaPollAttemptsTotal.WithLabelValues(string(p.Kind), "failed").Inc()
			return p.finish(ctx, &task, StatusFailed, clock)
		default:
			monitoring.MediaPollAttemptsTotal.WithLabelValues(string(p.Kind), "pending").Inc()
		}
	}
	return p.finish(ctx, &task, StatusTimedOut, clock)
}

func (p *Poller) query(ctx context.Context, taskID string) (qwen.TaskStatus, error) {
	qctx, cancel := context.WithTimeout(ctx, constants.UpstreamStatusTimeout)
	defer cancel()
	return p.Fetch(qctx, taskID)
}

// finish is the only place a terminal result leaves the poller.
func (p *Poller) finish(ctx context.Context, task *Task, to Status, clock Clock) (Task, error) {
	if !task.transition(to, clock.Now()) {
		return *task, fmt.Errorf("media task %s already %s", task.ID, task.Status)
	}
	monitoring.MediaTasksTotal.WithLabelValues(string(p.Kind), string(to)).Inc()
	fields := log.Fields{
		"task_id":     task.ID,
		"kind":        p.Kind,
		"status":      to,
		"attempts":    task.Attempts,
		"duration_ms": task.EndedAt.Sub(task.StartedAt).Milliseconds(),
	}
	if p.Publisher != nil {
		p.Publisher.Publish(ctx, events.TopicMediaTaskFinished, *task, map[string]string{"kind": string(p.Kind), "status": string(to)})
	}

	switch to {
	case StatusSucceeded:
		log.WithFields(fields).Info("media task succeeded")
		return *task, nil
	case StatusFailed:
		log.WithFields(fields).WithField("reason", task.LastError).Warn("media task failed")
		return *task, fmt.Errorf("media task %s: %w: %s", task.ID, ErrTaskFailed, task.LastError)
	default:
		log.WithFields(fields).Warn("media task timed out")
		return *task, fmt.Errorf("media task %s after %d attempts: %w", task.ID, task.Attempts, ErrTaskTimeout)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
