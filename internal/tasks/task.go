package tasks

import (
	"time"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/constants"
)

// Kind is the media type a task generates.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Status is the poller's view of a media task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether s is absorbing.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusTimedOut
}

// Task tracks one upstream media generation job.
type Task struct {
	ID        string
	Kind      Kind
	Status    Status
	ResultURL string
	Attempts  int
	LastError string
	StartedAt time.Time
	EndedAt   time.Time
}

// transition moves the task to a new state. Once terminal it refuses every
// further change, so a late timer or response can never produce a second result.
func (t *Task) transition(to Status, at time.Time) bool {
	if t.Status.Terminal() {
		return false
	}
	t.Status = to
	if to.Terminal() {
		t.EndedAt = at
	}
	return true
}

// Policy bounds polling for one media kind.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Ceiling is the longest a task can stay pending under p.
func (p Policy) Ceiling() time.Duration {
	return p.Interval * time.Duration(p.MaxAttempts)
}

// DefaultPolicy: image 5s × 12 attempts, video 60s × 10 attempts.
func DefaultPolicy(kind Kind) Policy {
	if kind == KindVideo {
		return Policy{Interval: constants.VideoPollInterval, MaxAttempts: constants.VideoPollMaxAttempts}
	}
	return Policy{Interval: constants.ImagePollInterval, MaxAttempts: constants.ImagePollMaxAttempts}
}

// PolicyFromConfig applies configured overrides on top of DefaultPolicy.
func PolicyFromConfig(cfg config.TasksConfig, kind Kind) Policy {
	p := DefaultPolicy(kind)
	interval, attempts := cfg.ImageIntervalSec, cfg.ImageMaxAttempts
	if kind == KindVideo {
		interval, attempts = cfg.VideoIntervalSec, cfg.VideoMaxAttempts
	}
	if interval > 0 {
		p.Interval = time.Duration(interval) * time.Second
	}
	if attempts > 0 {
		p.MaxAttempts = attempts
	}
	return p
}
