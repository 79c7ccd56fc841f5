package stats

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"qwen2api-go/internal/events"
	"qwen2api-go/internal/models"
	"qwen2api-go/internal/storage"
)

// UsageStats tracks request outcomes per model and per pooled account.
type UsageStats struct {
	backend       storage.Backend
	mu            sync.Mutex
	resetInterval time.Duration
	nextReset     time.Time
	now           func() time.Time
}

const (
	aggregateTotalKey      = "__system__/total"
	aggregateModelPrefix   = "__system__/model/"
	aggregateMediaPrefix   = "__system__/media/"
	credentialPrefix       = "credential/"
	fieldTotalRequests     = "total_requests"
	fieldSuccessRequests   = "success_requests"
	fieldFailedRequests    = "failed_requests"
	fieldPromptTokens      = "prompt_tokens"
	fieldCompletionTokens  = "completion_tokens"
	fieldQuarantines       = "quarantines"
	backendOpTimeout       = 2 * time.Second
	mediaStatusFieldPrefix = "status_"
)

// UsageRecord is the counter set of one bucket.
type UsageRecord struct {
	TotalRequests    int64 `json:"total_requests"`
	SuccessRequests  int64 `json:"success_requests"`
	FailedRequests   int64 `json:"failed_requests"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	Quarantines      int64 `json:"quarantines,omitempty"`
}

// Summary groups every bucket for the status endpoint.
type Summary struct {
	Total       UsageRecord                 `json:"total"`
	Models      map[string]UsageRecord      `json:"models"`
	Credentials map[string]UsageRecord      `json:"credentials"`
	Media       map[string]map[string]int64 `json:"media"`
	NextReset   *time.Time                  `json:"next_reset,omitempty"`
}

// NewUsageStats creates a usage tracker. A non-positive resetInterval keeps counters forever.
func NewUsageStats(backend storage.Backend, resetInterval time.Duration) *UsageStats {
	us := &UsageStats{backend: backend, resetInterval: resetInterval, now: time.Now}
	if resetInterval > 0 {
		us.nextReset = us.now().Add(resetInterval)
	}
	return us
}

// RecordRequest records one finished chat completion.
func (u *UsageStats) RecordRequest(ctx context.Context, credentialID, model string, success bool, promptTokens, completionTokens int64) error {
	if u == nil || u.backend == nil {
		return &storage.ErrNotSupported{Operation: "UsageStats.RecordRequest"}
	}
	u.checkAndReset(ctx)

	u.mu.Lock()
	defer u.mu.Unlock()

	record := func(key string) error {
		if err := u.backend.IncrementUsage(ctx, key, fieldTotalRequests, 1); err != nil {
			return err
		}
		outcome := fieldFailedRequests
		if success {
			outcome = fieldSuccessRequests
		}
		if err := u.backend.IncrementUsage(ctx, key, outcome, 1); err != nil {
			return err
		}
		if promptTokens > 0 {
			if err := u.backend.IncrementUsage(ctx, key, fieldPromptTokens, promptTokens); err != nil {
				return err
			}
		}
		if completionTokens > 0 {
			if err := u.backend.IncrementUsage(ctx, key, fieldCompletionTokens, completionTokens); err != nil {
				return err
			}
		}
		return nil
	}

	if err := record(aggregateTotalKey); err != nil {
		return err
	}
	if base := baseModel(model); base != "" {
		if err := record(aggregateModelPrefix + base); err != nil {
			return err
		}
	}
	if credentialID != "" {
		return record(credentialPrefix + credentialID)
	}
	return nil
}

// RecordQuarantine counts an account being taken out of rotation.
func (u *UsageStats) RecordQuarantine(ctx context.Context, credentialID string) error {
	if u == nil || u.backend == nil {
		return &storage.ErrNotSupported{Operation: "UsageStats.RecordQuarantine"}
	}
	if err := u.backend.IncrementUsage(ctx, aggregateTotalKey, fieldQuarantines, 1); err != nil {
		return err
	}
	if credentialID == "" {
		return nil
	}
	return u.backend.IncrementUsage(ctx, credentialPrefix+credentialID, fieldQuarantines, 1)
}

// RecordMediaTask counts a media task reaching a terminal status.
func (u *UsageStats) RecordMediaTask(ctx context.Context, kind, status string) error {
	if u == nil || u.backend == nil {
		return &storage.ErrNotSupported{Operation: "UsageStats.RecordMediaTask"}
	}
	if kind == "" || status == "" {
		return nil
	}
	return u.backend.IncrementUsage(ctx, aggregateMediaPrefix+kind, mediaStatusFieldPrefix+status, 1)
}

// Attach subscribes the tracker to pool and task events on sub. The returned
// func removes the subscriptions.
func (u *UsageStats) Attach(sub events.Subscriber) func() {
	if u == nil || sub == nil {
		return func() {}
	}
	offQuarantine := sub.Subscribe(events.TopicCredentialQuarantined, func(_ context.Context, ev events.Event) {
		id, _ := ev.Payload.(string)
		ctx, cancel := context.WithTimeout(context.Background(), backendOpTimeout)
		defer cancel()
		if err := u.RecordQuarantine(ctx, id); err != nil {
			log.WithError(err).WithField("account", id).Warn("failed to record quarantine")
		}
	})
	offMedia := sub.Subscribe(events.TopicMediaTaskFinished, func(_ context.Context, ev events.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), backendOpTimeout)
		defer cancel()
		if err := u.RecordMediaTask(ctx, ev.Metadata["kind"], ev.Metadata["status"]); err != nil {
			log.WithError(err).Warn("failed to record media task")
		}
	})
	return func() {
		offQuarantine()
		offMedia()
	}
}

// Summary reads every bucket back from the backend.
func (u *UsageStats) Summary(ctx context.Context) (Summary, error) {
	out := Summary{
		Models:      map[string]UsageRecord{},
		Credentials: map[string]UsageRecord{},
		Media:       map[string]map[string]int64{},
	}
	if u == nil || u.backend == nil {
		return out, &storage.ErrNotSupported{Operation: "UsageStats.Summary"}
	}
	all, err := u.backend.ListUsage(ctx)
	if err != nil {
		return out, err
	}
	for key, fields := range all {
		switch {
		case key == aggregateTotalKey:
			out.Total = toRecord(fields)
		case strings.HasPrefix(key, aggregateModelPrefix):
			out.Models[strings.TrimPrefix(key, aggregateModelPrefix)] = toRecord(fields)
		case strings.HasPrefix(key, credentialPrefix):
			out.Credentials[strings.TrimPrefix(key, credentialPrefix)] = toRecord(fields)
		case strings.HasPrefix(key, aggregateMediaPrefix):
			statuses := make(map[string]int64, len(fields))
			for f, v := range fields {
				statuses[strings.TrimPrefix(f, mediaStatusFieldPrefix)] = v
			}
			out.Media[strings.TrimPrefix(key, aggregateMediaPrefix)] = statuses
		}
	}
	u.mu.Lock()
	if !u.nextReset.IsZero() {
		next := u.nextReset
		out.NextReset = &next
	}
	u.mu.Unlock()
	return out, nil
}

// ModelNames returns the models with recorded traffic, sorted.
func (s Summary) ModelNames() []string {
	names := make([]string, 0, len(s.Models))
	for name := range s.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResetAll clears every bucket.
func (u *UsageStats) ResetAll(ctx context.Context) error {
	if u == nil || u.backend == nil {
		return &storage.ErrNotSupported{Operation: "UsageStats.ResetAll"}
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	all, err := u.backend.ListUsage(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for key := range all {
		if err := u.backend.ResetUsage(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if u.resetInterval > 0 {
		u.nextReset = u.now().Add(u.resetInterval)
	}
	log.WithField("buckets", len(all)).Info("usage statistics reset")
	return errors.Join(errs...)
}

func (u *UsageStats) checkAndReset(ctx context.Context) {
	u.mu.Lock()
	due := !u.nextReset.IsZero() && u.now().After(u.nextReset)
	u.mu.Unlock()
	if !due {
		return
	}
	if err := u.ResetAll(ctx); err != nil {
		log.WithError(err).Error("scheduled usage reset failed")
	}
}

// StartPeriodicReset checks the reset schedule every tick until ctx is done.
func (u *UsageStats) StartPeriodicReset(ctx context.Context, tick time.Duration) {
	if u == nil || u.resetInterval <= 0 {
		return
	}
	if tick <= 0 {
		tick = time.Minute
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			u.checkAndReset(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SuccessRate returns the success percentage, 0 when nothing was recorded.
func (r UsageRecord) SuccessRate() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.SuccessRequests) / float64(r.TotalRequests) * 100
}

func toRecord(fields map[string]int64) UsageRecord {
	return UsageRecord{
		TotalRequests:    fields[fieldTotalRequests],
		SuccessRequests:  fields[fieldSuccessRequests],
		FailedRequests:   fields[fieldFailedRequests],
		PromptTokens:     fields[fieldPromptTokens],
		CompletionTokens: fields[fieldCompletionTokens],
		Quarantines:      fields[fieldQuarantines],
	}
}

// baseModel folds suffixed variants onto their base; unparsable names are kept verbatim.
func baseModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return ""
	}
	base, _, err := models.ParseModelName(model)
	if err != nil || base == "" {
		return model
	}
	return base
}
