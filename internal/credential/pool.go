package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	apperrors "qwen2api-go/internal/errors"
	"qwen2api-go/internal/events"
	"qwen2api-go/internal/monitoring"
)

// ErrPoolExhausted is returned by Acquire when every account is quarantined.
var ErrPoolExhausted = apperrors.ErrPoolExhausted

// Pool rotates requests across upstream accounts. All reads and writes of account
// state happen under mu, so acquisition and failure reporting never interleave.
type Pool struct {
	mu        sync.Mutex
	creds     []*Credential
	byID      map[string]*Credential
	cursor    int
	requests  int64
	publisher events.Publisher
	now       func() time.Time
}

// Option customizes a Pool.
type Option func(*Pool)

// WithPublisher emits credential.quarantined events on p.
func WithPublisher(p events.Publisher) Option {
	return func(pool *Pool) { pool.publisher = p }
}

// WithClock overrides the time source used for bookkeeping timestamps.
func WithClock(now func() time.Time) Option {
	return func(pool *Pool) { pool.now = now }
}

// NewPool creates one active account per distinct non-empty token, keeping the
// configured order as the rotation order.
func NewPool(tokens []string, opts ...Option) *Pool {
	p := &Pool{
		byID: make(map[string]*Credential, len(tokens)),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		cred := &Credential{
			ID:    fmt.Sprintf("account-%d", len(p.creds)+1),
			Token: token,
			State: StateActive,
		}
		p.creds = append(p.creds, cred)
		p.byID[cred.ID] = cred
	}
	monitoring.PoolCredentials.WithLabelValues(StateActive.String()).Set(float64(len(p.creds)))
	monitoring.PoolCredentials.WithLabelValues(StateQuarantined.String()).Set(0)
	log.WithField("accounts", len(p.creds)).Info("credential pool initialized")
	return p
}

// Len returns the number of configured accounts regardless of state.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Acquire hands out the next active account in round-robin order. The active subset
// is evaluated at call time, so a quarantine takes effect on the very next call.
func (p *Pool) Acquire() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.creds)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		cred := p.creds[idx]
		if cred.State != StateActive {
			continue
		}
		p.cursor = (idx + 1) % n
		cred.RequestCount++
		cred.LastUsed = p.now()
		p.requests++
		monitoring.PoolAcquisitionsTotal.WithLabelValues("ok").Inc()
		return *cred, nil
	}
	monitoring.PoolAcquisitionsTotal.WithLabelValues("exhausted").Inc()
	return Credential{}, ErrPoolExhausted
}

// ReportSuccess records a completed upstream call. It never changes state.
func (p *Pool) ReportSuccess(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cred, ok := p.byID[id]; ok {
		cred.SuccessCount++
	}
}

// ReportFailure quarantines the account for the rest of the process lifetime.
// Repeated reports keep the first reason.
func (p *Pool) ReportFailure(id, reason string) {
	p.mu.Lock()
	cred, ok := p.byID[id]
	if !ok || cred.State == StateQuarantined {
		p.mu.Unlock()
		return
	}
	cred.State = StateQuarantined
	cred.LastError = reason
	cred.QuarantinedAt = p.now()
	active, quarantined := p.countLocked()
	masked := cred.Masked()
	publisher := p.publisher
	p.mu.Unlock()

	monitoring.CredentialQuarantinesTotal.WithLabelValues(id).Inc()
	monitoring.PoolCredentials.WithLabelValues(StateActive.String()).Set(float64(active))
	monitoring.PoolCredentials.WithLabelValues(StateQuarantined.String()).Set(float64(quarantined))
	log.WithFields(log.Fields{
		"account": id,
		"token":   masked,
		"reason":  reason,
		"active":  active,
	}).Warn("account quarantined")
	if active == 0 {
		log.Error("all pooled accounts are quarantined; shared-key requests will be rejected until restart")
	}

	if publisher != nil {
		publisher.Publish(context.Background(), events.TopicCredentialQuarantined, id, map[string]string{"reason": reason})
	}
}

// Stats returns a snapshot for status reporting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	active, quarantined := p.countLocked()
	out := Stats{
		Total:       len(p.creds),
		Active:      active,
		Quarantined: quarantined,
		Requests:    p.requests,
		Accounts:    make([]AccountSnapshot, 0, len(p.creds)),
	}
	for _, cred := range p.creds {
		out.Accounts = append(out.Accounts, AccountSnapshot{
			ID:           cred.ID,
			Token:        cred.Masked(),
			State:        cred.State.String(),
			RequestCount: cred.RequestCount,
			SuccessCount: cred.SuccessCount,
			LastError:    cred.LastError,
		})
		if cred.State == StateQuarantined {
			out.QuarantinedIDs = append(out.QuarantinedIDs, cred.ID)
		}
	}
	return out
}

// PublishGauges refreshes the pool gauges; called periodically by the server.
func (p *Pool) PublishGauges() {
	p.mu.Lock()
	active, quarantined := p.countLocked()
	p.mu.Unlock()
	monitoring.PoolCredentials.WithLabelValues(StateActive.String()).Set(float64(active))
	monitoring.PoolCredentials.WithLabelValues(StateQuarantined.String()).Set(float64(quarantined))
}

func (p *Pool) countLocked() (active, quarantined int) {
	for _, cred := range p.creds {
		if cred.State == StateActive {
			active++
		} else {
			quarantined++
		}
	}
	return active, quarantined
}
