package credential

import "time"

// State is the rotation state of a pooled account.
type State int

const (
	StateActive State = iota
	StateQuarantined
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateQuarantined:
		return "quarantined"
	default:
		return "unknown"
	}
}

// Credential is one upstream account. Values handed out by the pool are copies;
// report outcomes back by ID.
type Credential struct {
	ID            string    `json:"id"`
	Token         string    `json:"-"`
	State         State     `json:"state"`
	RequestCount  int64     `json:"request_count"`
	SuccessCount  int64     `json:"success_count"`
	LastError     string    `json:"last_error,omitempty"`
	LastUsed      time.Time `json:"last_used,omitempty"`
	QuarantinedAt time.Time `json:"quarantined_at,omitempty"`
}

// Masked returns the token in a form safe for logs and status output.
func (c Credential) Masked() string {
	return MaskToken(c.Token)
}

// Stats is a read-only snapshot of the pool.
type Stats struct {
	Total       int               `json:"total"`
	Active      int               `json:"active"`
	Quarantined int               `json:"quarantined"`
	Requests    int64             `json:"requests"`
	Accounts    []AccountSnapshot `json:"accounts"`

	// QuarantinedIDs lists accounts out of rotation, in pool order.
	QuarantinedIDs []string `json:"quarantined_ids,omitempty"`
}

// AccountSnapshot describes one account without exposing its token.
type AccountSnapshot struct {
	ID           string `json:"id"`
	Token        string `json:"token"`
	State        string `json:"state"`
	RequestCount int64  `json:"request_count"`
	SuccessCount int64  `json:"success_count"`
	LastError    string `json:"last_error,omitempty"`
}

// MaskToken keeps the first and last four characters of a token.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
