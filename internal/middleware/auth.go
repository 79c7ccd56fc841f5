package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"qwen2api-go/internal/credential"
	apperrors "qwen2api-go/internal/errors"
	common "qwen2api-go/internal/handlers/common"
)

// Gin context keys written by Auth.
const (
	ContextKeyUpstreamToken = "upstream_token"
	ContextKeyCredentialID  = "credential_id"
)

// CredentialSource hands out pooled upstream accounts.
type CredentialSource interface {
	Acquire() (credential.Credential, error)
}

// AuthOptions configures bearer resolution.
type AuthOptions struct {
	// Required rejects requests without a bearer token.
	Required bool

	// SharedKey returns the client key that maps onto the pool. Read per request
	// so config reloads apply.
	SharedKey func() string

	// Pool is nil when pooling is disabled.
	Pool CredentialSource
}

// Auth resolves the upstream token for a request:
//   - bearer equal to the shared key, with a pool: next pooled account
//   - any other bearer: forwarded to the upstream as is
//   - no bearer: rejected when Required, otherwise a pooled account if any
func Auth(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		if token == "" {
			if opts.Required {
				common.AbortWithError(c, apperrors.ErrAuthMissing)
				return
			}
			if opts.Pool != nil && !acquire(c, opts.Pool) {
				return
			}
			c.Next()
			return
		}

		shared := ""
		if opts.SharedKey != nil {
			shared = opts.SharedKey()
		}
		if shared != "" && token == shared && opts.Pool != nil {
			if !acquire(c, opts.Pool) {
				return
			}
			c.Next()
			return
		}

		c.Set(ContextKeyUpstreamToken, token)
		c.Next()
	}
}

func acquire(c *gin.Context, pool CredentialSource) bool {
	cred, err := pool.Acquire()
	if err != nil {
		common.AbortWithError(c, err)
		return false
	}
	c.Set(ContextKeyUpstreamToken, cred.Token)
	c.Set(ContextKeyCredentialID, cred.ID)
	return true
}

// bearerToken strips an optional "Bearer " prefix; bare tokens are accepted too.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// UpstreamToken returns the token Auth resolved, or "".
func UpstreamToken(c *gin.Context) string {
	return c.GetString(ContextKeyUpstreamToken)
}

// CredentialID returns the pooled account serving the request, or "" for passthrough tokens.
func CredentialID(c *gin.Context) string {
	return c.GetString(ContextKeyCredentialID)
}
