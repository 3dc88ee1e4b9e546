package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
	"github.com/ericfisherdev/xertbridge/internal/domain/port/driven"
	"github.com/ericfisherdev/xertbridge/internal/observability"
)

// TokenSource supplies a valid access token for upstream API calls.
// AuthManager is the production implementation; tests substitute fakes.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Compile-time interface satisfaction check.
var _ TokenSource = (*AuthManager)(nil)

// AuthManager owns the process-wide OAuth2 credential. The common path is
// lock-cheap: a cached credential comfortably ahead of expiry is returned
// without any network call. Renewal (refresh grant, falling back to the
// password grant) runs under a singleflight group so concurrent domains
// expiring at the same moment trigger exactly one exchange. Every successful
// exchange is persisted immediately so restarts resume without re-login.
type AuthManager struct {
	exchanger driven.TokenExchanger
	store     driven.TokenStore
	margin    time.Duration

	group singleflight.Group

	mu     sync.Mutex
	cred   *model.Credential
	loaded bool
}

// NewAuthManager creates an AuthManager. margin is how far ahead of expiry
// a credential is already treated as expired.
func NewAuthManager(exchanger driven.TokenExchanger, store driven.TokenStore, margin time.Duration) *AuthManager {
	return &AuthManager{
		exchanger: exchanger,
		store:     store,
		margin:    margin,
	}
}

// Token returns a valid access token, renewing the credential if needed.
// Returns *driven.AuthError when neither refresh nor login succeeds; the
// caller skips its cycle and retries on its next tick.
func (m *AuthManager) Token(ctx context.Context) (string, error) {
	if cred := m.current(ctx); cred != nil && cred.Valid(m.margin) {
		return cred.AccessToken, nil
	}

	v, err, _ := m.group.Do("credential", func() (any, error) {
		// Re-check after winning the flight: a concurrent caller may have
		// renewed while this one was queued.
		if cred := m.current(ctx); cred != nil && cred.Valid(m.margin) {
			return cred.AccessToken, nil
		}
		return m.renew(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// current returns the in-memory credential, lazily loading the persisted one
// on first access. Load failures are logged and treated as an empty store.
func (m *AuthManager) current(ctx context.Context) *model.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		m.loaded = true
		cred, err := m.store.Load(ctx)
		if err != nil {
			slog.Warn("loading stored credential failed", "error", err)
		} else if cred != nil {
			m.cred = cred
			slog.Info("loaded stored credential", "expires_at", cred.ExpiresAt.UTC().Format(time.RFC3339))
		}
	}

	return m.cred
}

// renew obtains a fresh credential: refresh grant when a refresh token is
// held, password grant otherwise or when the refresh is rejected.
func (m *AuthManager) renew(ctx context.Context) (string, error) {
	if cur := m.current(ctx); cur != nil && cur.RefreshToken != "" {
		cred, err := m.exchanger.Refresh(ctx, cur.RefreshToken)
		if err == nil {
			observability.RecordTokenExchange("refresh", true)
			slog.Info("access token refreshed", "expires_at", cred.ExpiresAt.UTC().Format(time.RFC3339))
			m.adopt(ctx, cred)
			return cred.AccessToken, nil
		}
		observability.RecordTokenExchange("refresh", false)
		slog.Warn("token refresh failed, falling back to login", "error", err)
	}

	cred, err := m.exchanger.Login(ctx)
	if err != nil {
		observability.RecordTokenExchange("password", false)
		return "", err
	}
	observability.RecordTokenExchange("password", true)
	slog.Info("password grant successful", "expires_at", cred.ExpiresAt.UTC().Format(time.RFC3339))

	m.adopt(ctx, cred)
	return cred.AccessToken, nil
}

// adopt replaces the in-memory credential and persists it. A store failure
// is logged but the in-memory credential stays authoritative for this run.
func (m *AuthManager) adopt(ctx context.Context, cred model.Credential) {
	m.mu.Lock()
	m.cred = &cred
	m.loaded = true
	m.mu.Unlock()

	if err := m.store.Save(ctx, cred); err != nil {
		slog.Error("persisting credential failed", "error", err)
	}
}
