package driven

import (
	"context"
	"encoding/json"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
)

// XertClient defines the driven port for authenticated reads against the
// Xert API. Payloads are returned as raw JSON; the application layer
// fingerprints and forwards them without interpreting domain fields beyond
// what enrichment needs. Failures are reported as *APIError.
type XertClient interface {
	// FetchTrainingInfo retrieves the fitness signature, status, and
	// training load summary.
	FetchTrainingInfo(ctx context.Context, token string) (json.RawMessage, error)

	// FetchActivities retrieves the activity list bounded by the lookback
	// window in days.
	FetchActivities(ctx context.Context, token string, lookbackDays int) (json.RawMessage, error)

	// FetchActivityDetail retrieves the detailed record for a single
	// activity identified by the path field of an activity list entry.
	FetchActivityDetail(ctx context.Context, token string, path string) (json.RawMessage, error)
}

// TokenExchanger defines the driven port for the OAuth2 token endpoint.
// Failures are reported as *AuthError.
type TokenExchanger interface {
	// Login performs a password-grant exchange with the configured
	// username and password.
	Login(ctx context.Context) (model.Credential, error)

	// Refresh exchanges a refresh token for a fresh credential.
	Refresh(ctx context.Context, refreshToken string) (model.Credential, error)
}
