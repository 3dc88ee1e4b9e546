package driven

import (
	"context"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
)

// TokenStore defines the driven port for credential persistence. A single
// credential record is overwritten in place; there is no history.
type TokenStore interface {
	// Load returns the persisted credential, or (nil, nil) when none has
	// been stored yet. First run with an empty store is not an error.
	Load(ctx context.Context) (*model.Credential, error)

	// Save stores or replaces the credential. The write is atomic: a crash
	// mid-save never corrupts the previously stored record.
	Save(ctx context.Context, cred model.Credential) error
}
