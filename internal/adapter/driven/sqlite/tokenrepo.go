package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
	"github.com/ericfisherdev/xertbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenRepo)(nil)

// TokenRepo is the SQLite implementation of the TokenStore port. It keeps a
// single credential record, overwritten in place. When constructed with a
// 32-byte key, token values are encrypted with AES-256-GCM at rest;
// a nil key stores them as-is.
type TokenRepo struct {
	db  *DB
	key []byte
}

// NewTokenRepo creates a TokenRepo. key must be 32 bytes for AES-256-GCM,
// or nil to store tokens unencrypted.
func NewTokenRepo(db *DB, key []byte) *TokenRepo {
	return &TokenRepo{db: db, key: key}
}

// Load returns the persisted credential, or (nil, nil) when none exists.
func (r *TokenRepo) Load(ctx context.Context) (*model.Credential, error) {
	const query = `SELECT access_token, refresh_token, expires_at FROM oauth_tokens WHERE id = 1`

	var access, refresh string
	var expiresAt int64
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&access, &refresh, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &driven.StoreError{Op: "load", Err: err}
	}

	if access, err = r.decrypt(access); err != nil {
		return nil, &driven.StoreError{Op: "load", Err: fmt.Errorf("decrypt access token: %w", err)}
	}
	if refresh, err = r.decrypt(refresh); err != nil {
		return nil, &driven.StoreError{Op: "load", Err: fmt.Errorf("decrypt refresh token: %w", err)}
	}

	return &model.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// Save stores or replaces the credential record.
func (r *TokenRepo) Save(ctx context.Context, cred model.Credential) error {
	access, err := r.encrypt(cred.AccessToken)
	if err != nil {
		return &driven.StoreError{Op: "save", Err: fmt.Errorf("encrypt access token: %w", err)}
	}
	refresh, err := r.encrypt(cred.RefreshToken)
	if err != nil {
		return &driven.StoreError{Op: "save", Err: fmt.Errorf("encrypt refresh token: %w", err)}
	}

	const query = `
		INSERT INTO oauth_tokens (id, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := r.db.Writer.ExecContext(ctx, query, access, refresh, cred.ExpiresAt.Unix()); err != nil {
		return &driven.StoreError{Op: "save", Err: err}
	}
	return nil
}

// encrypt encrypts plaintext with AES-256-GCM, returning a base64 string of
// nonce || ciphertext || tag. With a nil key it returns plaintext unchanged.
func (r *TokenRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return plaintext, nil
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt reverses encrypt. With a nil key it returns the input unchanged.
func (r *TokenRepo) decrypt(encoded string) (string, error) {
	if r.key == nil {
		return encoded, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
