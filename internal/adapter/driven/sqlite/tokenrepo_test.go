package sqlite

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
)

func testCredential() model.Credential {
	return model.Credential{
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second).UTC(),
	}
}

func TestTokenRepo_LoadEmpty(t *testing.T) {
	repo := NewTokenRepo(setupTestDB(t), nil)

	cred, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestTokenRepo_SaveAndLoad(t *testing.T) {
	repo := NewTokenRepo(setupTestDB(t), nil)
	want := testCredential()

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt), "want %v, got %v", want.ExpiresAt, got.ExpiresAt)
}

func TestTokenRepo_SaveOverwrites(t *testing.T) {
	repo := NewTokenRepo(setupTestDB(t), nil)
	ctx := context.Background()

	first := testCredential()
	require.NoError(t, repo.Save(ctx, first))

	second := model.Credential{
		AccessToken:  "rotated-access",
		RefreshToken: "rotated-refresh",
		ExpiresAt:    first.ExpiresAt.Add(30 * time.Minute),
	}
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rotated-access", got.AccessToken)
	assert.Equal(t, "rotated-refresh", got.RefreshToken)

	// Still a single record.
	var count int
	require.NoError(t, repo.db.Reader.QueryRow(`SELECT COUNT(*) FROM oauth_tokens`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTokenRepo_EncryptedRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	repo := NewTokenRepo(setupTestDB(t), key)
	want := testCredential()

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
}

func TestTokenRepo_TokensEncryptedAtRest(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	repo := NewTokenRepo(setupTestDB(t), key)
	cred := testCredential()

	require.NoError(t, repo.Save(context.Background(), cred))

	var stored string
	require.NoError(t, repo.db.Reader.QueryRow(`SELECT access_token FROM oauth_tokens WHERE id = 1`).Scan(&stored))
	assert.NotEqual(t, cred.AccessToken, stored)
	assert.NotContains(t, stored, cred.AccessToken)
}

func TestTokenRepo_WrongKeyFailsToLoad(t *testing.T) {
	db := setupTestDB(t)
	cred := testCredential()

	require.NoError(t, NewTokenRepo(db, bytes.Repeat([]byte{0x42}, 32)).Save(context.Background(), cred))

	_, err := NewTokenRepo(db, bytes.Repeat([]byte{0x24}, 32)).Load(context.Background())
	require.Error(t, err)
}
