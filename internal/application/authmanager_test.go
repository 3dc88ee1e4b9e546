package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
	"github.com/ericfisherdev/xertbridge/internal/domain/port/driven"
)

// --- Mock implementations ---

type fakeExchanger struct {
	mu           sync.Mutex
	loginCalls   int
	refreshCalls int
	loginCred    model.Credential
	loginErr     error
	refreshCred  model.Credential
	refreshErr   error
	gate         chan struct{} // when non-nil, exchanges block until closed
}

func (f *fakeExchanger) Login(_ context.Context) (model.Credential, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return f.loginCred, f.loginErr
}

func (f *fakeExchanger) Refresh(_ context.Context, _ string) (model.Credential, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshCred, f.refreshErr
}

func (f *fakeExchanger) calls() (login, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.refreshCalls
}

type fakeTokenStore struct {
	mu      sync.Mutex
	cred    *model.Credential
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeTokenStore) Load(_ context.Context) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred, f.loadErr
}

func (f *fakeTokenStore) Save(_ context.Context, cred model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	c := cred
	f.cred = &c
	return nil
}

func validCred(token string) model.Credential {
	return model.Credential{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func expiredCred(token string) model.Credential {
	return model.Credential{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
}

// --- Tests ---

func TestAuthManager_FirstRunLogsInAndPersists(t *testing.T) {
	ex := &fakeExchanger{loginCred: validCred("fresh")}
	store := &fakeTokenStore{}
	m := NewAuthManager(ex, store, time.Minute)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)

	login, refresh := ex.calls()
	assert.Equal(t, 1, login)
	assert.Equal(t, 0, refresh)

	require.NotNil(t, store.cred)
	assert.Equal(t, "fresh", store.cred.AccessToken)
}

func TestAuthManager_CachedCredentialSkipsNetwork(t *testing.T) {
	cred := validCred("cached")
	store := &fakeTokenStore{cred: &cred}
	ex := &fakeExchanger{}
	m := NewAuthManager(ex, store, time.Minute)

	for range 3 {
		token, err := m.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cached", token)
	}

	login, refresh := ex.calls()
	assert.Equal(t, 0, login)
	assert.Equal(t, 0, refresh)
}

func TestAuthManager_ExpiredCredentialRefreshes(t *testing.T) {
	cred := expiredCred("stale")
	store := &fakeTokenStore{cred: &cred}
	ex := &fakeExchanger{refreshCred: validCred("renewed")}
	m := NewAuthManager(ex, store, time.Minute)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed", token)

	login, refresh := ex.calls()
	assert.Equal(t, 0, login, "refresh must not require a new login")
	assert.Equal(t, 1, refresh)
	assert.Equal(t, "renewed", store.cred.AccessToken, "renewed credential must be persisted")
}

func TestAuthManager_RefreshFailureFallsBackToLogin(t *testing.T) {
	cred := expiredCred("stale")
	store := &fakeTokenStore{cred: &cred}
	ex := &fakeExchanger{
		refreshErr: &driven.AuthError{Op: "refresh", Err: errors.New("revoked")},
		loginCred:  validCred("relogin"),
	}
	m := NewAuthManager(ex, store, time.Minute)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "relogin", token)

	login, refresh := ex.calls()
	assert.Equal(t, 1, login)
	assert.Equal(t, 1, refresh)
}

func TestAuthManager_BothGrantsFailing(t *testing.T) {
	cred := expiredCred("stale")
	store := &fakeTokenStore{cred: &cred}
	ex := &fakeExchanger{
		refreshErr: &driven.AuthError{Op: "refresh", Err: errors.New("revoked")},
		loginErr:   &driven.AuthError{Op: "login", Err: errors.New("bad password")},
	}
	m := NewAuthManager(ex, store, time.Minute)

	_, err := m.Token(context.Background())
	require.Error(t, err)

	var authErr *driven.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestAuthManager_SaveFailureIsNotFatal(t *testing.T) {
	ex := &fakeExchanger{loginCred: validCred("fresh")}
	store := &fakeTokenStore{saveErr: &driven.StoreError{Op: "save", Err: errors.New("disk full")}}
	m := NewAuthManager(ex, store, time.Minute)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, 1, store.saves)
}

func TestAuthManager_SingleFlightRefresh(t *testing.T) {
	cred := expiredCred("stale")
	store := &fakeTokenStore{cred: &cred}
	ex := &fakeExchanger{
		refreshCred: validCred("renewed"),
		gate:        make(chan struct{}),
	}
	m := NewAuthManager(ex, store, time.Minute)

	const callers = 8
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.Token(context.Background())
		}(i)
	}

	// Let every caller queue up behind the in-flight exchange, then release it.
	time.Sleep(50 * time.Millisecond)
	close(ex.gate)
	wg.Wait()

	_, refresh := ex.calls()
	assert.Equal(t, 1, refresh, "concurrent callers must share one refresh exchange")

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "renewed", tokens[i])
	}
}
