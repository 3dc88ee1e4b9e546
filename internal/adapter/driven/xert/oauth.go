package xert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
	"github.com/ericfisherdev/xertbridge/internal/domain/port/driven"
)

const (
	defaultTokenURL = "https://www.xertonline.com/oauth/token"

	// Xert uses fixed public client credentials for the token endpoint.
	clientID     = "xert_public"
	clientSecret = "xert_public"

	// expirySlack shaves a few seconds off the reported lifetime so the
	// stored expiry is always on the safe side of the server's clock.
	expirySlack = 5 * time.Second
)

// Compile-time interface satisfaction check.
var _ driven.TokenExchanger = (*Exchanger)(nil)

// Exchanger implements the driven.TokenExchanger port against the Xert
// OAuth2 token endpoint, supporting the password and refresh_token grants.
type Exchanger struct {
	http     *http.Client
	tokenURL string
	username string
	password string
}

// NewExchanger creates an Exchanger against the production token endpoint.
func NewExchanger(username, password string) *Exchanger {
	return &Exchanger{
		http:     &http.Client{Timeout: requestTimeout},
		tokenURL: defaultTokenURL,
		username: username,
		password: password,
	}
}

// NewExchangerWithURL creates an Exchanger with a custom http.Client and
// token URL. Intended for testing against an httptest server.
func NewExchangerWithURL(httpClient *http.Client, tokenURL, username, password string) *Exchanger {
	return &Exchanger{
		http:     httpClient,
		tokenURL: tokenURL,
		username: username,
		password: password,
	}
}

// Login performs a password-grant exchange.
func (e *Exchanger) Login(ctx context.Context) (model.Credential, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {e.username},
		"password":   {e.password},
	}
	return e.exchange(ctx, "login", form, "")
}

// Refresh exchanges a refresh token for a fresh credential. When the
// response omits a new refresh token, the presented one is carried forward.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (model.Credential, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return e.exchange(ctx, "refresh", form, refreshToken)
}

// tokenResponse is the token endpoint's success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	CreatedAt    int64  `json:"created_at"`
}

func (e *Exchanger) exchange(ctx context.Context, op string, form url.Values, priorRefresh string) (model.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.Credential{}, &driven.AuthError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.http.Do(req)
	if err != nil {
		return model.Credential{}, &driven.AuthError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.Credential{}, &driven.AuthError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return model.Credential{}, &driven.AuthError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return model.Credential{}, &driven.AuthError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if tr.AccessToken == "" {
		return model.Credential{}, &driven.AuthError{Op: op, Err: fmt.Errorf("response missing access token")}
	}

	created := tr.CreatedAt
	if created == 0 {
		created = time.Now().Unix()
	}
	refresh := tr.RefreshToken
	if refresh == "" {
		refresh = priorRefresh
	}

	return model.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    time.Unix(created+tr.ExpiresIn, 0).Add(-expirySlack),
	}, nil
}
