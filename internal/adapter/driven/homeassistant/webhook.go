// Package homeassistant implements the WebhookSender port against a Home
// Assistant webhook endpoint.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/xertbridge/internal/domain/port/driven"
)

const requestTimeout = 30 * time.Second

// Compile-time interface satisfaction check.
var _ driven.WebhookSender = (*Sender)(nil)

// Sender implements the driven.WebhookSender port. It issues exactly one
// POST per event; retry policy belongs to the poll scheduler, which simply
// withholds the fingerprint commit on failure.
type Sender struct {
	http      *http.Client
	baseURL   string
	webhookID string
	token     string
}

// NewSender creates a Sender for the hub at baseURL. token is an optional
// long-lived Home Assistant access token; webhooks generally authenticate
// by webhook id alone.
func NewSender(baseURL, webhookID, token string) *Sender {
	return &Sender{
		http:      &http.Client{Timeout: requestTimeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		webhookID: webhookID,
		token:     token,
	}
}

// NewSenderWithHTTPClient creates a Sender with a custom http.Client.
// Intended for testing against an httptest server.
func NewSenderWithHTTPClient(httpClient *http.Client, baseURL, webhookID, token string) *Sender {
	s := NewSender(baseURL, webhookID, token)
	s.http = httpClient
	return s
}

// eventEnvelope is the wire format Home Assistant automations match on.
type eventEnvelope struct {
	EventType string    `json:"event_type"`
	Data      eventData `json:"data"`
}

type eventData struct {
	Available bool            `json:"available"`
	Parsed    json.RawMessage `json:"parsed"`
}

// Send delivers one change event. Network failures and 5xx responses are
// transient; 4xx responses (a bad webhook id, typically) are permanent.
func (s *Sender) Send(ctx context.Context, eventType string, payload json.RawMessage) error {
	body, err := json.Marshal(eventEnvelope{
		EventType: eventType,
		Data: eventData{
			Available: payloadAvailable(payload),
			Parsed:    payload,
		},
	})
	if err != nil {
		return &driven.DispatchError{Kind: driven.ErrorPermanent, Err: fmt.Errorf("encode event: %w", err)}
	}

	url := s.baseURL + "/api/webhook/" + s.webhookID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &driven.DispatchError{Kind: driven.ErrorPermanent, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return &driven.DispatchError{Kind: driven.ErrorTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Debug("webhook sent", "event", eventType, "status", resp.StatusCode)
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &driven.DispatchError{Kind: driven.ErrorTransient, StatusCode: resp.StatusCode, Err: errors.New(respSnippet(resp.Body))}
	default:
		return &driven.DispatchError{Kind: driven.ErrorPermanent, StatusCode: resp.StatusCode, Err: errors.New(respSnippet(resp.Body))}
	}
}

// payloadAvailable extracts the upstream success flag reported to Home
// Assistant as availability. Missing or non-boolean means unavailable.
func payloadAvailable(payload json.RawMessage) bool {
	var doc struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false
	}
	return doc.Success
}

// respSnippet reads a short prefix of a response body for error messages.
func respSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 200))
	return string(b)
}
