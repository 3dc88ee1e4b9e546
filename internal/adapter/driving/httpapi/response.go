package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/xertbridge/internal/application"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status        string                          `json:"status"`
	Time          string                          `json:"time"`
	UptimeSeconds int64                           `json:"uptime_seconds"`
	Domains       map[string]DomainStatusResponse `json:"domains"`
}

// DomainStatusResponse is the JSON representation of one domain's poll state.
type DomainStatusResponse struct {
	LastSuccess  string `json:"last_success,omitempty"`
	LastDispatch string `json:"last_dispatch,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	LastErrorAt  string `json:"last_error_at,omitempty"`
}

// toHealthResponse converts a health snapshot to its JSON representation.
func toHealthResponse(snap application.HealthSnapshot) HealthResponse {
	now := time.Now()

	domains := make(map[string]DomainStatusResponse, len(snap.Domains))
	for d, st := range snap.Domains {
		domains[string(d)] = DomainStatusResponse{
			LastSuccess:  formatTime(st.LastSuccess),
			LastDispatch: formatTime(st.LastDispatch),
			LastError:    st.LastError,
			LastErrorAt:  formatTime(st.LastErrorAt),
		}
	}

	return HealthResponse{
		Status:        "ok",
		Time:          now.UTC().Format(time.RFC3339),
		UptimeSeconds: int64(now.Sub(snap.StartedAt).Seconds()),
		Domains:       domains,
	}
}

// formatTime renders a timestamp as RFC3339, or "" for the zero value.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
