package driven

import (
	"context"
	"encoding/json"
)

// WebhookSender defines the driven port for delivering change events to the
// Home Assistant webhook endpoint. Send issues exactly one POST; retry
// policy belongs to the poll scheduler. Failures are reported as
// *DispatchError.
type WebhookSender interface {
	Send(ctx context.Context, eventType string, payload json.RawMessage) error
}
