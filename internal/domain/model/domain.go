package model

import (
	"encoding/json"
	"time"
)

// Domain identifies one independently polled category of Xert data.
// Each domain has its own interval and its own last-seen fingerprint;
// domains never share state.
type Domain string

const (
	DomainTrainingInfo Domain = "training_info"
	DomainActivities   Domain = "activities"
)

// AllDomains returns every polled domain in a stable order.
func AllDomains() []Domain {
	return []Domain{DomainTrainingInfo, DomainActivities}
}

// EventType returns the Home Assistant event name dispatched when this
// domain's data changes.
func (d Domain) EventType() string {
	switch d {
	case DomainTrainingInfo:
		return "xert_training_info_update"
	case DomainActivities:
		return "xert_activity_list_update"
	default:
		return ""
	}
}

// FetchResult is the raw payload produced by one poll cycle. It is consumed
// immediately by change detection and discarded.
type FetchResult struct {
	Domain    Domain
	Payload   json.RawMessage
	FetchedAt time.Time
}

// WebhookEvent is the outbound notification produced for one detected change.
// Delivery is best-effort; an event is never retried after hand-off.
type WebhookEvent struct {
	EventType    string
	Payload      json.RawMessage
	DispatchedAt time.Time
}
