package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/xertbridge/internal/domain/model"
	"github.com/ericfisherdev/xertbridge/internal/domain/port/driven"
	"github.com/ericfisherdev/xertbridge/internal/observability"
)

// maxEnrichedActivities bounds how many activity list entries are enriched
// with per-activity detail fetches each cycle.
const maxEnrichedActivities = 50

// DomainSchedule pairs a domain with its polling interval.
type DomainSchedule struct {
	Domain   model.Domain
	Interval time.Duration
}

// PollService runs one independent fetch-detect-dispatch loop per domain.
// Domains never block each other; within a domain, a cycle runs to
// completion before the next tick is considered. All failures are absorbed
// at the cycle boundary: a failing domain skips to its next scheduled tick
// and the process keeps running.
type PollService struct {
	tokens       TokenSource
	client       driven.XertClient
	sender       driven.WebhookSender
	detector     *ChangeDetector
	health       *HealthService
	schedules    []DomainSchedule
	lookbackDays int
}

// NewPollService creates a PollService with all required dependencies.
func NewPollService(
	tokens TokenSource,
	client driven.XertClient,
	sender driven.WebhookSender,
	detector *ChangeDetector,
	health *HealthService,
	schedules []DomainSchedule,
	lookbackDays int,
) *PollService {
	return &PollService{
		tokens:       tokens,
		client:       client,
		sender:       sender,
		detector:     detector,
		health:       health,
		schedules:    schedules,
		lookbackDays: lookbackDays,
	}
}

// Start launches the per-domain poll loops and blocks until the context is
// canceled and all loops have stopped. Each domain polls immediately on
// startup, then on its configured interval.
func (s *PollService) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sched := range s.schedules {
		wg.Add(1)
		go func(sched DomainSchedule) {
			defer wg.Done()
			s.runDomain(ctx, sched)
		}(sched)
	}
	wg.Wait()
	slog.Info("poll service stopped")
}

// runDomain is one domain's poll loop. The cycle runs inline so a slow or
// failing cycle never overlaps the same domain's next one.
func (s *PollService) runDomain(ctx context.Context, sched DomainSchedule) {
	slog.Info("domain poll loop started", "domain", sched.Domain, "interval", sched.Interval)

	s.pollOnce(ctx, sched.Domain)

	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("domain poll loop stopped", "domain", sched.Domain)
			return
		case <-ticker.C:
			s.pollOnce(ctx, sched.Domain)
		}
	}
}

// pollOnce executes one fetch-detect-dispatch cycle for a domain. The
// fingerprint is committed only after a successful dispatch, so a failed
// delivery is re-attempted on the next cycle in which the payload still
// differs from the last delivered one.
func (s *PollService) pollOnce(ctx context.Context, domain model.Domain) {
	start := time.Now()

	token, err := s.tokens.Token(ctx)
	if err != nil {
		slog.Error("cycle skipped, no valid token", "domain", domain, "error", err)
		s.health.RecordFailure(domain, err)
		observability.RecordPollCycle(string(domain), "error")
		return
	}

	payload, err := s.fetch(ctx, domain, token)
	if err != nil {
		slog.Error("fetch failed", "domain", domain, "error", err)
		s.health.RecordFailure(domain, err)
		observability.RecordPollCycle(string(domain), "error")
		return
	}

	if !s.detector.HasChanged(domain, payload) {
		slog.Debug("payload unchanged", "domain", domain)
		s.health.RecordSuccess(domain, false)
		observability.RecordPollCycle(string(domain), "unchanged")
		return
	}

	if err := s.sender.Send(ctx, domain.EventType(), payload); err != nil {
		slog.Error("webhook dispatch failed, fingerprint not committed", "domain", domain, "error", err)
		s.health.RecordFailure(domain, err)
		observability.RecordWebhookEvent(domain.EventType(), false)
		observability.RecordPollCycle(string(domain), "error")
		return
	}

	s.detector.Commit(domain, payload)
	s.health.RecordSuccess(domain, true)
	observability.RecordWebhookEvent(domain.EventType(), true)
	observability.RecordChangeDispatched(string(domain), time.Now())
	observability.RecordPollCycle(string(domain), "changed")

	slog.Info("change dispatched",
		"domain", domain,
		"event", domain.EventType(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// fetch retrieves the payload for a domain. Activities are enriched with
// per-activity detail before change detection so detail-level changes are
// picked up too.
func (s *PollService) fetch(ctx context.Context, domain model.Domain, token string) (json.RawMessage, error) {
	switch domain {
	case model.DomainTrainingInfo:
		return s.client.FetchTrainingInfo(ctx, token)
	case model.DomainActivities:
		raw, err := s.client.FetchActivities(ctx, token, s.lookbackDays)
		if err != nil {
			return nil, err
		}
		return s.enrichActivities(ctx, token, raw), nil
	default:
		return s.client.FetchTrainingInfo(ctx, token)
	}
}

// activityList is the subset of the activities response needed for enrichment.
type activityList struct {
	Success    *bool            `json:"success"`
	Activities []map[string]any `json:"activities"`
}

// enrichActivities merges detail records into the newest activity list
// entries. Enrichment is best-effort: any parse or per-activity fetch
// failure falls back to the bare list entry and is only logged.
func (s *PollService) enrichActivities(ctx context.Context, token string, raw json.RawMessage) json.RawMessage {
	var doc activityList
	if err := json.Unmarshal(raw, &doc); err != nil {
		slog.Warn("activities payload not parseable, skipping enrichment", "error", err)
		return raw
	}
	if len(doc.Activities) == 0 {
		return raw
	}

	var dated []map[string]any
	for _, a := range doc.Activities {
		if activityStartDate(a) != "" {
			dated = append(dated, a)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return activityStartDate(dated[i]) > activityStartDate(dated[j])
	})
	if len(dated) > maxEnrichedActivities {
		dated = dated[:maxEnrichedActivities]
	}

	enriched := make([]map[string]any, 0, len(dated))
	for _, a := range dated {
		path, _ := a["path"].(string)
		if path == "" {
			enriched = append(enriched, a)
			continue
		}

		detail, err := s.client.FetchActivityDetail(ctx, token, path)
		if err != nil {
			slog.Warn("activity detail fetch failed", "path", path, "error", err)
			enriched = append(enriched, a)
			continue
		}

		var detailMap map[string]any
		if err := json.Unmarshal(detail, &detailMap); err != nil {
			slog.Warn("activity detail not parseable", "path", path, "error", err)
			enriched = append(enriched, a)
			continue
		}
		// Merge only when the detail record reports success; anything else
		// keeps the bare list entry.
		if succ, _ := detailMap["success"].(bool); !succ {
			enriched = append(enriched, a)
			continue
		}

		merged := maps.Clone(a)
		maps.Copy(merged, detailMap)
		enriched = append(enriched, merged)
	}

	success := true
	if doc.Success != nil {
		success = *doc.Success
	}

	out, err := json.Marshal(map[string]any{
		"success":    success,
		"activities": enriched,
	})
	if err != nil {
		slog.Warn("marshaling enriched activities failed", "error", err)
		return raw
	}

	slog.Debug("activities enriched", "count", len(enriched))
	return out
}

// activityStartDate extracts the nested start_date.date string used for
// recency ordering, or "" when absent.
func activityStartDate(a map[string]any) string {
	sd, _ := a["start_date"].(map[string]any)
	date, _ := sd["date"].(string)
	return date
}
