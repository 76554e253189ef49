package ingest

import (
	"context"

	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/store"
)

const (
	suggestionConfidenceThreshold = 0.6
	maxSuggestionsPerSession      = 2
	suggestionCooldownCalls       = 5
	notificationKindToolSuggest   = "tool_suggestion"
)

// Suggestion is a candidate tool-routing recommendation, never auto-invoked
// (spec §4.6 "the router never invokes tools; it only suggests").
type Suggestion struct {
	SuggestedTool string
	Reason        string
	Confidence    float64
}

// Router evaluates whether the post-tool-use stage should queue a
// tool-suggestion notification.
type Router struct {
	db       *store.DB
	tools    *repository.ToolRegistryRepository
	notifs   *repository.NotificationRepository
	obsRepo  *repository.ObservationRepository
}

func NewRouter(db *store.DB, projectHash string) *Router {
	return &Router{
		db:      db,
		tools:   repository.NewToolRegistryRepository(db),
		notifs:  repository.NewNotificationRepository(db, projectHash),
		obsRepo: repository.NewObservationRepository(db, projectHash),
	}
}

// Evaluate proposes a suggestion when a registered tool with meaningfully
// higher usage matches the invoked tool's keyword, and rate limits fire.
func (r *Router) Evaluate(ctx context.Context, projectHash, sessionID, toolName, keyword string) (*Suggestion, error) {
	candidates, err := r.tools.Discover(ctx, projectHash, keyword)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	top := candidates[0]
	if top.Name == toolName {
		return nil, nil
	}

	usedCount := int64(0)
	for _, c := range candidates {
		if c.Name == toolName {
			usedCount = c.UsageCount
		}
	}
	total := float64(top.UsageCount + usedCount + 1)
	confidence := float64(top.UsageCount) / total
	if confidence < suggestionConfidenceThreshold {
		return nil, nil
	}

	allowed, err := r.rateLimitOK(ctx, sessionID)
	if err != nil || !allowed {
		return nil, err
	}

	return &Suggestion{
		SuggestedTool: top.Name,
		Reason:        "more frequently used for similar tasks",
		Confidence:    confidence,
	}, nil
}

func (r *Router) rateLimitOK(ctx context.Context, sessionID string) (bool, error) {
	count, err := r.notifs.CountSince(ctx, sessionID, notificationKindToolSuggest, 0)
	if err != nil {
		return false, err
	}
	if count >= maxSuggestionsPerSession {
		return false, nil
	}

	sinceLast, err := r.obsRepo.LastEmbeddedInSession(ctx, sessionID, 0)
	if err != nil {
		return false, err
	}
	if sinceLast != nil && count > 0 {
		// Approximate the five-tool-call cooldown with "five observations
		// recorded in this session since the last suggestion," since
		// tool_usage_events carries no session identifier to count calls
		// directly.
		recent, err := r.obsRepo.List(ctx, repository.ListFilter{SessionID: &sessionID, Limit: suggestionCooldownCalls})
		if err != nil {
			return false, err
		}
		if len(recent) < suggestionCooldownCalls {
			return false, nil
		}
	}
	return true, nil
}

// QueueSuggestion records the suggestion as a notification (spec §4.6: the
// formatter "emits a single notification record via the notification
// repository").
func (r *Router) QueueSuggestion(ctx context.Context, sessionID string, s *Suggestion) error {
	_, err := r.notifs.Create(ctx, &sessionID, notificationKindToolSuggest, s.Reason, map[string]interface{}{
		"suggested_tool": s.SuggestedTool,
		"confidence":     s.Confidence,
	})
	return err
}
