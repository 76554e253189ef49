package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/search"
	"github.com/kiosk404/agentmem/internal/store"
)

// Action is the unified recall operation's action parameter (spec §4.6).
type Action string

const (
	ActionSearch  Action = "search"
	ActionView    Action = "view"
	ActionPurge   Action = "purge"
	ActionRestore Action = "restore"
)

// Detail is the unified recall operation's detail-level parameter.
type Detail string

const (
	DetailCompact  Detail = "compact"
	DetailTimeline Detail = "timeline"
	DetailFull     Detail = "full"
)

const maxRecallLimit = 20

// Request is the unified recall operation's input (spec §4.6/§6).
type Request struct {
	Action        Action
	Query         string
	ID            string
	Title         string
	IDs           []string
	QueryVector   []float32
	Detail        Detail
	Limit         int
	IncludePurged bool
}

// Item is one rendered recall result, at whatever Detail level was
// requested.
type Item struct {
	ID        string  `json:"id"`
	Title     string  `json:"title,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Snippet   string  `json:"snippet,omitempty"`
	Content   string  `json:"content,omitempty"`
	Source    string  `json:"source"`
	CreatedAt int64   `json:"created_at"`
}

// Response is the unified recall operation's output.
type Response struct {
	Items      []Item `json:"items"`
	Truncated  bool   `json:"truncated"`
	TotalCount int    `json:"total_count"`
	Purged     []string `json:"purged,omitempty"`
	Restored   []string `json:"restored,omitempty"`
}

var ErrExplicitIDsRequired = errors.New("recall: purge/restore require explicit identifiers")

// Recall dispatches one unified-recall request (spec §4.6).
func Recall(ctx context.Context, db *store.DB, projectHash string, req Request) (*Response, error) {
	limit := req.Limit
	if limit <= 0 || limit > maxRecallLimit {
		limit = maxRecallLimit
	}

	obsRepo := repository.NewObservationRepository(db, projectHash)

	switch req.Action {
	case ActionSearch:
		return recallSearch(ctx, db, projectHash, req, limit)
	case ActionView:
		return recallView(ctx, obsRepo, req)
	case ActionPurge:
		return recallPurge(ctx, obsRepo, req)
	case ActionRestore:
		return recallRestore(ctx, obsRepo, req)
	default:
		return nil, fmt.Errorf("recall: unknown action %q", req.Action)
	}
}

func recallSearch(ctx context.Context, db *store.DB, projectHash string, req Request, limit int) (*Response, error) {
	var results []search.Result
	var err error
	if len(req.QueryVector) > 0 {
		results, err = search.Hybrid(ctx, db, projectHash, req.Query, req.QueryVector, limit, req.IncludePurged, search.DefaultWeights)
	} else {
		results, err = search.Keyword(ctx, db, projectHash, req.Query, limit, req.IncludePurged)
	}
	if err != nil {
		return nil, err
	}

	rendered := make([]string, len(results))
	items := make([]Item, len(results))
	for i, r := range results {
		items[i] = Item{ID: r.ObservationID, Title: r.Title, Score: r.Score, Snippet: r.Snippet, Source: r.Source, CreatedAt: r.CreatedAt}
		rendered[i] = renderCompact(items[i])
	}

	budget := CompactTokenBudget
	if req.Detail == DetailTimeline {
		budget = CompactTokenBudget
	}
	_, truncated := truncateToBudget(rendered, TokenBudget(budget))
	cut := len(items)
	if truncated {
		for i, total := 0, 0; i < len(rendered); i++ {
			total += len(rendered[i])
			if i > 0 && total > TokenBudget(budget) {
				cut = i
				break
			}
		}
	}
	return &Response{Items: items[:cut], Truncated: truncated, TotalCount: len(results)}, nil
}

func recallView(ctx context.Context, obsRepo *repository.ObservationRepository, req Request) (*Response, error) {
	ids := req.IDs
	if len(ids) == 0 && req.ID != "" {
		ids = []string{req.ID}
	}

	var obs []*model.Observation
	if len(ids) > 0 {
		for _, id := range ids {
			o, err := obsRepo.FindByID(ctx, id, req.IncludePurged)
			if err != nil {
				return nil, err
			}
			if o != nil {
				obs = append(obs, o)
			}
		}
	} else if req.Title != "" {
		found, err := obsRepo.List(ctx, repository.ListFilter{IncludeDeleted: req.IncludePurged, Limit: maxRecallLimit})
		if err != nil {
			return nil, err
		}
		for _, o := range found {
			if o.Title != nil && strings.Contains(strings.ToLower(*o.Title), strings.ToLower(req.Title)) {
				obs = append(obs, o)
			}
		}
	}

	rendered := make([]string, len(obs))
	items := make([]Item, len(obs))
	for i, o := range obs {
		items[i] = itemFromObservation(o, req.Detail)
		rendered[i] = items[i].Content
		if rendered[i] == "" {
			rendered[i] = items[i].Snippet
		}
	}

	budget := FullViewTokenBudget
	if req.Detail != DetailFull {
		budget = CompactTokenBudget
	}
	_, truncated := truncateToBudget(rendered, TokenBudget(budget))
	cut := len(items)
	if truncated {
		total := 0
		for i := range rendered {
			total += len(rendered[i])
			if i > 0 && total > TokenBudget(budget) {
				cut = i
				break
			}
		}
	}
	return &Response{Items: items[:cut], Truncated: truncated, TotalCount: len(obs)}, nil
}

func recallPurge(ctx context.Context, obsRepo *repository.ObservationRepository, req Request) (*Response, error) {
	if len(req.IDs) == 0 {
		return nil, ErrExplicitIDsRequired
	}
	var purged []string
	for _, id := range req.IDs {
		if err := obsRepo.SoftDelete(ctx, id); err != nil {
			return nil, err
		}
		purged = append(purged, id)
	}
	return &Response{Purged: purged}, nil
}

func recallRestore(ctx context.Context, obsRepo *repository.ObservationRepository, req Request) (*Response, error) {
	if len(req.IDs) == 0 {
		return nil, ErrExplicitIDsRequired
	}
	var restored []string
	for _, id := range req.IDs {
		if err := obsRepo.Restore(ctx, id); err != nil {
			return nil, err
		}
		restored = append(restored, id)
	}
	return &Response{Restored: restored}, nil
}

func itemFromObservation(o *model.Observation, detail Detail) Item {
	item := Item{ID: o.ID, Source: o.Source, CreatedAt: o.CreatedAt}
	if o.Title != nil {
		item.Title = *o.Title
	}
	switch detail {
	case DetailFull:
		item.Content = o.Content
	default:
		item.Snippet = snippet(o.Content, 200)
	}
	return item
}

func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func renderCompact(i Item) string {
	return fmt.Sprintf("%s|%s|%.3f|%s|%s|%s", i.ID, i.Title, i.Score, i.Snippet, i.Source, time.Unix(i.CreatedAt, 0).Format(time.RFC3339))
}
