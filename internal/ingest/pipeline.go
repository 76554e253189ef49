package ingest

import (
	"context"

	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/retrieval"
	"github.com/kiosk404/agentmem/internal/store"
)

// Options configures one pipeline run, threaded through from cmd/memhook's
// flags and loaded configuration.
type Options struct {
	ProjectHash     string
	ExcludedPaths   []string
	RecentWindow    int
}

// Pipeline wires the repositories one hook invocation needs. A fresh
// Pipeline is constructed per invocation since the hook process is
// short-lived (spec §4.4).
type Pipeline struct {
	db     *store.DB
	opts   Options
	tools  *repository.ToolRegistryRepository
	obs    *repository.ObservationRepository
	router *Router
}

func NewPipeline(db *store.DB, opts Options) *Pipeline {
	return &Pipeline{
		db:     db,
		opts:   opts,
		tools:  repository.NewToolRegistryRepository(db),
		obs:    repository.NewObservationRepository(db, opts.ProjectHash),
		router: NewRouter(db, opts.ProjectHash),
	}
}

// Run executes all nine pipeline stages for ev, short-circuiting on reject.
// It never returns an error to the caller: stage failures are logged and
// swallowed so the hook always exits zero (spec §4.4).
func (p *Pipeline) Run(ctx context.Context, ev *Event) *Outcome {
	out := &Outcome{}

	// Stage 1: tool-usage recording, regardless of what follows.
	if ev.ToolName != "" {
		if err := p.tools.RecordUsage(ctx, ev.ToolName, p.opts.ProjectHash, ev.EventType != EventPostToolUseFailure); err != nil {
			logging.Warn("ingest: record tool usage: %v", err)
		}
	}

	// Stage 2: self-referential filter.
	if IsSelfReferential(ev.ToolName) {
		out.Rejected = true
		out.RejectReason = "self-referential tool"
		return p.finish(ctx, ev, out)
	}

	content, title := ExtractContent(ev)

	// Stage 3: privacy filter.
	content = RedactSecrets(content)
	if cwd, ok := ev.ToolInput["file_path"].(string); ok && PathExcluded(cwd, p.opts.ExcludedPaths) {
		out.Rejected = true
		out.RejectReason = "excluded path"
		return p.finish(ctx, ev, out)
	}

	// Stage 4: research-tool routing.
	if IsResearchTool(ev.ToolName) {
		out.Rejected = true
		out.RejectReason = "routed to research buffer"
		return p.finish(ctx, ev, out)
	}

	// Stage 6: admission filter (stage 5, content extraction, already ran above).
	if reason := admissionReject(content); reason != "" {
		out.Rejected = true
		out.RejectReason = reason
		return p.finish(ctx, ev, out)
	}

	// Stage 7: duplicate suppression.
	recent, err := p.recentContent(ctx, ev.SessionID)
	if err != nil {
		logging.Warn("ingest: load recent observations: %v", err)
	}
	if isNearDuplicate(content, recent) {
		out.Rejected = true
		out.RejectReason = "near-duplicate"
		return p.finish(ctx, ev, out)
	}

	// Stage 8: store.
	sessionID := ev.SessionID
	created, err := p.obs.Create(ctx, repository.CreateInput{
		SessionID: &sessionID,
		Source:    string(ev.EventType),
		Title:     title,
		Content:   content,
	})
	if err != nil {
		logging.Error("ingest: store observation: %v", err)
		out.Rejected = true
		out.RejectReason = "store failed"
		return p.finish(ctx, ev, out)
	}
	out.Stored = true
	out.ObservationID = created.ID

	return p.finish(ctx, ev, out)
}

// finish runs stage 9 (route-suggestion evaluation, on non-rejecting
// events) and, for SessionStart, assembles the context text written to
// stdout.
func (p *Pipeline) finish(ctx context.Context, ev *Event, out *Outcome) *Outcome {
	if !out.Rejected && ev.EventType == EventPostToolUse {
		if s, err := p.router.Evaluate(ctx, p.opts.ProjectHash, ev.SessionID, ev.ToolName, ev.ToolName); err != nil {
			logging.Warn("ingest: route evaluation: %v", err)
		} else if s != nil {
			if err := p.router.QueueSuggestion(ctx, ev.SessionID, s); err != nil {
				logging.Warn("ingest: queue suggestion: %v", err)
			}
		}
	}

	if ev.EventType == EventSessionStart {
		text, err := retrieval.AssembleSessionStartContext(ctx, p.db, p.opts.ProjectHash)
		if err != nil {
			logging.Warn("ingest: assemble session-start context: %v", err)
		} else {
			out.SessionStartText = text
		}
	}

	return out
}

func (p *Pipeline) recentContent(ctx context.Context, sessionID string) ([]string, error) {
	window := p.opts.RecentWindow
	if window <= 0 {
		window = recentWindowSize
	}
	obs, err := p.obs.List(ctx, repository.ListFilter{SessionID: &sessionID, Limit: window})
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(obs))
	for i, o := range obs {
		texts[i] = o.Content
	}
	return texts, nil
}
