package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/store"
)

const sessionStartCharLimit = 6000

// highValueSources rank ahead of auto-captured sources in the session-start
// index (spec §4.6: "user-saved and slash-command-saved sources rank ahead
// of auto-captured").
var highValueSources = map[string]int{
	"user-saved":    2,
	"slash-command": 2,
}

// AssembleSessionStartContext builds the progressive-disclosure index
// written verbatim to the session-start hook's stdout (spec §4.6).
func AssembleSessionStartContext(ctx context.Context, db *store.DB, projectHash string) (string, error) {
	sessions := repository.NewSessionRepository(db, projectHash)
	obsRepo := repository.NewObservationRepository(db, projectHash)

	var b strings.Builder

	lastSession, err := sessions.LastEnded(ctx)
	if err != nil {
		return "", err
	}
	if lastSession != nil && lastSession.Summary != nil && *lastSession.Summary != "" {
		b.WriteString("Last session: ")
		b.WriteString(*lastSession.Summary)
		b.WriteString("\n\n")
	}

	obs, err := obsRepo.List(ctx, repository.ListFilter{Limit: 50})
	if err != nil {
		return "", err
	}
	prioritized := prioritizeObservations(obs)

	b.WriteString("Recent observations:\n")
	budget := sessionStartCharLimit - b.Len()

	for _, o := range prioritized {
		line := formatSessionStartLine(o)
		if len(line)+1 > budget {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
		budget -= len(line) + 1
	}

	return strings.TrimSpace(b.String()), nil
}

func prioritizeObservations(obs []*model.Observation) []*model.Observation {
	out := make([]*model.Observation, len(obs))
	copy(out, obs)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && priorityOf(out[j-1]) < priorityOf(out[j]) {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

func priorityOf(o *model.Observation) int {
	return highValueSources[o.Source]
}

func formatSessionStartLine(o *model.Observation) string {
	id := o.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("[%s] %s (%s)", id, snippet(o.Content, 120), relativeTime(o.CreatedAt))
}

func relativeTime(unix int64) string {
	d := time.Since(time.Unix(unix, 0))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
