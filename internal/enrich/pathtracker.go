package enrich

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kiosk404/agentmem/internal/llm"
	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/store"
)

const (
	debugErrorThreshold     = 0.5
	debugErrorWindow        = 5 * time.Minute
	debugPathTrigger        = 3
	debugResolveOnSuccesses = 3
)

type pathState string

const (
	pathIdle           pathState = "idle"
	pathPotentialDebug pathState = "potential_debug"
	pathActiveDebug    pathState = "active_debug"
)

type bufferedError struct {
	observation *model.Observation
	at          time.Time
}

// PathTracker is the debug-path state machine (spec §4.5), driven by the
// LLM processor's classifier output rather than a ticker. {idle,
// potential_debug, active_debug} map onto at most one active debug_paths
// row per project; "resolved" is a terminal DB state, not held here.
type PathTracker struct {
	mu sync.Mutex

	repo   *repository.DebugPathRepository
	client *llm.Client

	state                pathState
	errorBuffer          []bufferedError
	activePathID         string
	consecutiveSuccesses int
}

// NewPathTracker recovers in-flight state from the database so a server
// restart resumes an active path rather than losing it (spec §4.5 "server
// restart recovers the active path by querying for status='active'").
func NewPathTracker(ctx context.Context, db *store.DB, projectHash string, client *llm.Client) *PathTracker {
	repo := repository.NewDebugPathRepository(db, projectHash)
	t := &PathTracker{repo: repo, client: client, state: pathIdle}

	active, err := repo.ActivePath(ctx)
	if err != nil {
		logging.Warn("enrich: path tracker: recover active path: %v", err)
		return t
	}
	if active != nil {
		t.state = pathActiveDebug
		t.activePathID = active.ID
	}
	return t
}

// OnSignal is called by the LLM processor for every observation carrying a
// debug_signal. Safe for concurrent use across processor workers.
func (t *PathTracker) OnSignal(ctx context.Context, o *model.Observation, sig *llm.DebugSignal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch sig.Type {
	case "error":
		t.onError(ctx, o, sig)
	case "success":
		t.onSuccess(ctx, o, sig)
	case "attempt":
		t.onAttempt(ctx, o, sig)
	}
}

func (t *PathTracker) onError(ctx context.Context, o *model.Observation, sig *llm.DebugSignal) {
	if sig.Confidence < debugErrorThreshold {
		return
	}

	if t.state == pathActiveDebug {
		t.consecutiveSuccesses = 0
		t.appendWaypoint(ctx, o, waypointTypeFromHint(sig, model.WaypointError))
		return
	}

	t.state = pathPotentialDebug
	t.pruneErrorBuffer(time.Now())
	t.errorBuffer = append(t.errorBuffer, bufferedError{observation: o, at: time.Now()})

	if len(t.errorBuffer) >= debugPathTrigger {
		t.startActivePath(ctx)
	}
}

func (t *PathTracker) onSuccess(ctx context.Context, o *model.Observation, sig *llm.DebugSignal) {
	if t.state != pathActiveDebug {
		return
	}
	t.appendWaypoint(ctx, o, waypointTypeFromHint(sig, model.WaypointSuccess))
	t.consecutiveSuccesses++
	if t.consecutiveSuccesses >= debugResolveOnSuccesses {
		t.resolve(ctx, o)
	}
}

func (t *PathTracker) onAttempt(ctx context.Context, o *model.Observation, sig *llm.DebugSignal) {
	if t.state != pathActiveDebug {
		return
	}
	t.appendWaypoint(ctx, o, waypointTypeFromHint(sig, model.WaypointAttempt))
}

// pruneErrorBuffer drops buffered errors outside the trigger window (spec
// §4.5 "buffer pruned per tick" — here, pruned on each new signal).
func (t *PathTracker) pruneErrorBuffer(now time.Time) {
	kept := t.errorBuffer[:0]
	for _, be := range t.errorBuffer {
		if now.Sub(be.at) <= debugErrorWindow {
			kept = append(kept, be)
		}
	}
	t.errorBuffer = kept
}

func (t *PathTracker) startActivePath(ctx context.Context) {
	trigger := ""
	if len(t.errorBuffer) > 0 {
		trigger = snippetOf(t.errorBuffer[0].observation.Content, 200)
	}

	path, err := t.repo.StartPath(ctx, trigger)
	if err != nil {
		logging.Error("enrich: path tracker: start path: %v", err)
		t.state = pathPotentialDebug
		return
	}

	t.state = pathActiveDebug
	t.activePathID = path.ID
	t.consecutiveSuccesses = 0

	buffered := t.errorBuffer
	t.errorBuffer = nil
	for _, be := range buffered {
		t.appendWaypoint(ctx, be.observation, model.WaypointError)
	}
}

func (t *PathTracker) appendWaypoint(ctx context.Context, o *model.Observation, wt model.WaypointType) {
	if t.activePathID == "" {
		return
	}
	summary := snippetOf(o.Content, 200)
	if _, err := t.repo.AppendWaypoint(ctx, t.activePathID, &o.ID, wt, summary); err != nil {
		logging.Warn("enrich: path tracker: append waypoint: %v", err)
	}
}

// resolve marks the path resolved immediately, then generates the KISS
// summary off-thread (spec §4.5 "fire-and-forget generation of a
// multi-dimension KISS summary").
func (t *PathTracker) resolve(ctx context.Context, o *model.Observation) {
	pathID := t.activePathID
	t.appendWaypoint(ctx, o, model.WaypointResolution)

	resolutionSummary := "resolved after " + strconv.Itoa(debugResolveOnSuccesses) + " consecutive success signals"
	if err := t.repo.Resolve(ctx, pathID, resolutionSummary, ""); err != nil {
		logging.Error("enrich: path tracker: resolve path %s: %v", pathID, err)
	}

	t.state = pathIdle
	t.activePathID = ""
	t.consecutiveSuccesses = 0
	t.errorBuffer = nil

	client := t.client
	repo := t.repo
	go generateKISSSummary(repo, client, pathID, resolutionSummary)
}

func generateKISSSummary(repo *repository.DebugPathRepository, client *llm.Client, pathID, resolutionSummary string) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	waypoints, err := repo.Waypoints(ctx, pathID)
	if err != nil {
		logging.Warn("enrich: path tracker: load waypoints for kiss summary: %v", err)
		return
	}
	lines := make([]string, 0, len(waypoints))
	for _, wp := range waypoints {
		lines = append(lines, string(wp.Type)+": "+wp.Summary)
	}
	narrative := strings.Join(lines, "\n")

	kiss, err := client.SummarizeDebugPath(ctx, narrative)
	if err != nil {
		logging.Warn("enrich: path tracker: summarize debug path %s: %v", pathID, err)
		return
	}
	blob, err := json.Marshal(kiss)
	if err != nil {
		logging.Warn("enrich: path tracker: marshal kiss summary: %v", err)
		return
	}
	if err := repo.Resolve(ctx, pathID, resolutionSummary, string(blob)); err != nil {
		logging.Error("enrich: path tracker: attach kiss summary %s: %v", pathID, err)
	}
}

func waypointTypeFromHint(sig *llm.DebugSignal, fallback model.WaypointType) model.WaypointType {
	switch sig.WaypointHint {
	case "error":
		return model.WaypointError
	case "attempt":
		return model.WaypointAttempt
	case "failure":
		return model.WaypointFailure
	case "success":
		return model.WaypointSuccess
	case "pivot":
		return model.WaypointPivot
	case "revert":
		return model.WaypointRevert
	case "discovery":
		return model.WaypointDiscovery
	case "resolution":
		return model.WaypointResolution
	default:
		return fallback
	}
}

func snippetOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
