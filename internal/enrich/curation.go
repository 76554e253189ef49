package enrich

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/vecenc"
)

const (
	curationTickInterval = 5 * time.Minute

	dedupCosineThreshold  = 0.95
	dedupJaccardThreshold = 0.85
	dedupScanLimit        = 100

	stalenessWindow = 24 * time.Hour

	pruneMaxContentLen = 20
	pruneMinAge        = 90 * 24 * time.Hour

	decayAge    = 30 * 24 * time.Hour
	decayFactor = 0.95
	decayFloor  = 0.05
)

// CurationAgent runs the six independent maintenance sweeps of spec §4.5 on
// a 5-minute tick. Each step is wrapped in its own recover() guard so one
// failing step never blocks the rest, and each appends a line to a
// cumulative per-tick report.
type CurationAgent struct {
	db       *store.DB
	obs      *repository.ObservationRepository
	graph    *repository.GraphRepository
	interval time.Duration
}

func NewCurationAgent(db *store.DB, projectHash string, interval time.Duration) *CurationAgent {
	if interval <= 0 {
		interval = curationTickInterval
	}
	return &CurationAgent{
		db:       db,
		obs:      repository.NewObservationRepository(db, projectHash),
		graph:    repository.NewGraphRepository(db, projectHash),
		interval: interval,
	}
}

func (a *CurationAgent) Name() string            { return "curation-agent" }
func (a *CurationAgent) Interval() time.Duration { return a.interval }

func (a *CurationAgent) Tick(ctx context.Context) {
	report := make([]string, 0, 6)

	report = append(report, a.step("merge-duplicates", func() (string, error) { return a.mergeDuplicates(ctx) }))
	report = append(report, a.step("dedup-entities", func() (string, error) { return a.dedupEntities(ctx) }))
	report = append(report, a.step("degree-caps", func() (string, error) { return a.enforceDegreeCaps(ctx) }))
	report = append(report, a.step("staleness-sweep", func() (string, error) { return a.stalenessSweep(ctx) }))
	report = append(report, a.step("low-value-pruning", func() (string, error) { return a.pruneLowValue(ctx) }))
	report = append(report, a.step("temporal-decay", func() (string, error) { return a.temporalDecay(ctx) }))

	logging.Info("enrich: curation tick: %s", strings.Join(report, "; "))
}

// step runs one curation sweep behind its own recover() guard, matching the
// teacher's "each step is try/caught independently" idiom.
func (a *CurationAgent) step(name string, fn func() (string, error)) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = name + ": panic: " + toString(r)
		}
	}()
	line, err := fn()
	if err != nil {
		return name + ": error: " + err.Error()
	}
	return name + ": " + line
}

func toString(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "unknown panic"
}

// mergeDuplicates clusters recent embedded observations by cosine
// similarity >0.95 or Jaccard text similarity >0.85, consolidating each
// cluster onto its newest member with the cluster's mean embedding.
func (a *CurationAgent) mergeDuplicates(ctx context.Context) (string, error) {
	candidates, err := a.obs.DedupCandidates(ctx, dedupScanLimit)
	if err != nil {
		return "", err
	}

	used := make(map[string]bool, len(candidates))
	merged := 0
	for i, o := range candidates {
		if used[o.ID] {
			continue
		}
		var cluster []*model.Observation
		for j := i + 1; j < len(candidates); j++ {
			other := candidates[j]
			if used[other.ID] {
				continue
			}
			if isDuplicatePair(o, other) {
				cluster = append(cluster, other)
			}
		}
		if len(cluster) == 0 {
			continue
		}

		dupIDs := make([]string, 0, len(cluster))
		vectors := [][]float32{o.Embedding}
		for _, dup := range cluster {
			used[dup.ID] = true
			dupIDs = append(dupIDs, dup.ID)
			vectors = append(vectors, dup.Embedding)
		}
		if err := a.obs.MergeDuplicates(ctx, o.ID, dupIDs, meanVector(vectors)); err != nil {
			logging.Warn("enrich: curation: merge duplicates into %s: %v", o.ID, err)
			continue
		}
		merged += len(dupIDs)
	}
	return strconv.Itoa(merged) + " observations merged", nil
}

func isDuplicatePair(a, b *model.Observation) bool {
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		if vecenc.CosineSimilarity(a.Embedding, b.Embedding) > dedupCosineThreshold {
			return true
		}
	}
	return jaccardSimilarity(a.Content, b.Content) > dedupJaccardThreshold
}

// jaccardSimilarity computes word-set Jaccard similarity between two texts,
// mirroring internal/ingest's duplicate-suppression helper for curation's
// text-similarity fallback when embeddings are unavailable.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func meanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	mean := make([]float32, dim)
	n := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			mean[i] += x
		}
		n++
	}
	if n == 0 {
		return vectors[0]
	}
	for i := range mean {
		mean[i] /= float32(n)
	}
	return mean
}

// dedupEntities groups knowledge-graph nodes by (type, normalized name)
// (case-insensitive, whitespace/path normalized) and merges every
// duplicate onto the earliest-created node in its group.
func (a *CurationAgent) dedupEntities(ctx context.Context) (string, error) {
	nodes, err := a.graph.AllNodes(ctx)
	if err != nil {
		return "", err
	}

	groups := make(map[string]*model.GraphNode, len(nodes))
	merged := 0
	for _, n := range nodes {
		key := string(n.Type) + "|" + normalizeEntityName(n.Name)
		canonical, ok := groups[key]
		if !ok {
			groups[key] = n
			continue
		}
		if err := a.graph.MergeNodes(ctx, canonical.ID, n.ID); err != nil {
			logging.Warn("enrich: curation: merge node %s into %s: %v", n.ID, canonical.ID, err)
			continue
		}
		merged++
	}
	return strconv.Itoa(merged) + " nodes merged", nil
}

// normalizeEntityName lowercases, collapses whitespace, and unifies path
// separators so "Utils/Parser.go" and "utils\\parser.go" dedup together.
func normalizeEntityName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.Join(strings.Fields(name), " ")
}

func (a *CurationAgent) enforceDegreeCaps(ctx context.Context) (string, error) {
	trimmed, err := a.graph.EnforceDegreeCaps(ctx)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(trimmed) + " edges trimmed", nil
}

// stalenessSweep flags, but does not delete, nodes updated within the last
// 24 hours that carry contradictory edge types (spec §4.5 step 4); flags
// are surfaced only in the report line since no contradiction-flag column
// exists in the schema.
func (a *CurationAgent) stalenessSweep(ctx context.Context) (string, error) {
	nodes, err := a.graph.AllNodes(ctx)
	if err != nil {
		return "", err
	}
	cutoff := time.Now().Add(-stalenessWindow).Unix()
	flagged := 0
	for _, n := range nodes {
		if n.UpdatedAt < cutoff {
			continue
		}
		edges, err := a.graph.OutgoingEdges(ctx, n.ID)
		if err != nil {
			continue
		}
		if hasContradiction(edges) {
			flagged++
		}
	}
	return strconv.Itoa(flagged) + " nodes flagged", nil
}

func hasContradiction(edges []*model.GraphEdge) bool {
	hasCaused, hasSolved := false, false
	for _, e := range edges {
		switch e.Type {
		case model.EdgeCausedBy:
			hasCaused = true
		case model.EdgeSolvedBy:
			hasSolved = true
		}
	}
	return hasCaused && hasSolved
}

// pruneLowValue soft-deletes observations that are simultaneously short,
// unlinked, older than 90 days, and never user-saved (spec §4.5 step 5).
func (a *CurationAgent) pruneLowValue(ctx context.Context) (string, error) {
	cutoff := time.Now().Add(-pruneMinAge).Unix()
	candidates, err := a.obs.PruneCandidates(ctx, pruneMaxContentLen, cutoff)
	if err != nil {
		return "", err
	}
	pruned := 0
	for _, o := range candidates {
		if err := a.obs.SoftDelete(ctx, o.ID); err != nil {
			logging.Warn("enrich: curation: prune %s: %v", o.ID, err)
			continue
		}
		pruned++
	}
	return strconv.Itoa(pruned) + " observations pruned", nil
}

func (a *CurationAgent) temporalDecay(ctx context.Context) (string, error) {
	decayed, deleted, err := a.graph.DecayEdgeWeights(ctx, int64(decayAge.Seconds()), decayFactor, decayFloor)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(decayed) + " edges decayed, " + strconv.Itoa(deleted) + " deleted", nil
}
