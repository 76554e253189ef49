package enrich

import (
	"context"
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
	llmTickInterval  = 30 * time.Second
	llmConcurrency   = 3
	llmBatchSize     = 30
	minEntityNameLen = 3
)

var vaguePrefixes = []string{"the ", "a ", "an ", "this ", "that ", "it "}

// entityConfidenceThresholds are type-specific minimum confidences applied
// by the quality gate before an extracted entity is upserted as a node
// (spec §4.5 "type-specific confidence thresholds").
var entityConfidenceThresholds = map[model.NodeType]float64{
	model.NodeTypeFile:      0.5,
	model.NodeTypeProject:   0.6,
	model.NodeTypeReference: 0.5,
	model.NodeTypeDecision:  0.7,
	model.NodeTypeProblem:   0.6,
	model.NodeTypeSolution:  0.6,
}

// LLMProcessor classifies unclassified observations, extracts entities, and
// infers relationships (spec §4.5). It drains work across N worker
// goroutines per tick.
type LLMProcessor struct {
	db          *store.DB
	client      *llm.Client
	graph       *repository.GraphRepository
	pathTracker *PathTracker
	interval    time.Duration
}

func NewLLMProcessor(db *store.DB, projectHash string, client *llm.Client, pathTracker *PathTracker, interval time.Duration) *LLMProcessor {
	if interval <= 0 {
		interval = llmTickInterval
	}
	return &LLMProcessor{
		db:          db,
		client:      client,
		graph:       repository.NewGraphRepository(db, projectHash),
		pathTracker: pathTracker,
		interval:    interval,
	}
}

func (p *LLMProcessor) Name() string            { return "llm-processor" }
func (p *LLMProcessor) Interval() time.Duration { return p.interval }

func (p *LLMProcessor) Tick(ctx context.Context) {
	pending, err := repository.ListUnclassified(ctx, p.db, llmBatchSize)
	if err != nil {
		logging.Error("enrich: llm processor: list unclassified: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	work := make(chan *model.Observation, len(pending))
	for _, o := range pending {
		work <- o
	}
	close(work)

	var wg sync.WaitGroup
	for i := 0; i < llmConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for o := range work {
				p.processOne(ctx, o)
			}
		}()
	}
	wg.Wait()
}

func (p *LLMProcessor) processOne(ctx context.Context, o *model.Observation) {
	obsRepo := repository.NewObservationRepository(p.db, o.ProjectHash)

	classification, err := p.client.Classify(ctx, o.Content)
	if err != nil {
		logging.Warn("enrich: llm processor: classify %s: %v", o.ID, err)
		return // left unclassified for retry on the next tick
	}

	if !classification.Signal {
		if err := obsRepo.UpdateClassification(ctx, o.ID, model.ClassificationNoise); err != nil {
			logging.Error("enrich: llm processor: mark noise %s: %v", o.ID, err)
		}
		return
	}

	kind := model.ClassificationDiscovery
	if classification.Kind != nil {
		kind = *classification.Kind
	}
	if err := obsRepo.UpdateClassification(ctx, o.ID, kind); err != nil {
		logging.Error("enrich: llm processor: classify %s: %v", o.ID, err)
		return
	}

	if classification.DebugSignal != nil && p.pathTracker != nil {
		p.pathTracker.OnSignal(ctx, o, classification.DebugSignal)
	}

	entities, err := p.client.Extract(ctx, o.Content)
	if err != nil {
		logging.Warn("enrich: llm processor: extract %s: %v", o.ID, err)
		return
	}

	var passed []string
	for _, e := range entities {
		if !qualityGate(e) {
			continue
		}
		if _, err := p.graph.UpsertNode(ctx, e.Type, e.Name, nil, o.ID); err != nil {
			logging.Warn("enrich: llm processor: upsert node %q: %v", e.Name, err)
			continue
		}
		passed = append(passed, e.Name)
	}

	if len(passed) < 2 {
		return
	}

	relations, err := p.client.InferRelations(ctx, o.Content, passed)
	if err != nil {
		logging.Warn("enrich: llm processor: infer relations %s: %v", o.ID, err)
		return
	}
	for _, rel := range relations {
		source, err := p.graph.FindNodeByName(ctx, rel.SourceName)
		if err != nil || source == nil {
			continue
		}
		target, err := p.graph.FindNodeByName(ctx, rel.TargetName)
		if err != nil || target == nil {
			continue
		}
		weight := rel.Weight
		if weight <= 0 || weight > 1 {
			weight = 0.5
		}
		if _, err := p.graph.UpsertEdge(ctx, source.ID, target.ID, rel.Type, weight, nil); err != nil {
			logging.Warn("enrich: llm processor: upsert edge %s->%s: %v", rel.SourceName, rel.TargetName, err)
		}
	}
}

func qualityGate(e llm.ExtractedEntity) bool {
	name := strings.TrimSpace(e.Name)
	if len(name) < minEntityNameLen {
		return false
	}
	lower := strings.ToLower(name)
	for _, prefix := range vaguePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	threshold, ok := entityConfidenceThresholds[e.Type]
	if !ok {
		threshold = 0.5
	}
	return e.Confidence >= threshold
}
