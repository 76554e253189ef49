package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kiosk404/agentmem/internal/model"
)

// ClassificationResult is the classifier's verdict on one observation.
type ClassificationResult struct {
	Signal      bool                  `json:"signal"`
	Kind        *model.Classification `json:"kind,omitempty"`
	DebugSignal *DebugSignal          `json:"debug_signal,omitempty"`
}

// DebugSignal carries the optional sub-object the classifier may attach when
// it believes the observation reports an error, attempt, or success relevant
// to the debug path state machine.
type DebugSignal struct {
	Type         string  `json:"type"`
	Confidence   float64 `json:"confidence"`
	WaypointHint string  `json:"waypoint_hint,omitempty"`
}

const classifySystemPrompt = `You classify a single captured development observation.
Respond with a single JSON object: {"signal": bool, "kind": "discovery"|"problem"|"solution"|null, "debug_signal": {"type": "error"|"attempt"|"success", "confidence": number 0-1, "waypoint_hint": string}|null}.
"signal" is false for noise (navigation, boilerplate, irrelevant chatter). Respond with JSON only, no prose, no code fences.`

// Classify asks the configured model whether an observation is signal or
// noise, and if signal, which kind and whether it carries a debug-path
// signal.
func (c *Client) Classify(ctx context.Context, content string) (*ClassificationResult, error) {
	reply, err := c.Complete(ctx, classifySystemPrompt, content)
	if err != nil {
		return nil, err
	}
	var result ClassificationResult
	if err := unmarshalJSONLenient(reply, &result); err != nil {
		return nil, fmt.Errorf("llm: classify: parse response: %w", err)
	}
	return &result, nil
}

// ExtractedEntity is one candidate knowledge-graph node surfaced by the
// entity extractor, prior to the quality gate in the curation agent.
type ExtractedEntity struct {
	Type       model.NodeType `json:"type"`
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
}

const extractSystemPrompt = `Extract named entities (files, projects, references, decisions, problems, solutions) from this development observation.
Respond with a single JSON object: {"entities": [{"type": "file"|"project"|"reference"|"decision"|"problem"|"solution", "name": string, "confidence": number 0-1}]}.
Omit vague or generic names. Respond with JSON only.`

// Extract returns candidate entities mentioned in content.
func (c *Client) Extract(ctx context.Context, content string) ([]ExtractedEntity, error) {
	reply, err := c.Complete(ctx, extractSystemPrompt, content)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Entities []ExtractedEntity `json:"entities"`
	}
	if err := unmarshalJSONLenient(reply, &parsed); err != nil {
		return nil, fmt.Errorf("llm: extract: parse response: %w", err)
	}
	return parsed.Entities, nil
}

// InferredRelation is a candidate edge between two already-persisted nodes.
type InferredRelation struct {
	SourceName string         `json:"source"`
	TargetName string         `json:"target"`
	Type       model.EdgeType `json:"type"`
	Weight     float64        `json:"weight"`
}

const inferSystemPrompt = `Given this observation and the entities found in it, infer relationships between the entities.
Entity relationship types: related_to, solved_by, caused_by, modifies, informed_by, references, verified_by, preceded_by.
Respond with a single JSON object: {"relations": [{"source": string, "target": string, "type": string, "weight": number 0-1}]}.
Only propose relationships directly supported by the text. Respond with JSON only.`

// InferRelations proposes edges among the names in entityNames, given the
// observation content they were extracted from.
func (c *Client) InferRelations(ctx context.Context, content string, entityNames []string) ([]InferredRelation, error) {
	prompt := fmt.Sprintf("Entities: %s\n\nObservation:\n%s", strings.Join(entityNames, ", "), content)
	reply, err := c.Complete(ctx, inferSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Relations []InferredRelation `json:"relations"`
	}
	if err := unmarshalJSONLenient(reply, &parsed); err != nil {
		return nil, fmt.Errorf("llm: infer: parse response: %w", err)
	}
	return parsed.Relations, nil
}

const kissSummarySystemPrompt = `Summarize this resolved debugging path across four dimensions: what broke, what was tried, what fixed it, and what to remember next time.
Respond with a single JSON object: {"what_broke": string, "what_was_tried": string, "what_fixed_it": string, "lesson": string}. Respond with JSON only.`

// KISSSummary is the multi-dimension summary generated when a debug path
// auto-resolves.
type KISSSummary struct {
	WhatBroke    string `json:"what_broke"`
	WhatWasTried string `json:"what_was_tried"`
	WhatFixedIt  string `json:"what_fixed_it"`
	Lesson       string `json:"lesson"`
}

// SummarizeDebugPath produces a KISS summary from the path's waypoint
// narrative, fire-and-forget from the path tracker's perspective.
func (c *Client) SummarizeDebugPath(ctx context.Context, narrative string) (*KISSSummary, error) {
	reply, err := c.Complete(ctx, kissSummarySystemPrompt, narrative)
	if err != nil {
		return nil, err
	}
	var summary KISSSummary
	if err := unmarshalJSONLenient(reply, &summary); err != nil {
		return nil, fmt.Errorf("llm: kiss summary: parse response: %w", err)
	}
	return &summary, nil
}

const sessionSummarySystemPrompt = `Summarize this development session in 2-3 sentences for a future session's context. Plain text, no JSON, no preamble.`

// SummarizeSession produces the free-text summary stored on session end and
// surfaced at the next session's start.
func (c *Client) SummarizeSession(ctx context.Context, observations []string) (string, error) {
	reply, err := c.Complete(ctx, sessionSummarySystemPrompt, strings.Join(observations, "\n---\n"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

var codeFenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// unmarshalJSONLenient strips markdown code fences and locates the first
// enclosing bracket/brace before unmarshaling, since text-completion models
// routinely wrap JSON in prose or fences despite instructions not to.
func unmarshalJSONLenient(raw string, out interface{}) error {
	text := strings.TrimSpace(raw)
	if m := codeFenceRE.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON object found in response")
	}
	open := text[start]
	close := byte('}')
	if open == '[' {
		close = ']'
	}
	end := strings.LastIndexByte(text, close)
	if end < start {
		return fmt.Errorf("no closing %q found in response", close)
	}
	return json.Unmarshal([]byte(text[start:end+1]), out)
}
