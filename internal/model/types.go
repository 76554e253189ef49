// Package model holds the domain record types shared by the repository,
// search, ingestion, and enrichment layers. Grounded on the shape of
// entity/types.go in the teacher's memory-core plugin, generalized from a
// single file-chunk record family to the full observation/session/
// knowledge-graph/debug-path/tool-registry/stash model.
package model

// Classification is the closed enum attached to an observation once an
// enrichment pass has judged it.
type Classification string

const (
	ClassificationNoise     Classification = "noise"
	ClassificationDiscovery Classification = "discovery"
	ClassificationProblem   Classification = "problem"
	ClassificationSolution  Classification = "solution"
)

// Observation is a single captured unit of tool-use activity.
type Observation struct {
	RowID            int64
	ID               string
	ProjectHash      string
	SessionID        *string
	Source           string
	Title            *string
	Content          string
	Embedding        []float32
	EmbeddingModel   *string
	EmbeddingVersion *string
	Classification   *Classification
	CreatedAt        int64
	UpdatedAt        int64
	DeletedAt        *int64
}

// Session is a tool-use session scope.
type Session struct {
	ID          string
	ProjectHash string
	StartedAt   int64
	EndedAt     *int64
	Summary     *string
}

// NodeType is the closed enum of knowledge-graph node kinds.
type NodeType string

const (
	NodeTypeFile      NodeType = "File"
	NodeTypeProject   NodeType = "Project"
	NodeTypeReference NodeType = "Reference"
	NodeTypeDecision  NodeType = "Decision"
	NodeTypeProblem   NodeType = "Problem"
	NodeTypeSolution  NodeType = "Solution"
)

// GraphNode is a knowledge-graph vertex.
type GraphNode struct {
	ID             string
	Type           NodeType
	Name           string
	ProjectHash    string
	Metadata       map[string]interface{}
	ObservationIDs []string
	CreatedAt      int64
	UpdatedAt      int64
}

// EdgeType is the closed enum of knowledge-graph edge kinds.
type EdgeType string

const (
	EdgeRelatedTo  EdgeType = "related_to"
	EdgeSolvedBy   EdgeType = "solved_by"
	EdgeCausedBy   EdgeType = "caused_by"
	EdgeModifies   EdgeType = "modifies"
	EdgeInformedBy EdgeType = "informed_by"
	EdgeReferences EdgeType = "references"
	EdgeVerifiedBy EdgeType = "verified_by"
	EdgePrecededBy EdgeType = "preceded_by"
)

// MaxOutgoingEdges is the per-node degree cap (§3 Knowledge-graph edge).
const MaxOutgoingEdges = 50

// GraphEdge is a directed knowledge-graph edge.
type GraphEdge struct {
	ID        string
	SourceID  string
	TargetID  string
	Type      EdgeType
	Weight    float64
	Metadata  map[string]interface{}
	CreatedAt int64
}

// DebugPathStatus is the closed enum of debug-path lifecycle states.
type DebugPathStatus string

const (
	DebugPathActive    DebugPathStatus = "active"
	DebugPathResolved  DebugPathStatus = "resolved"
	DebugPathAbandoned DebugPathStatus = "abandoned"
)

// DebugPath is an ordered journey from an error cluster to a resolution.
type DebugPath struct {
	ID                 string
	ProjectHash        string
	Status             DebugPathStatus
	TriggerSummary     string
	ResolutionSummary  *string
	KISSSummary        *string // JSON blob
	StartedAt          int64
	ResolvedAt         *int64
}

// WaypointType is the closed enum of path-waypoint kinds.
type WaypointType string

const (
	WaypointError      WaypointType = "error"
	WaypointAttempt    WaypointType = "attempt"
	WaypointFailure    WaypointType = "failure"
	WaypointSuccess    WaypointType = "success"
	WaypointPivot      WaypointType = "pivot"
	WaypointRevert     WaypointType = "revert"
	WaypointDiscovery  WaypointType = "discovery"
	WaypointResolution WaypointType = "resolution"
)

// MaxWaypointsPerPath is the per-path waypoint cap (§3 Path waypoint).
const MaxWaypointsPerPath = 30

// PathWaypoint is a single point on a debug path.
type PathWaypoint struct {
	ID            string
	PathID        string
	ObservationID *string
	Type          WaypointType
	SequenceOrder int
	Summary       string
	CreatedAt     int64
}

// ToolType is the closed enum of registry entry kinds.
type ToolType string

const (
	ToolTypeMCPServer     ToolType = "mcp_server"
	ToolTypeSlashCommand  ToolType = "slash_command"
	ToolTypeSkill         ToolType = "skill"
	ToolTypePlugin        ToolType = "plugin"
	ToolTypeBuiltin       ToolType = "builtin"
)

// ToolScope is the closed enum of registry entry visibility.
type ToolScope string

const (
	ToolScopeGlobal  ToolScope = "global"
	ToolScopeProject ToolScope = "project"
	ToolScopePlugin  ToolScope = "plugin"
)

// ToolStatus is the closed enum of registry entry health.
type ToolStatus string

const (
	ToolStatusActive  ToolStatus = "active"
	ToolStatusStale   ToolStatus = "stale"
	ToolStatusDemoted ToolStatus = "demoted"
)

// ToolRegistryEntry describes one discoverable or configured tool.
type ToolRegistryEntry struct {
	Name         string
	Type         ToolType
	Scope        ToolScope
	ProjectHash  *string
	Source       string
	Description  *string
	UsageCount   int64
	LastUsedAt   *int64
	DiscoveredAt int64
	UpdatedAt    int64
	Status       ToolStatus
}

// StashStatus is the closed enum of stash lifecycle states.
type StashStatus string

const (
	StashStashed StashStatus = "stashed"
	StashResumed StashStatus = "resumed"
	StashExpired StashStatus = "expired"
)

// ObservationSnapshot is an embedded content+embedding copy captured inside
// a stash, independent of the live observations table.
type ObservationSnapshot struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Embedding []float32       `json:"embedding,omitempty"`
}

// Stash is a frozen snapshot of observations captured on topic shift.
type Stash struct {
	ID             string
	ProjectHash    string
	SessionID      *string
	TopicLabel     string
	Summary        string
	ObservationIDs []string
	Snapshot       []ObservationSnapshot
	Status         StashStatus
	CreatedAt      int64
	UpdatedAt      int64
}

// Notification is a user-facing record queued by an agent (e.g. the
// tool-suggestion formatter or the topic-shift detector).
type Notification struct {
	ID          string
	ProjectHash string
	SessionID   *string
	Kind        string
	Message     string
	Payload     map[string]interface{}
	CreatedAt   int64
	ReadAt      *int64
}

// ThresholdState is the persisted adaptive topic-shift detector state for
// one (project, session) pair.
type ThresholdState struct {
	ProjectHash  string
	SessionID    string
	EWMAMean     float64
	EWMAVariance float64
	SampleCount  int64
	UpdatedAt    int64
}

// ShiftDecision is one audit-trail row for a topic-shift evaluation,
// recorded whether or not a shift actually occurred.
type ShiftDecision struct {
	ID            string
	ProjectHash   string
	SessionID     string
	ObservationID string
	Distance      float64
	Threshold     float64
	EWMAMean      float64
	EWMAVariance  float64
	Shifted       bool
	CreatedAt     int64
}

// ToolUsageEvent records a single invocation of a registered tool.
type ToolUsageEvent struct {
	ToolName    string
	ProjectHash string
	Success     bool
	CreatedAt   int64
}
