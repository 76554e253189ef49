package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/retrieval"
	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/validate"
)

// handlers holds the project-scoped repositories backing every tool.
type handlers struct {
	db          *store.DB
	projectHash string

	obs      *repository.ObservationRepository
	graph    *repository.GraphRepository
	debug    *repository.DebugPathRepository
	tools    *repository.ToolRegistryRepository
	stash    *repository.StashRepository
}

func newHandlers(c *Config) *handlers {
	return &handlers{
		db:          c.DB,
		projectHash: c.ProjectHash,
		obs:         repository.NewObservationRepository(c.DB, c.ProjectHash),
		graph:       repository.NewGraphRepository(c.DB, c.ProjectHash),
		debug:       repository.NewDebugPathRepository(c.DB, c.ProjectHash),
		tools:       repository.NewToolRegistryRepository(c.DB),
		stash:       repository.NewStashRepository(c.DB, c.ProjectHash),
	}
}

// registerAll declares the nine required tools (spec §4.7/§6). Every name
// is checked against validate.ToolName once, at registration, not per call.
func (h *handlers) registerAll(s *server.MCPServer) {
	register(s, "save-memory", "Save a memory directly, bypassing the hook pipeline.",
		mcp.WithString("text", mcp.Required(), mcp.Description("Content to save")),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithString("source", mcp.Description("Optional source label, defaults to user-saved")),
	)(h.saveMemory)

	register(s, "recall", "Search, view, purge, or restore saved memories.",
		mcp.WithString("action", mcp.Required(), mcp.Enum("search", "view", "purge", "restore")),
		mcp.WithString("query", mcp.Description("Free-text query for action=search")),
		mcp.WithString("id", mcp.Description("Single identifier for action=view")),
		mcp.WithString("title", mcp.Description("Title substring match for action=view")),
		mcp.WithArray("ids", mcp.Description("Identifiers for action=purge/restore")),
		mcp.WithString("detail", mcp.Enum("compact", "timeline", "full")),
		mcp.WithNumber("limit", mcp.Description("Result cap, max 20")),
		mcp.WithBoolean("include_purged", mcp.Description("Include soft-deleted rows")),
	)(h.recall)

	register(s, "query-graph", "Traverse the knowledge graph from a named node.",
		mcp.WithString("node_type", mcp.Required()),
		mcp.WithString("node_name", mcp.Required()),
		mcp.WithNumber("depth", mcp.Description("Traversal depth limit, default 2")),
	)(h.queryGraph)

	register(s, "graph-stats", "Summarize knowledge-graph node and edge counts.")(h.graphStats)

	register(s, "topic-context", "List recent topic-shift stashes.",
		mcp.WithNumber("limit", mcp.Description("Result cap, default 10")),
	)(h.topicContext)

	register(s, "status", "Report store reachability and availability of optional features.")(h.status)

	register(s, "discover-tools", "Search the tool registry by keyword.",
		mcp.WithString("keyword", mcp.Description("Optional substring filter")),
	)(h.discoverTools)

	register(s, "report-tools", "Summarize tool invocation counts for this project.")(h.reportTools)

	register(s, "debug-paths", "List, show, start, or resolve a debug path.",
		mcp.WithString("action", mcp.Required(), mcp.Enum("list", "show", "start", "resolve")),
		mcp.WithString("id", mcp.Description("Debug path identifier for action=show/resolve")),
		mcp.WithString("summary", mcp.Description("Trigger summary for action=start, resolution summary for action=resolve")),
	)(h.debugPaths)
}

// register validates name once against validate.ToolName, then returns a
// closure that binds a typed handler to the declared tool, mirroring the
// teacher's Config->Complete->New idiom of failing fast on malformed
// configuration rather than per-request.
func register(s *server.MCPServer, name, description string, opts ...mcp.ToolOption) func(handlerFunc) {
	if !validate.ToolName(name) {
		logging.Error("toolserver: refusing to register illegal tool name %q", name)
		return func(handlerFunc) {}
	}
	tool := mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)...)
	return func(fn handlerFunc) {
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return fn(ctx, req)
		})
	}
}

type handlerFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// argsInto decodes a tool call's arguments into dst via a JSON round trip,
// since mcp-go hands handlers a loosely-typed map rather than a concrete
// struct, then validates dst's struct tags.
func argsInto(req mcp.CallToolRequest, dst interface{}) error {
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return validate.Struct(dst)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(blob)), nil
}

// --- save-memory ---

type saveMemoryArgs struct {
	Text   string `json:"text" validate:"required,min=1,max=100000"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

func (h *handlers) saveMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args saveMemoryArgs
	if err := argsInto(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source := args.Source
	if source == "" {
		source = "user-saved"
	}
	in := repository.CreateInput{Source: source, Content: args.Text}
	if args.Title != "" {
		in.Title = &args.Title
	}
	o, err := h.obs.Create(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"id": o.ID})
}

// --- recall ---

type recallArgs struct {
	Action        string   `json:"action" validate:"required,oneof=search view purge restore"`
	Query         string   `json:"query"`
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	IDs           []string `json:"ids"`
	Detail        string   `json:"detail"`
	Limit         int      `json:"limit"`
	IncludePurged bool     `json:"include_purged"`
}

func (h *handlers) recall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args recallArgs
	if err := argsInto(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := retrieval.Recall(ctx, h.db, h.projectHash, retrieval.Request{
		Action:        retrieval.Action(args.Action),
		Query:         args.Query,
		ID:            args.ID,
		Title:         args.Title,
		IDs:           args.IDs,
		Detail:        retrieval.Detail(args.Detail),
		Limit:         args.Limit,
		IncludePurged: args.IncludePurged,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp)
}

// --- query-graph ---

type queryGraphArgs struct {
	NodeType string `json:"node_type" validate:"required"`
	NodeName string `json:"node_name" validate:"required"`
	Depth    int    `json:"depth"`
}

func (h *handlers) queryGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args queryGraphArgs
	if err := argsInto(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	depth := args.Depth
	if depth <= 0 {
		depth = 2
	}
	seed, err := h.graph.FindNode(ctx, model.NodeType(args.NodeType), args.NodeName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if seed == nil {
		return jsonResult(map[string]interface{}{"nodes": []model.GraphNode{}, "edges": []model.GraphEdge{}})
	}
	nodes, edges, err := h.graph.Traverse(ctx, seed.ID, depth)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{"nodes": nodes, "edges": edges})
}

// --- graph-stats ---

func (h *handlers) graphStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.graph.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

// --- topic-context ---

type topicContextArgs struct {
	Limit int `json:"limit"`
}

func (h *handlers) topicContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args topicContextArgs
	if err := argsInto(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	stashes, err := h.stash.Recent(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stashes)
}

// --- status ---

func (h *handlers) status(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"project_hash":     h.projectHash,
		"vector_available": h.db.VectorAvailable(),
		"fts_available":    h.db.FTSAvailable(),
	})
}

// --- discover-tools ---

type discoverToolsArgs struct {
	Keyword string `json:"keyword"`
}

func (h *handlers) discoverTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args discoverToolsArgs
	if err := argsInto(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := h.tools.Discover(ctx, h.projectHash, args.Keyword)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entries)
}

// --- report-tools ---

func (h *handlers) reportTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.tools.Report(ctx, h.projectHash)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

// --- debug-paths ---

type debugPathsArgs struct {
	Action  string `json:"action" validate:"required,oneof=list show start resolve"`
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

func (h *handlers) debugPaths(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args debugPathsArgs
	if err := argsInto(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch args.Action {
	case "list":
		paths, err := h.debug.List(ctx, 20)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(paths)
	case "show":
		if args.ID == "" {
			return mcp.NewToolResultError("debug-paths: show requires id"), nil
		}
		path, err := h.debug.FindByID(ctx, args.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		waypoints, err := h.debug.Waypoints(ctx, args.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]interface{}{"path": path, "waypoints": waypoints})
	case "start":
		path, err := h.debug.StartPath(ctx, args.Summary)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(path)
	case "resolve":
		if args.ID == "" {
			return mcp.NewToolResultError("debug-paths: resolve requires id"), nil
		}
		if err := h.debug.Resolve(ctx, args.ID, args.Summary, ""); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]string{"id": args.ID, "status": "resolved"})
	default:
		return mcp.NewToolResultError("debug-paths: unknown action"), nil
	}
}
