package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/store"
)

// GraphRepository accesses knowledge_graph_nodes and knowledge_graph_edges
// scoped to one project.
type GraphRepository struct {
	db          *store.DB
	projectHash string
}

func NewGraphRepository(db *store.DB, projectHash string) *GraphRepository {
	return &GraphRepository{db: db, projectHash: projectHash}
}

// UpsertNode inserts or updates a node keyed by (project_hash, type, name),
// appending observationID to its contributing-observations list if not
// already present. Name matching is exact at the SQL layer; callers
// (curation's entity dedup) are responsible for case/whitespace
// normalization before calling this so identical entities never duplicate.
func (r *GraphRepository) UpsertNode(ctx context.Context, nodeType model.NodeType, name string, metadata map[string]interface{}, observationID string) (*model.GraphNode, error) {
	var node *model.GraphNode
	err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
		existing, err := findNodeTx(ctx, conn, r.projectHash, nodeType, name)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		metaJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		if existing == nil {
			id := uuid.NewString()
			obsIDs := []string{}
			if observationID != "" {
				obsIDs = []string{observationID}
			}
			obsJSON, _ := json.Marshal(obsIDs)
			if _, err := conn.ExecContext(ctx, `
				INSERT INTO knowledge_graph_nodes (id, type, name, project_hash, metadata, observation_ids, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, nodeType, name, r.projectHash, string(metaJSON), string(obsJSON), now, now); err != nil {
				return fmt.Errorf("insert node: %w", err)
			}
			node = &model.GraphNode{ID: id, Type: nodeType, Name: name, ProjectHash: r.projectHash, Metadata: metadata, ObservationIDs: obsIDs, CreatedAt: now, UpdatedAt: now}
			return nil
		}

		obsIDs := existing.ObservationIDs
		if observationID != "" && !containsString(obsIDs, observationID) {
			obsIDs = append(obsIDs, observationID)
		}
		obsJSON, _ := json.Marshal(obsIDs)
		if _, err := conn.ExecContext(ctx,
			`UPDATE knowledge_graph_nodes SET metadata = ?, observation_ids = ?, updated_at = ? WHERE id = ?`,
			string(metaJSON), string(obsJSON), now, existing.ID); err != nil {
			return fmt.Errorf("update node: %w", err)
		}
		existing.Metadata = metadata
		existing.ObservationIDs = obsIDs
		existing.UpdatedAt = now
		node = existing
		return nil
	})
	return node, err
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func scanNode(row interface{ Scan(...any) error }) (*model.GraphNode, error) {
	var n model.GraphNode
	var metaJSON, obsJSON string
	if err := row.Scan(&n.ID, &n.Type, &n.Name, &n.ProjectHash, &metaJSON, &obsJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &n.Metadata)
	}
	if obsJSON != "" {
		_ = json.Unmarshal([]byte(obsJSON), &n.ObservationIDs)
	}
	return &n, nil
}

const nodeSelectList = `id, type, name, project_hash, metadata, observation_ids, created_at, updated_at`

func findNodeTx(ctx context.Context, conn *sql.Conn, projectHash string, nodeType model.NodeType, name string) (*model.GraphNode, error) {
	row := conn.QueryRowContext(ctx,
		`SELECT `+nodeSelectList+` FROM knowledge_graph_nodes WHERE project_hash = ? AND type = ? AND name = ?`,
		projectHash, nodeType, name)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// FindNode looks up a node by (type, name) within the bound project.
func (r *GraphRepository) FindNode(ctx context.Context, nodeType model.NodeType, name string) (*model.GraphNode, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+nodeSelectList+` FROM knowledge_graph_nodes WHERE project_hash = ? AND type = ? AND name = ?`,
		r.projectHash, nodeType, name)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// FindNodeByName looks up a node by name alone, regardless of type, for
// callers (the relationship inferrer) that only have an entity name string
// to resolve back to a node.
func (r *GraphRepository) FindNodeByName(ctx context.Context, name string) (*model.GraphNode, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+nodeSelectList+` FROM knowledge_graph_nodes WHERE project_hash = ? AND name = ? LIMIT 1`,
		r.projectHash, name)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// NodesByType lists nodes of a given type for the bound project.
func (r *GraphRepository) NodesByType(ctx context.Context, nodeType model.NodeType, limit int) ([]*model.GraphNode, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+nodeSelectList+` FROM knowledge_graph_nodes WHERE project_hash = ? AND type = ? ORDER BY updated_at DESC LIMIT ?`,
		r.projectHash, nodeType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GraphNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// OutgoingEdgeCount returns the number of outgoing edges from nodeID.
func (r *GraphRepository) OutgoingEdgeCount(ctx context.Context, nodeID string) (int, error) {
	var count int
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knowledge_graph_edges WHERE source_id = ?`, nodeID).Scan(&count)
	return count, err
}

// UpsertEdge inserts an edge, enforcing the 50-outgoing-edge cap: when the
// cap would be exceeded, the lowest-weight existing outgoing edge is
// evicted first (ties broken by oldest creation timestamp).
func (r *GraphRepository) UpsertEdge(ctx context.Context, sourceID, targetID string, edgeType model.EdgeType, weight float64, metadata map[string]interface{}) (*model.GraphEdge, error) {
	if weight < 0 || weight > 1 {
		return nil, fmt.Errorf("repository: edge weight %f out of bounds [0,1]", weight)
	}
	var edge *model.GraphEdge
	err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
		count, err := countOutgoingTx(ctx, conn, sourceID)
		if err != nil {
			return err
		}
		if count >= model.MaxOutgoingEdges {
			if err := evictLowestWeightEdgeTx(ctx, conn, sourceID); err != nil {
				return err
			}
		}
		id := uuid.NewString()
		now := time.Now().Unix()
		metaJSON, _ := json.Marshal(metadata)
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO knowledge_graph_edges (id, source_id, target_id, type, weight, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, sourceID, targetID, edgeType, weight, string(metaJSON), now); err != nil {
			return fmt.Errorf("insert edge: %w", err)
		}
		edge = &model.GraphEdge{ID: id, SourceID: sourceID, TargetID: targetID, Type: edgeType, Weight: weight, Metadata: metadata, CreatedAt: now}
		return nil
	})
	return edge, err
}

func countOutgoingTx(ctx context.Context, conn *sql.Conn, sourceID string) (int, error) {
	var count int
	err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_graph_edges WHERE source_id = ?`, sourceID).Scan(&count)
	return count, err
}

func evictLowestWeightEdgeTx(ctx context.Context, conn *sql.Conn, sourceID string) error {
	_, err := conn.ExecContext(ctx, `
		DELETE FROM knowledge_graph_edges WHERE id = (
			SELECT id FROM knowledge_graph_edges WHERE source_id = ?
			ORDER BY weight ASC, created_at ASC LIMIT 1
		)`, sourceID)
	return err
}

// OutgoingEdges returns edges leaving nodeID, used by query-graph traversal.
func (r *GraphRepository) OutgoingEdges(ctx context.Context, nodeID string) ([]*model.GraphEdge, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT id, source_id, target_id, type, weight, metadata, created_at FROM knowledge_graph_edges WHERE source_id = ?`,
		nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GraphEdge
	for rows.Next() {
		var e model.GraphEdge
		var metaJSON string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Type, &e.Weight, &metaJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// NodeByID looks up a node by its identifier within the bound project,
// used by traversal to fetch the next hop's node record.
func (r *GraphRepository) NodeByID(ctx context.Context, id string) (*model.GraphNode, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+nodeSelectList+` FROM knowledge_graph_nodes WHERE id = ? AND project_hash = ?`, id, r.projectHash)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// Traverse walks outgoing edges breadth-first up to depth hops from a seed
// node, never materializing an in-memory graph with back-pointers — each
// hop is a fresh table query, per the spec's design note against cyclic
// in-memory structures.
func (r *GraphRepository) Traverse(ctx context.Context, seedNodeID string, depth int) ([]*model.GraphNode, []*model.GraphEdge, error) {
	visited := map[string]bool{seedNodeID: true}
	frontier := []string{seedNodeID}
	var nodes []*model.GraphNode
	var edges []*model.GraphEdge

	seed, err := r.NodeByID(ctx, seedNodeID)
	if err != nil {
		return nil, nil, err
	}
	if seed != nil {
		nodes = append(nodes, seed)
	}

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, nodeID := range frontier {
			es, err := r.OutgoingEdges(ctx, nodeID)
			if err != nil {
				return nil, nil, err
			}
			for _, e := range es {
				edges = append(edges, e)
				if !visited[e.TargetID] {
					visited[e.TargetID] = true
					next = append(next, e.TargetID)
					n, err := r.NodeByID(ctx, e.TargetID)
					if err != nil {
						return nil, nil, err
					}
					if n != nil {
						nodes = append(nodes, n)
					}
				}
			}
		}
		frontier = next
	}
	return nodes, edges, nil
}

// Stats summarizes the knowledge graph for the bound project.
type Stats struct {
	NodeCount     int
	EdgeCount     int
	NodesByType   map[model.NodeType]int
}

// Stats returns node/edge counts and a per-type node breakdown.
func (r *GraphRepository) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{NodesByType: map[model.NodeType]int{}}
	if err := r.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knowledge_graph_nodes WHERE project_hash = ?`, r.projectHash).Scan(&s.NodeCount); err != nil {
		return nil, err
	}
	if err := r.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM knowledge_graph_edges e
		JOIN knowledge_graph_nodes n ON n.id = e.source_id
		WHERE n.project_hash = ?`, r.projectHash).Scan(&s.EdgeCount); err != nil {
		return nil, err
	}
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT type, COUNT(*) FROM knowledge_graph_nodes WHERE project_hash = ? GROUP BY type`, r.projectHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.NodeType
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			return nil, err
		}
		s.NodesByType[t] = c
	}
	return s, rows.Err()
}

// DecayEdgeWeights multiplies every edge's weight by factor (0,1) based on
// age, then deletes any edge that falls below floor. Used by the curation
// agent's temporal-decay step.
func (r *GraphRepository) DecayEdgeWeights(ctx context.Context, ageSeconds int64, factor, floor float64) (decayed, deleted int, err error) {
	err = r.db.WithTx(ctx, func(conn *sql.Conn) error {
		res, execErr := conn.ExecContext(ctx, `
			UPDATE knowledge_graph_edges SET weight = weight * ? WHERE id IN (
				SELECT e.id FROM knowledge_graph_edges e
				JOIN knowledge_graph_nodes n ON n.id = e.source_id
				WHERE n.project_hash = ? AND e.created_at < ?
			)`, factor, r.projectHash, time.Now().Unix()-ageSeconds)
		if execErr != nil {
			return execErr
		}
		n, _ := res.RowsAffected()
		decayed = int(n)

		res, execErr = conn.ExecContext(ctx, `
			DELETE FROM knowledge_graph_edges WHERE id IN (
				SELECT e.id FROM knowledge_graph_edges e
				JOIN knowledge_graph_nodes n ON n.id = e.source_id
				WHERE n.project_hash = ? AND e.weight < ?
			)`, r.projectHash, floor)
		if execErr != nil {
			return execErr
		}
		n, _ = res.RowsAffected()
		deleted = int(n)
		return nil
	})
	return decayed, deleted, err
}

// EnforceDegreeCaps trims every node approaching the cap down to the
// top-weighted MaxOutgoingEdges edges. Used by curation step 3 as a sweep,
// complementing the per-upsert eviction in UpsertEdge.
func (r *GraphRepository) EnforceDegreeCaps(ctx context.Context) (trimmed int, err error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT n.id FROM knowledge_graph_nodes n
		WHERE n.project_hash = ? AND (SELECT COUNT(*) FROM knowledge_graph_edges e WHERE e.source_id = n.id) > ?`,
		r.projectHash, model.MaxOutgoingEdges)
	if err != nil {
		return 0, err
	}
	var nodeIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		nodeIDs = append(nodeIDs, id)
	}
	rows.Close()

	for _, nodeID := range nodeIDs {
		err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
			res, execErr := conn.ExecContext(ctx, `
				DELETE FROM knowledge_graph_edges WHERE source_id = ? AND id NOT IN (
					SELECT id FROM knowledge_graph_edges WHERE source_id = ?
					ORDER BY weight DESC, created_at DESC LIMIT ?
				)`, nodeID, nodeID, model.MaxOutgoingEdges)
			if execErr != nil {
				return execErr
			}
			n, _ := res.RowsAffected()
			trimmed += int(n)
			return nil
		})
		if err != nil {
			return trimmed, err
		}
	}
	return trimmed, nil
}

// AllNodes returns every node for the bound project, used by curation's
// entity-dedup sweep which groups nodes in memory by normalized name.
func (r *GraphRepository) AllNodes(ctx context.Context) ([]*model.GraphNode, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+nodeSelectList+` FROM knowledge_graph_nodes WHERE project_hash = ? ORDER BY created_at ASC`,
		r.projectHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.GraphNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MergeNodes repoints every edge and contributing observation from
// duplicateID onto canonicalID, then deletes the duplicate node. Used by
// curation step 2 once the caller has decided two nodes name the same
// entity.
func (r *GraphRepository) MergeNodes(ctx context.Context, canonicalID, duplicateID string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		var canonicalObsJSON, dupObsJSON string
		if err := conn.QueryRowContext(ctx, `SELECT observation_ids FROM knowledge_graph_nodes WHERE id = ?`, canonicalID).Scan(&canonicalObsJSON); err != nil {
			return err
		}
		if err := conn.QueryRowContext(ctx, `SELECT observation_ids FROM knowledge_graph_nodes WHERE id = ?`, duplicateID).Scan(&dupObsJSON); err != nil {
			return err
		}
		var canonicalObs, dupObs []string
		_ = json.Unmarshal([]byte(canonicalObsJSON), &canonicalObs)
		_ = json.Unmarshal([]byte(dupObsJSON), &dupObs)
		for _, id := range dupObs {
			if !containsString(canonicalObs, id) {
				canonicalObs = append(canonicalObs, id)
			}
		}
		mergedObsJSON, err := json.Marshal(canonicalObs)
		if err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, `UPDATE knowledge_graph_edges SET source_id = ? WHERE source_id = ?`, canonicalID, duplicateID); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `UPDATE knowledge_graph_edges SET target_id = ? WHERE target_id = ?`, canonicalID, duplicateID); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx,
			`UPDATE knowledge_graph_nodes SET observation_ids = ?, updated_at = ? WHERE id = ?`,
			string(mergedObsJSON), time.Now().Unix(), canonicalID); err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, `DELETE FROM knowledge_graph_nodes WHERE id = ?`, duplicateID)
		return err
	})
}
