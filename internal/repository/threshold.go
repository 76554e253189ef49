package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/store"
)

// ThresholdRepository persists per-session adaptive topic-shift detector
// state and its decision audit trail.
type ThresholdRepository struct {
	db          *store.DB
	projectHash string
}

func NewThresholdRepository(db *store.DB, projectHash string) *ThresholdRepository {
	return &ThresholdRepository{db: db, projectHash: projectHash}
}

// Get returns the persisted EWMA state for a session, or nil if the
// session has not yet produced a topic-shift evaluation.
func (r *ThresholdRepository) Get(ctx context.Context, sessionID string) (*model.ThresholdState, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT project_hash, session_id, ewma_mean, ewma_variance, sample_count, updated_at
		 FROM threshold_store WHERE project_hash = ? AND session_id = ?`,
		r.projectHash, sessionID)
	var s model.ThresholdState
	err := row.Scan(&s.ProjectHash, &s.SessionID, &s.EWMAMean, &s.EWMAVariance, &s.SampleCount, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ProjectAverage returns the persisted per-project average EWMA mean across
// all sessions, used to cold-start a brand new session's detector state.
func (r *ThresholdRepository) ProjectAverage(ctx context.Context) (mean float64, ok bool, err error) {
	var count int
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT COALESCE(AVG(ewma_mean), 0), COUNT(*) FROM threshold_store WHERE project_hash = ?`, r.projectHash)
	if err := row.Scan(&mean, &count); err != nil {
		return 0, false, err
	}
	return mean, count > 0, nil
}

// Upsert persists the updated EWMA state for a session.
func (r *ThresholdRepository) Upsert(ctx context.Context, s model.ThresholdState) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO threshold_store (project_hash, session_id, ewma_mean, ewma_variance, sample_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_hash, session_id) DO UPDATE SET
				ewma_mean = excluded.ewma_mean,
				ewma_variance = excluded.ewma_variance,
				sample_count = excluded.sample_count,
				updated_at = excluded.updated_at`,
			r.projectHash, s.SessionID, s.EWMAMean, s.EWMAVariance, s.SampleCount, time.Now().Unix())
		return err
	})
}

// LogDecision appends one shift-decision audit row, whether or not a shift
// occurred.
func (r *ThresholdRepository) LogDecision(ctx context.Context, d model.ShiftDecision) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		id := uuid.NewString()
		_, err := conn.ExecContext(ctx, `
			INSERT INTO shift_decisions (id, project_hash, session_id, observation_id, distance, threshold, ewma_mean, ewma_variance, shifted, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, r.projectHash, d.SessionID, d.ObservationID, d.Distance, d.Threshold, d.EWMAMean, d.EWMAVariance, d.Shifted, time.Now().Unix())
		return err
	})
}
