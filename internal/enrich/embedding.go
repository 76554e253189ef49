package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kiosk404/agentmem/internal/embed"
	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/vecenc"
)

const embeddingTickInterval = 5 * time.Second
const embeddingBatchSize = 20

// embedRequest/embedResponse carry a correlation identifier across the
// bounded request/response channel pair connecting the main loop to the
// dedicated embedding-worker goroutine (spec §5 "requests carry a
// correlation identifier, and results are applied back to the database by
// the main loop").
type embedRequest struct {
	correlationID string
	text          string
}

type embedResponse struct {
	correlationID string
	vector        []float32
	err           error
}

// EmbeddingWorker selects observations with a null embedding and submits
// their text to an off-thread provider, writing results back onto the
// observation and the vector index.
type EmbeddingWorker struct {
	db          *store.DB
	projectHash string
	obsRepo     *repository.ObservationRepository
	cacheRepo   *repository.EmbeddingCacheRepository
	provider    embed.Provider
	topicShift  *TopicShiftDetector
	requests    chan embedRequest
	responses   chan embedResponse
	keywordOnly bool
	interval    time.Duration
}

// NewEmbeddingWorker builds the worker. interval overrides the spec's 5s
// default tick when positive (config.AgentOptions.EmbeddingIntervalMS),
// otherwise the default applies.
func NewEmbeddingWorker(db *store.DB, projectHash string, provider embed.Provider, topicShift *TopicShiftDetector, interval time.Duration) *EmbeddingWorker {
	if interval <= 0 {
		interval = embeddingTickInterval
	}
	w := &EmbeddingWorker{
		db:          db,
		projectHash: projectHash,
		obsRepo:     repository.NewObservationRepository(db, projectHash),
		cacheRepo:   repository.NewEmbeddingCacheRepository(db),
		provider:    provider,
		topicShift:  topicShift,
		requests:    make(chan embedRequest, embeddingBatchSize),
		responses:   make(chan embedResponse, embeddingBatchSize),
		interval:    interval,
	}
	go w.run()
	return w
}

func (w *EmbeddingWorker) Name() string            { return "embedding-worker" }
func (w *EmbeddingWorker) Interval() time.Duration { return w.interval }

// run is the dedicated worker goroutine owning the embedding provider; it is
// never reentered concurrently (spec §5 "the embedding model is owned
// exclusively by the worker thread").
func (w *EmbeddingWorker) run() {
	for req := range w.requests {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		vec, err := w.provider.EmbedQuery(ctx, req.text)
		cancel()
		w.responses <- embedResponse{correlationID: req.correlationID, vector: vec, err: err}
	}
}

func (w *EmbeddingWorker) Tick(ctx context.Context) {
	if w.keywordOnly {
		return
	}

	pending, err := w.obsRepo.ListWithNullEmbedding(ctx, embeddingBatchSize)
	if err != nil {
		logging.Error("enrich: list unembedded observations: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	pendingByID := make(map[string]string, len(pending))
	for _, o := range pending {
		hash := hashContent(o.Content)
		if cached, err := w.cacheRepo.Get(ctx, w.provider.ID(), w.provider.Model(), hash); err == nil && cached != nil {
			w.apply(ctx, o.ID, cached)
			continue
		}
		pendingByID[o.ID] = hash
		w.requests <- embedRequest{correlationID: o.ID, text: o.Content}
	}

	for range pendingByID {
		select {
		case resp := <-w.responses:
			if resp.err != nil {
				logging.Warn("enrich: embed %s: %v", resp.correlationID, resp.err)
				w.keywordOnly = true
				continue
			}
			w.apply(ctx, resp.correlationID, resp.vector)
			if hash, ok := pendingByID[resp.correlationID]; ok {
				if err := w.cacheRepo.Put(ctx, w.provider.ID(), w.provider.Model(), hash, resp.vector); err != nil {
					logging.Warn("enrich: cache embedding: %v", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *EmbeddingWorker) apply(ctx context.Context, observationID string, vector []float32) {
	if err := w.obsRepo.UpdateEmbedding(ctx, observationID, vector, w.provider.ID(), w.provider.Model()); err != nil {
		logging.Error("enrich: update embedding for %s: %v", observationID, err)
		return
	}
	if w.db.VectorAvailable() {
		if err := upsertVectorRow(ctx, w.db, observationID, vector); err != nil {
			logging.Warn("enrich: upsert vector row for %s: %v", observationID, err)
		}
	}

	if w.topicShift == nil {
		return
	}
	o, err := w.obsRepo.FindByID(ctx, observationID, false)
	if err != nil || o == nil {
		return
	}
	w.topicShift.OnEmbeddingUpdate(ctx, w.projectHash, o)
}

func upsertVectorRow(ctx context.Context, db *store.DB, observationID string, vector []float32) error {
	conn, err := db.Conn().Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.ExecContext(ctx,
		`INSERT INTO observations_vec(rowid, embedding) SELECT rowid, ? FROM observations WHERE id = ?
		 ON CONFLICT(rowid) DO UPDATE SET embedding = excluded.embedding`,
		vecenc.EncodeJSON(vector), observationID)
	return err
}

// hashContent returns the SHA-256 hash of text, grounded on the teacher's
// memory-core/internal.HashText, used as the embedding cache's content key.
func hashContent(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
