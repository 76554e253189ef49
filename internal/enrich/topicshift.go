package enrich

import (
	"context"
	"math"

	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/vecenc"

	"github.com/google/uuid"
)

const (
	thresholdFloor = 0.15
	thresholdCeil  = 0.60
	ewmaAlpha      = 0.3
)

// TopicShiftDetector computes an adaptive per-session distance threshold and
// stashes the prior topic's observations when the threshold is exceeded
// (spec §4.5). It runs synchronously after each embedding write, not on its
// own ticker.
type TopicShiftDetector struct {
	db        *store.DB
	obsRepo   *repository.ObservationRepository
	threshold *repository.ThresholdRepository
	stash     *repository.StashRepository
	notifs    *repository.NotificationRepository
}

func NewTopicShiftDetector(db *store.DB, projectHash string) *TopicShiftDetector {
	return &TopicShiftDetector{
		db:        db,
		obsRepo:   repository.NewObservationRepository(db, projectHash),
		threshold: repository.NewThresholdRepository(db, projectHash),
		stash:     repository.NewStashRepository(db, projectHash),
		notifs:    repository.NewNotificationRepository(db, projectHash),
	}
}

// OnEmbeddingUpdate is invoked by the embedding worker immediately after it
// persists a new embedding.
func (d *TopicShiftDetector) OnEmbeddingUpdate(ctx context.Context, projectHash string, observation *model.Observation) {
	sessionID := ""
	if observation.SessionID != nil {
		sessionID = *observation.SessionID
	}
	if sessionID == "" {
		return
	}

	prior, err := d.obsRepo.LastEmbeddedInSession(ctx, sessionID, observation.RowID)
	if err != nil {
		logging.Error("enrich: topic-shift: load prior embedding: %v", err)
		return
	}
	if prior == nil || len(prior.Embedding) == 0 || len(observation.Embedding) == 0 {
		return
	}

	distance := 1 - vecenc.CosineSimilarity(observation.Embedding, prior.Embedding)

	state, err := d.threshold.Get(ctx, sessionID)
	if err != nil {
		logging.Error("enrich: topic-shift: load threshold state: %v", err)
		return
	}
	if state == nil {
		seed, ok, err := d.threshold.ProjectAverage(ctx)
		if err != nil {
			logging.Warn("enrich: topic-shift: project average seed: %v", err)
		}
		mean := thresholdFloor
		if ok {
			mean = seed
		}
		state = &model.ThresholdState{ProjectHash: projectHash, SessionID: sessionID, EWMAMean: mean, EWMAVariance: 0}
	}

	delta := distance - state.EWMAMean
	newMean := state.EWMAMean + ewmaAlpha*delta
	newVariance := (1-ewmaAlpha)*(state.EWMAVariance+ewmaAlpha*delta*delta)

	threshold := newMean + 1.5*math.Sqrt(newVariance)
	if threshold < thresholdFloor {
		threshold = thresholdFloor
	}
	if threshold > thresholdCeil {
		threshold = thresholdCeil
	}

	shifted := distance > threshold

	state.EWMAMean = newMean
	state.EWMAVariance = newVariance
	state.SampleCount++
	if err := d.threshold.Upsert(ctx, *state); err != nil {
		logging.Error("enrich: topic-shift: persist threshold state: %v", err)
	}

	decision := model.ShiftDecision{
		ID:            uuid.NewString(),
		ProjectHash:   projectHash,
		SessionID:     sessionID,
		ObservationID: observation.ID,
		Distance:      distance,
		Threshold:     threshold,
		EWMAMean:      newMean,
		EWMAVariance:  newVariance,
		Shifted:       shifted,
	}
	if err := d.threshold.LogDecision(ctx, decision); err != nil {
		logging.Error("enrich: topic-shift: log decision: %v", err)
	}

	if shifted {
		d.stashPriorTopic(ctx, sessionID)
	}
}

func (d *TopicShiftDetector) stashPriorTopic(ctx context.Context, sessionID string) {
	recent, err := d.obsRepo.List(ctx, repository.ListFilter{SessionID: &sessionID, Limit: 20})
	if err != nil {
		logging.Error("enrich: topic-shift: load recent observations for stash: %v", err)
		return
	}
	if len(recent) == 0 {
		return
	}

	ids := make([]string, 0, len(recent))
	snapshots := make([]model.ObservationSnapshot, 0, len(recent))
	for _, o := range recent {
		ids = append(ids, o.ID)
		snapshots = append(snapshots, model.ObservationSnapshot{ID: o.ID, Content: o.Content, Embedding: o.Embedding})
	}

	summary := "topic shift: " + recent[0].Content
	if len(summary) > 200 {
		summary = summary[:200]
	}

	if _, err := d.stash.Create(ctx, &sessionID, "prior topic", summary, ids, snapshots); err != nil {
		logging.Error("enrich: topic-shift: create stash: %v", err)
		return
	}
	if _, err := d.notifs.Create(ctx, &sessionID, "topic_shift", "topic shift detected, prior context stashed", nil); err != nil {
		logging.Warn("enrich: topic-shift: queue notification: %v", err)
	}
}
