package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/promptstudy-backend/internal/data/records"
	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

const generationStatusDocument = "generation_status.json"

// ErrNotPending is returned when a trial leaves the pending state twice.
var ErrNotPending = errors.New("generation status: trial is not pending")

// StatusTracker owns each participant's generation_status.json. All mutations run as a
// read-modify-write under the participant lock.
type StatusTracker interface {
	MarkPending(ctx context.Context, participant string, trial int, meta study.TrialMeta) error
	MarkCompleted(ctx context.Context, participant string, trial int, imagePath string) error
	MarkFailed(ctx context.Context, participant string, trial int, message string) error
	Get(ctx context.Context, participant string) (study.GenerationStatus, error)
}

type statusTracker struct {
	log   *logger.Logger
	store *records.Store
	now   func() time.Time
}

func NewStatusTracker(log *logger.Logger, store *records.Store) StatusTracker {
	return &statusTracker{
		log:   log.With("service", "StatusTracker"),
		store: store,
		now:   time.Now,
	}
}

func (t *statusTracker) timestamp() string {
	return t.now().UTC().Format(time.RFC3339Nano)
}

func (t *statusTracker) mutate(ctx context.Context, participant string, fn func(study.GenerationStatus) error) error {
	return t.store.WithParticipantLock(ctx, participant, func(ctx context.Context) error {
		doc := study.GenerationStatus{}
		if _, err := t.store.ReadDocument(ctx, participant, generationStatusDocument, &doc); err != nil {
			return err
		}
		if doc == nil {
			doc = study.GenerationStatus{}
		}
		if err := fn(doc); err != nil {
			return err
		}
		return t.store.WriteDocument(ctx, participant, generationStatusDocument, doc)
	})
}

// MarkPending starts (or restarts) tracking of a trial.
func (t *statusTracker) MarkPending(ctx context.Context, participant string, trial int, meta study.TrialMeta) error {
	return t.mutate(ctx, participant, func(doc study.GenerationStatus) error {
		doc[trial] = study.TrialStatus{
			Status:    study.StatePending,
			Prompt:    meta.Prompt,
			Theme:     meta.Theme,
			Condition: meta.Condition,
			Timestamp: t.timestamp(),
		}
		return nil
	})
}

func (t *statusTracker) MarkCompleted(ctx context.Context, participant string, trial int, imagePath string) error {
	return t.mutate(ctx, participant, func(doc study.GenerationStatus) error {
		cur, ok := doc[trial]
		if !ok || cur.Status != study.StatePending {
			return fmt.Errorf("trial %d: %w", trial, ErrNotPending)
		}
		cur.Status = study.StateCompleted
		cur.ImagePath = imagePath
		cur.Error = ""
		cur.Timestamp = t.timestamp()
		doc[trial] = cur
		return nil
	})
}

func (t *statusTracker) MarkFailed(ctx context.Context, participant string, trial int, message string) error {
	if message == "" {
		message = "image generation failed"
	}
	return t.mutate(ctx, participant, func(doc study.GenerationStatus) error {
		cur, ok := doc[trial]
		if !ok || cur.Status != study.StatePending {
			return fmt.Errorf("trial %d: %w", trial, ErrNotPending)
		}
		cur.Status = study.StateFailed
		cur.Error = message
		cur.ImagePath = ""
		cur.Timestamp = t.timestamp()
		doc[trial] = cur
		return nil
	})
}

// Get returns the participant's status document; an untracked participant has an empty one.
func (t *statusTracker) Get(ctx context.Context, participant string) (study.GenerationStatus, error) {
	doc := study.GenerationStatus{}
	if _, err := t.store.ReadDocument(ctx, participant, generationStatusDocument, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = study.GenerationStatus{}
	}
	return doc, nil
}
