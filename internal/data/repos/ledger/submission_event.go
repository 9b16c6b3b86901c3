package ledger

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/dbctx"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

type SubmissionEventRepo interface {
	Create(dbc dbctx.Context, events []*study.SubmissionEvent) ([]*study.SubmissionEvent, error)
	ListByParticipant(dbc dbctx.Context, prolificID string) ([]*study.SubmissionEvent, error)
	CountByKind(dbc dbctx.Context) (map[string]int64, error)
}

type submissionEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionEventRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionEventRepo {
	return &submissionEventRepo{
		db:  db,
		log: baseLog.With("repo", "SubmissionEventRepo"),
	}
}

// NewEvent builds a ledger row with payload encoded as JSON.
func NewEvent(kind, prolificID string, trialIndex *int, submittedAt string, payload any) (*study.SubmissionEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &study.SubmissionEvent{
		ProlificID:  prolificID,
		Kind:        kind,
		TrialIndex:  trialIndex,
		SubmittedAt: submittedAt,
		Payload:     datatypes.JSON(raw),
	}, nil
}

func (r *submissionEventRepo) Create(dbc dbctx.Context, events []*study.SubmissionEvent) ([]*study.SubmissionEvent, error) {
	if len(events) == 0 {
		return []*study.SubmissionEvent{}, nil
	}
	if err := dbc.DB(r.db).Create(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *submissionEventRepo) ListByParticipant(dbc dbctx.Context, prolificID string) ([]*study.SubmissionEvent, error) {
	var out []*study.SubmissionEvent
	if prolificID == "" {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("prolific_id = ?", prolificID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *submissionEventRepo) CountByKind(dbc dbctx.Context) (map[string]int64, error) {
	var rows []struct {
		Kind  string
		Count int64
	}
	if err := dbc.DB(r.db).
		Model(&study.SubmissionEvent{}).
		Select("kind, COUNT(*) AS count").
		Group("kind").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Kind] = row.Count
	}
	return out, nil
}
