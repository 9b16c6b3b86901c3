package services

import (
	"context"

	"github.com/yungbote/promptstudy-backend/internal/data/repos/ledger"
	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/dbctx"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

// SubmissionLedger mirrors accepted submissions into SQL. The CSV logs stay the record
// of truth, so a ledger failure never fails the request.
type SubmissionLedger interface {
	Record(ctx context.Context, kind, prolificID string, trialIndex *int, submittedAt string, payload any)
}

type nopLedger struct{}

func (nopLedger) Record(context.Context, string, string, *int, string, any) {}

func NopLedger() SubmissionLedger { return nopLedger{} }

type repoLedger struct {
	log  *logger.Logger
	repo ledger.SubmissionEventRepo
}

func NewSubmissionLedger(log *logger.Logger, repo ledger.SubmissionEventRepo) SubmissionLedger {
	if repo == nil {
		return nopLedger{}
	}
	return &repoLedger{log: log.With("service", "SubmissionLedger"), repo: repo}
}

func (l *repoLedger) Record(ctx context.Context, kind, prolificID string, trialIndex *int, submittedAt string, payload any) {
	ev, err := ledger.NewEvent(kind, prolificID, trialIndex, submittedAt, payload)
	if err == nil {
		_, err = l.repo.Create(dbctx.Context{Ctx: ctx}, []*study.SubmissionEvent{ev})
	}
	if err != nil {
		l.log.Warn("Ledger write failed", "kind", kind, "prolific_id", prolificID, "error", err.Error())
	}
}
