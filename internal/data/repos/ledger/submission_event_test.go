package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/yungbote/promptstudy-backend/internal/data/repos/testutil"
	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/dbctx"
)

func TestSubmissionEventRepoCreateAndList(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewSubmissionEventRepo(db, testutil.Logger(t))

	trial := 2
	ev1, err := NewEvent(study.KindPrompt, "ledger-P1", &trial, "2024-05-01T10:00:00Z", map[string]any{"selectedPrompt": "a red fox"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	ev2, _ := NewEvent(study.KindSurvey, "ledger-P1", nil, "2024-05-01T09:00:00Z", map[string]any{"genAiExperience": "basic"})
	ev3, _ := NewEvent(study.KindSurvey, "ledger-P2", nil, "2024-05-01T09:00:00Z", map[string]any{})

	created, err := repo.Create(dbctx.Context{Ctx: ctx, Tx: tx}, []*study.SubmissionEvent{ev1, ev2, ev3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, ev := range created {
		if ev.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Fatalf("expected generated id")
		}
	}

	got, err := repo.ListByParticipant(dbctx.Context{Ctx: ctx, Tx: tx}, "ledger-P1")
	if err != nil {
		t.Fatalf("ListByParticipant: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	var found bool
	for _, ev := range got {
		if ev.Kind != study.KindPrompt {
			continue
		}
		found = true
		if ev.TrialIndex == nil || *ev.TrialIndex != 2 {
			t.Fatalf("trial index not persisted: %+v", ev.TrialIndex)
		}
		var payload map[string]any
		if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload["selectedPrompt"] != "a red fox" {
			t.Fatalf("payload %s %v", ev.Payload, err)
		}
	}
	if !found {
		t.Fatalf("prompt event missing")
	}

	counts, err := repo.CountByKind(dbctx.Context{Ctx: ctx, Tx: tx})
	if err != nil {
		t.Fatalf("CountByKind: %v", err)
	}
	if counts[study.KindSurvey] < 2 || counts[study.KindPrompt] < 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestCreateEmpty(t *testing.T) {
	repo := NewSubmissionEventRepo(nil, testutil.Logger(t))
	out, err := repo.Create(dbctx.Context{Ctx: context.Background()}, nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("unexpected %v %v", out, err)
	}
}
