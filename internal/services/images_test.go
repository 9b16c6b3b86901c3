package services

import (
	"context"
	"testing"

	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/apierr"
)

func TestCheckStatusBeforeAnyGeneration(t *testing.T) {
	h := newHarness(t)
	got, err := h.queries.CheckStatus(context.Background(), "P1")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if got != (GenerationReport{Status: StatusPending}) {
		t.Fatalf("unexpected report %+v", got)
	}
}

func TestCheckStatusReadyOnlyWhenAllTrackedComplete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for trial := 0; trial < 3; trial++ {
		_ = h.tracker.MarkPending(ctx, "P1", trial, study.TrialMeta{})
	}
	_ = h.tracker.MarkCompleted(ctx, "P1", 0, "P1/images/trial_00.png")
	_ = h.tracker.MarkFailed(ctx, "P1", 1, "boom")

	got, _ := h.queries.CheckStatus(ctx, "P1")
	want := GenerationReport{Status: StatusPending, CompletedTrials: 1, FailedTrials: 1, TotalTrials: 3}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}

	h2 := newHarness(t)
	_ = h2.tracker.MarkPending(ctx, "P1", 0, study.TrialMeta{})
	_ = h2.tracker.MarkCompleted(ctx, "P1", 0, "P1/images/trial_00.png")
	if got, _ := h2.queries.CheckStatus(ctx, "P1"); got.Status != StatusReady || got.CompletedTrials != 1 {
		t.Fatalf("expected ready, got %+v", got)
	}
}

func TestListImagesSortedAndCompletedOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.queries.ListImages(ctx, "P1"); !apierr.IsKind(err, apierr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	for _, trial := range []int{5, 2, 4} {
		_ = h.tracker.MarkPending(ctx, "P1", trial, study.TrialMeta{Prompt: "p", Theme: "t", Condition: study.ConditionFluent})
	}
	_ = h.tracker.MarkCompleted(ctx, "P1", 5, "P1/images/trial_05.png")
	_ = h.tracker.MarkCompleted(ctx, "P1", 2, "P1/images/trial_02.png")

	got, err := h.queries.ListImages(ctx, "P1")
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(got) != 2 || got[0].TrialIndex != 2 || got[1].TrialIndex != 5 {
		t.Fatalf("unexpected entries %+v", got)
	}
	if got[0].ImagePath != "http://localhost:8000/static/P1/images/trial_02.png" {
		t.Fatalf("url %q", got[0].ImagePath)
	}
}

func TestQueriesRejectInvalidParticipant(t *testing.T) {
	h := newHarness(t)
	if _, err := h.queries.CheckStatus(context.Background(), "a/b"); !apierr.IsKind(err, apierr.KindSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

// A prompt for P1 trial 0 reports pending/0 until its job runs, then ready/1.
func TestPromptToReadyScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg, err := h.subs.SavePrompt(ctx, foxPrompt())
	if err != nil || msg != "Prompt saved and image generation initiated" {
		t.Fatalf("got %q %v", msg, err)
	}
	got, _ := h.queries.CheckStatus(ctx, "P1")
	if got.Status != StatusPending || got.CompletedTrials != 0 {
		t.Fatalf("before generation: %+v", got)
	}

	h.scheduler.runAll(t)

	got, _ = h.queries.CheckStatus(ctx, "P1")
	if got.Status != StatusReady || got.CompletedTrials != 1 {
		t.Fatalf("after generation: %+v", got)
	}
	imgs, err := h.queries.ListImages(ctx, "P1")
	if err != nil || len(imgs) != 1 || imgs[0].Prompt != "a red fox" {
		t.Fatalf("images %+v %v", imgs, err)
	}
}

func TestCheckStatusCountsQueuedTrials(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.subs.SavePrompt(ctx, foxPrompt()); err != nil {
		t.Fatalf("SavePrompt trial 0: %v", err)
	}
	h.scheduler.runAll(t)

	second := foxPrompt()
	second.TrialIndex = intPtr(1)
	if _, err := h.subs.SavePrompt(ctx, second); err != nil {
		t.Fatalf("SavePrompt trial 1: %v", err)
	}

	got, _ := h.queries.CheckStatus(ctx, "P1")
	want := GenerationReport{Status: StatusPending, CompletedTrials: 1, TotalTrials: 2}
	if got != want {
		t.Fatalf("with trial 1 queued: got %+v want %+v", got, want)
	}

	h.scheduler.runAll(t)
	got, _ = h.queries.CheckStatus(ctx, "P1")
	if got.Status != StatusReady || got.CompletedTrials != 2 {
		t.Fatalf("after both trials: %+v", got)
	}
}
