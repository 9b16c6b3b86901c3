package services

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/apierr"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
	"github.com/yungbote/promptstudy-backend/internal/platform/openai"
)

func intPtr(i int) *int { return &i }

func foxTask() GenerationTask {
	return GenerationTask{Participant: "P1", Trial: 0, Prompt: "a red fox", Theme: "animals", Condition: study.ConditionCreative}
}

func TestRunStoresPNGAndCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.subs.SavePrompt(ctx, foxPrompt()); err != nil {
		t.Fatalf("SavePrompt: %v", err)
	}
	if err := h.generator.Run(ctx, foxTask()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(h.root, "P1", "images", "trial_00.png"))
	if err != nil {
		t.Fatalf("asset missing: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("asset is not a png: %v", err)
	}
	if len(h.download.urls) != 1 || h.download.urls[0] != "https://images.example/fox.png" {
		t.Fatalf("unexpected downloads %v", h.download.urls)
	}

	doc, _ := h.tracker.Get(ctx, "P1")
	if doc[0].Status != study.StateCompleted || doc[0].ImagePath != "P1/images/trial_00.png" {
		t.Fatalf("status %+v", doc[0])
	}

	rows := h.rows(t, "prompts")
	if len(rows) != 1 || rows[0]["generated"] != "true" {
		t.Fatalf("prompt row not flagged: %+v", rows)
	}
}

func TestRunUsesInlineBytesWithoutDownload(t *testing.T) {
	h := newHarness(t)
	h.images.gen = openai.ImageGeneration{Bytes: testPNG(t, 4, 4)}

	if err := h.generator.Run(context.Background(), foxTask()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.download.urls) != 0 {
		t.Fatalf("downloader should not be called, got %v", h.download.urls)
	}
}

func TestRunDownloadFailureMarksFailedAndLeavesNoAsset(t *testing.T) {
	h := newHarness(t)
	h.download.err = errors.New("dial tcp: no route to host")

	if err := h.generator.Run(context.Background(), foxTask()); err == nil {
		t.Fatalf("expected error")
	}

	doc, _ := h.tracker.Get(context.Background(), "P1")
	ts := doc[0]
	if ts.Status != study.StateFailed || ts.Error == "" || ts.ImagePath != "" {
		t.Fatalf("expected failed status with error, got %+v", ts)
	}
	if !strings.Contains(ts.Error, "download") {
		t.Fatalf("error should name the failing step: %q", ts.Error)
	}
	if _, err := os.Stat(filepath.Join(h.root, "P1", "images", "trial_00.png")); !os.IsNotExist(err) {
		t.Fatalf("asset should not exist, stat err=%v", err)
	}
}

func TestRunUndecodableImageFails(t *testing.T) {
	h := newHarness(t)
	h.download.body = []byte("<html>not an image</html>")

	if err := h.generator.Run(context.Background(), foxTask()); err == nil {
		t.Fatalf("expected error")
	}
	doc, _ := h.tracker.Get(context.Background(), "P1")
	if doc[0].Status != study.StateFailed {
		t.Fatalf("expected failed, got %+v", doc[0])
	}
}

func TestRunCompletesWhenDeadlinePassesAfterDownload(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.download.onDownload = cancel

	if err := h.generator.Run(ctx, foxTask()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc, _ := h.tracker.Get(context.Background(), "P1")
	if doc[0].Status != study.StateCompleted || doc[0].ImagePath != "P1/images/trial_00.png" {
		t.Fatalf("expected completed, got %+v", doc[0])
	}
	if _, err := os.Stat(filepath.Join(h.root, "P1", "images", "trial_00.png")); err != nil {
		t.Fatalf("asset missing: %v", err)
	}
}

func TestRunStatusWriteFailureRemovesAssetAndFails(t *testing.T) {
	h := newHarness(t)
	tracker := completeFailingTracker{StatusTracker: h.tracker, err: errors.New("bucket unavailable")}
	gen := NewImageGenerator(logger.Nop(), h.store, tracker, h.images, h.download, h.scheduler, nil, GenerationConfig{})

	if err := gen.Run(context.Background(), foxTask()); err == nil {
		t.Fatalf("expected error")
	}
	doc, _ := h.tracker.Get(context.Background(), "P1")
	if doc[0].Status != study.StateFailed || doc[0].Error == "" {
		t.Fatalf("expected failed, got %+v", doc[0])
	}
	if _, err := os.Stat(filepath.Join(h.root, "P1", "images", "trial_00.png")); !os.IsNotExist(err) {
		t.Fatalf("asset should be removed, stat err=%v", err)
	}
}

func TestScheduleRecordsPendingBeforeJobRuns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.generator.Schedule(ctx, foxTask()); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	doc, _ := h.tracker.Get(ctx, "P1")
	if doc[0].Status != study.StatePending || doc[0].Prompt != "a red fox" {
		t.Fatalf("expected pending entry, got %+v", doc[0])
	}
	h.scheduler.runAll(t)
	doc, _ = h.tracker.Get(ctx, "P1")
	if doc[0].Status != study.StateCompleted {
		t.Fatalf("expected completed, got %+v", doc[0])
	}
}

func TestGenerateNowReturnsStoredPaths(t *testing.T) {
	h := newHarness(t)
	rels, err := h.generator.GenerateNow(context.Background(), study.ImageGenerationRequest{
		ProlificID: "P1",
		Prompts:    []string{"a red fox", "a blue whale"},
		Timestamp:  "2024-05-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("GenerateNow: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("expected 2 images, got %v", rels)
	}
	for _, rel := range rels {
		if !strings.HasPrefix(rel, "P1/images/generated_") || strings.Contains(rel, ":") {
			t.Fatalf("unexpected path %q", rel)
		}
		if _, err := os.Stat(filepath.Join(h.root, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}
}

func TestGenerateNowUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.images.err = errors.New("openai 400: content policy")
	_, err := h.generator.GenerateNow(context.Background(), study.ImageGenerationRequest{
		ProlificID: "P1", Prompts: []string{"x"}, Timestamp: "t",
	})
	if !apierr.IsKind(err, apierr.KindUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}
