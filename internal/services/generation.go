package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/promptstudy-backend/internal/data/records"
	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/jobs/worker"
	"github.com/yungbote/promptstudy-backend/internal/platform/apierr"
	"github.com/yungbote/promptstudy-backend/internal/platform/ctxutil"
	"github.com/yungbote/promptstudy-backend/internal/platform/fetch"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
	"github.com/yungbote/promptstudy-backend/internal/platform/openai"
)

const jobTypeImageGeneration = "image_generation"

var tracer = otel.Tracer("github.com/yungbote/promptstudy-backend/internal/services")

// GenerationTask is one trial's image generation.
type GenerationTask struct {
	Participant string
	Trial       int
	Prompt      string
	Theme       string
	Condition   string
	// Origin is the request that scheduled the task, for log correlation.
	Origin ctxutil.Origin
}

// Scheduler accepts background jobs; *worker.Pool implements it.
type Scheduler interface {
	Submit(job worker.Job) error
}

type ImageGenerator interface {
	// Schedule records task as pending, queues it and returns without waiting for it.
	Schedule(ctx context.Context, task GenerationTask) error
	// Run drives task through pending to completed or failed.
	Run(ctx context.Context, task GenerationTask) error
	// GenerateNow generates one stored image per prompt in the request path and
	// returns their store-relative paths.
	GenerateNow(ctx context.Context, req study.ImageGenerationRequest) ([]string, error)
}

type GenerationConfig struct {
	// Timeout bounds one background generation end to end.
	Timeout      time.Duration
	MaxImageSize int
}

type imageGenerator struct {
	log        *logger.Logger
	store      *records.Store
	tracker    StatusTracker
	images     openai.Client
	downloader fetch.Downloader
	scheduler  Scheduler
	ledger     SubmissionLedger
	cfg        GenerationConfig
}

func NewImageGenerator(
	log *logger.Logger,
	store *records.Store,
	tracker StatusTracker,
	images openai.Client,
	downloader fetch.Downloader,
	scheduler Scheduler,
	ledger SubmissionLedger,
	cfg GenerationConfig,
) ImageGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 1024
	}
	if ledger == nil {
		ledger = NopLedger()
	}
	return &imageGenerator{
		log:        log.With("service", "ImageGenerator"),
		store:      store,
		tracker:    tracker,
		images:     images,
		downloader: downloader,
		scheduler:  scheduler,
		ledger:     ledger,
		cfg:        cfg,
	}
}

func (g *imageGenerator) Schedule(ctx context.Context, task GenerationTask) error {
	// Queued trials count toward readiness, so the pending entry exists before the job does.
	if err := g.tracker.MarkPending(ctx, task.Participant, task.Trial, task.meta()); err != nil {
		return fmt.Errorf("record pending status: %w", err)
	}
	err := g.scheduler.Submit(worker.Job{
		Type: jobTypeImageGeneration,
		Key:  task.Participant,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctxutil.WithOrigin(ctx, task.Origin), g.cfg.Timeout)
			defer cancel()
			return g.Run(ctx, task)
		},
	})
	if err != nil {
		err = fmt.Errorf("schedule image generation: %w", err)
		if mErr := g.tracker.MarkFailed(ctxutil.Detach(ctx), task.Participant, task.Trial, err.Error()); mErr != nil {
			return errors.Join(err, mErr)
		}
		return err
	}
	return nil
}

func (t GenerationTask) meta() study.TrialMeta {
	return study.TrialMeta{Prompt: t.Prompt, Theme: t.Theme, Condition: t.Condition}
}

func (g *imageGenerator) Run(ctx context.Context, task GenerationTask) (err error) {
	ctx, span := tracer.Start(ctx, "generation.run", trace.WithAttributes(
		attribute.Int("trial_index", task.Trial),
		attribute.String("condition", task.Condition),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	log := g.log.With(append(task.Origin.LogFields(), "participant_id", task.Participant, "trial_index", task.Trial)...)

	// Refreshes the entry Schedule wrote; Run called directly starts tracking here.
	if err := g.tracker.MarkPending(ctx, task.Participant, task.Trial, task.meta()); err != nil {
		log.Error("Could not record pending status", "error", err.Error())
		// Schedule may already have left a pending entry that nothing else will settle.
		if mErr := g.tracker.MarkFailed(ctxutil.Detach(ctx), task.Participant, task.Trial, "image generation could not start"); mErr != nil && !errors.Is(mErr, ErrNotPending) {
			return errors.Join(err, mErr)
		}
		return err
	}

	rel, err := g.produce(ctx, task.Participant, records.TrialImageName(task.Trial), task.Prompt)
	if err != nil {
		log.Warn("Image generation failed", "error", err.Error())
		if rel != "" {
			if delErr := g.store.DeleteAsset(ctx, rel); delErr != nil {
				log.Warn("Could not remove partial asset", "path", rel, "error", delErr.Error())
			}
		}
		// Record the failure even when the job deadline has passed.
		if mErr := g.tracker.MarkFailed(ctxutil.Detach(ctx), task.Participant, task.Trial, err.Error()); mErr != nil {
			log.Error("Could not record failed status", "error", mErr.Error())
			return errors.Join(err, mErr)
		}
		return err
	}

	// The asset is stored; finish the bookkeeping even if the job deadline passes now.
	ctx = ctxutil.Detach(ctx)
	if err := g.tracker.MarkCompleted(ctx, task.Participant, task.Trial, rel); err != nil {
		log.Error("Could not record completed status", "path", rel, "error", err.Error())
		if errors.Is(err, ErrNotPending) {
			// Another run already settled this trial and owns the asset.
			return err
		}
		if delErr := g.store.DeleteAsset(ctx, rel); delErr != nil {
			log.Warn("Could not remove orphaned asset", "path", rel, "error", delErr.Error())
		}
		if mErr := g.tracker.MarkFailed(ctx, task.Participant, task.Trial, "image status update failed"); mErr != nil {
			return errors.Join(err, mErr)
		}
		return err
	}
	log.Info("Image generation completed", "path", rel)

	trial := task.Trial
	g.ledger.Record(ctx, study.KindGeneration, task.Participant, &trial, time.Now().UTC().Format(time.RFC3339), map[string]any{
		"prompt":    task.Prompt,
		"imagePath": rel,
	})

	if err := g.markGenerated(ctx, task); err != nil {
		log.Warn("Could not flag prompt row as generated", "error", err.Error())
	}
	return nil
}

// produce generates, fetches, normalizes and stores one image. When the store write
// fails it still returns the asset path so the caller can clean up.
func (g *imageGenerator) produce(ctx context.Context, participant, name, prompt string) (string, error) {
	gen, err := g.images.GenerateImage(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}

	raw := gen.Bytes
	if len(raw) == 0 {
		if gen.URL == "" {
			return "", errors.New("image generation failed: provider returned no image")
		}
		raw, err = g.downloader.Download(ctx, gen.URL)
		if err != nil {
			return "", fmt.Errorf("image download failed: %w", err)
		}
	}

	pngBytes, err := normalizePNG(raw, g.cfg.MaxImageSize)
	if err != nil {
		return "", fmt.Errorf("image processing failed: %w", err)
	}

	rel, err := records.AssetPath(participant, name)
	if err != nil {
		return "", err
	}
	if _, err := g.store.WriteAsset(ctx, participant, name, pngBytes); err != nil {
		return rel, fmt.Errorf("image storage failed: %w", err)
	}
	return rel, nil
}

func (g *imageGenerator) markGenerated(ctx context.Context, task GenerationTask) error {
	trial := strconv.Itoa(task.Trial)
	_, err := g.store.RewriteRows(ctx, records.Prompts, func(r records.Row) bool {
		if r["prolificId"] != task.Participant || r["trialIndex"] != trial || r["selectedPrompt"] != task.Prompt {
			return false
		}
		if r["generated"] == "true" {
			return false
		}
		r["generated"] = "true"
		return true
	})
	return err
}

func (g *imageGenerator) GenerateNow(ctx context.Context, req study.ImageGenerationRequest) ([]string, error) {
	safeTS := strings.NewReplacer(":", "-", "/", "-", " ", "_").Replace(req.Timestamp)
	out := make([]string, 0, len(req.Prompts))
	for i, prompt := range req.Prompts {
		name := fmt.Sprintf("images/generated_%s_%d.png", safeTS, i)
		rel, err := g.produce(ctx, req.ProlificID, name, prompt)
		if err != nil {
			if rel != "" {
				_ = g.store.DeleteAsset(ctx, rel)
				return nil, apierr.Storage(fmt.Errorf("prompt %d: %w", i+1, err))
			}
			return nil, apierr.Upstream(fmt.Errorf("prompt %d: %w", i+1, err))
		}
		out = append(out, rel)
	}
	g.ledger.Record(ctx, study.KindGeneration, req.ProlificID, nil, req.Timestamp, map[string]any{
		"prompts": req.Prompts,
		"images":  out,
	})
	return out, nil
}
