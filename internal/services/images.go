package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/apierr"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
	"github.com/yungbote/promptstudy-backend/internal/validation"
)

const (
	StatusReady   = "ready"
	StatusPending = "pending"
)

// GenerationReport is the polled view of a participant's generation progress.
type GenerationReport struct {
	Status          string `json:"status"`
	CompletedTrials int    `json:"completedTrials"`
	FailedTrials    int    `json:"failedTrials"`
	TotalTrials     int    `json:"totalTrials"`
}

type ImageQueryService interface {
	CheckStatus(ctx context.Context, participant string) (GenerationReport, error)
	// ListImages returns completed trials in ascending trial order with public URLs.
	ListImages(ctx context.Context, participant string) ([]study.ImageEntry, error)
	// GenerateImages runs synchronous generation and returns public URLs.
	GenerateImages(ctx context.Context, req study.ImageGenerationRequest) ([]string, error)
}

type imageQueryService struct {
	log       *logger.Logger
	tracker   StatusTracker
	generator ImageGenerator
	links     AssetLinker
}

func NewImageQueryService(log *logger.Logger, tracker StatusTracker, generator ImageGenerator, links AssetLinker) ImageQueryService {
	return &imageQueryService{
		log:       log.With("service", "ImageQueryService"),
		tracker:   tracker,
		generator: generator,
		links:     links,
	}
}

func checkParticipant(participant string) error {
	if validation.ValidParticipantID(participant) {
		return nil
	}
	return apierr.SchemaViolation(
		fmt.Errorf("invalid prolificId %q", participant),
		[]validation.FieldViolation{{Field: "prolificId", Rule: "participant_id"}},
	)
}

func (s *imageQueryService) CheckStatus(ctx context.Context, participant string) (GenerationReport, error) {
	if err := checkParticipant(participant); err != nil {
		return GenerationReport{}, err
	}
	doc, err := s.tracker.Get(ctx, participant)
	if err != nil {
		return GenerationReport{}, storageErr("read generation status", err)
	}
	sum := doc.Summary()
	report := GenerationReport{
		Status:          StatusPending,
		CompletedTrials: sum.Completed,
		FailedTrials:    sum.Failed,
		TotalTrials:     sum.Total,
	}
	if sum.Ready {
		report.Status = StatusReady
	}
	return report, nil
}

func (s *imageQueryService) ListImages(ctx context.Context, participant string) ([]study.ImageEntry, error) {
	if err := checkParticipant(participant); err != nil {
		return nil, err
	}
	doc, err := s.tracker.Get(ctx, participant)
	if err != nil {
		return nil, storageErr("read generation status", err)
	}
	trials := doc.CompletedTrials()
	if len(trials) == 0 {
		return nil, apierr.NotFound(errors.New("No images found"))
	}
	out := make([]study.ImageEntry, 0, len(trials))
	for _, idx := range trials {
		ts := doc[idx]
		out = append(out, study.ImageEntry{
			TrialIndex: idx,
			ImagePath:  s.links.URL(ts.ImagePath),
			Prompt:     ts.Prompt,
			Theme:      ts.Theme,
			Condition:  ts.Condition,
		})
	}
	return out, nil
}

func (s *imageQueryService) GenerateImages(ctx context.Context, req study.ImageGenerationRequest) ([]string, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	rels, err := s.generator.GenerateNow(ctx, req)
	if err != nil {
		s.log.Warn("Synchronous image generation failed", "prolific_id", req.ProlificID, "error", err.Error())
		return nil, err
	}
	urls := make([]string, 0, len(rels))
	for _, rel := range rels {
		urls = append(urls, s.links.URL(rel))
	}
	return urls, nil
}
