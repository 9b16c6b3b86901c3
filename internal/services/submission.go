package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/yungbote/promptstudy-backend/internal/data/records"
	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/apierr"
	"github.com/yungbote/promptstudy-backend/internal/platform/ctxutil"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
	"github.com/yungbote/promptstudy-backend/internal/validation"
)

const (
	MsgSurveySaved        = "Survey saved successfully"
	MsgPromptSaved        = "Prompt saved successfully"
	MsgPromptGenerating   = "Prompt saved and image generation initiated"
	MsgPracticePrompt     = "Practice prompts acknowledged (not saved)"
	MsgSelectionSaved     = "Selection saved successfully"
	MsgPracticeSelection  = "Practice selection acknowledged (not saved)"
	MsgRatingsSaved       = "Ratings saved successfully"
	MsgTimingSaved        = "Timing data saved successfully"
	MsgCompletionRecorded = "Completion recorded successfully"
)

const (
	surveyDocument     = "survey.json"
	ratingsDocument    = "ratings.json"
	timingDocument     = "timing.json"
	completionDocument = "completion.json"
)

func trialDocument(trial int) string     { return fmt.Sprintf("trial_%d.json", trial) }
func selectionDocument(trial int) string { return fmt.Sprintf("selection_%d.json", trial) }

// SubmissionService validates and persists every participant submission. Each accepted
// submission becomes one log row and one participant document; nothing is written for a
// submission that fails validation.
type SubmissionService interface {
	SaveSurvey(ctx context.Context, in study.SurveySubmission) (string, error)
	SavePrompt(ctx context.Context, in study.PromptSubmission) (string, error)
	SaveSelection(ctx context.Context, in study.SelectionSubmission) (string, error)
	SaveRatings(ctx context.Context, in []study.RatingSubmission) (string, error)
	SaveTiming(ctx context.Context, in study.TimingEvent) (string, error)
	MarkCompletion(ctx context.Context, in study.CompletionSubmission) (string, error)
}

type submissionService struct {
	log       *logger.Logger
	store     *records.Store
	generator ImageGenerator
	ledger    SubmissionLedger
}

func NewSubmissionService(log *logger.Logger, store *records.Store, generator ImageGenerator, ledger SubmissionLedger) SubmissionService {
	if ledger == nil {
		ledger = NopLedger()
	}
	return &submissionService{
		log:       log.With("service", "SubmissionService"),
		store:     store,
		generator: generator,
		ledger:    ledger,
	}
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return apierr.Storage(fmt.Errorf("%s: %w", op, err))
}

func (s *submissionService) SaveSurvey(ctx context.Context, in study.SurveySubmission) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	tools, err := json.Marshal(in.Survey.ToolsUsed)
	if err != nil {
		return "", apierr.SchemaViolation(fmt.Errorf("toolsUsed: %w", err), nil)
	}
	row := records.Row{
		"timestamp":             in.Timestamp,
		"prolificId":            in.ProlificID,
		"genAiExperience":       in.Survey.GenAIExperience,
		"textToImageExperience": in.Survey.TextToImageExperience,
		"toolsUsed":             string(tools),
		"otherTools":            deref(in.Survey.OtherTools),
	}
	if err := s.store.AppendRow(ctx, records.Surveys, row); err != nil {
		return "", storageErr("append survey", err)
	}
	if err := s.store.WriteDocument(ctx, in.ProlificID, surveyDocument, in); err != nil {
		return "", storageErr("write survey document", err)
	}
	s.ledger.Record(ctx, study.KindSurvey, in.ProlificID, nil, in.Timestamp, in)
	return MsgSurveySaved, nil
}

// SavePrompt persists a trial's prompts. Practice trials are acknowledged without any
// write, and a non-practice trial with a selected prompt schedules image generation.
func (s *submissionService) SavePrompt(ctx context.Context, in study.PromptSubmission) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	if in.Practice() {
		return MsgPracticePrompt, nil
	}
	trial := *in.TrialIndex

	prompts, err := json.Marshal(in.Prompts)
	if err != nil {
		return "", apierr.SchemaViolation(fmt.Errorf("prompts: %w", err), nil)
	}
	var timing study.TimingData
	if in.TimingData != nil {
		timing = *in.TimingData
	}
	row := records.Row{
		"timestamp":            in.Timestamp,
		"prolificId":           in.ProlificID,
		"trialIndex":           strconv.Itoa(trial),
		"condition":            in.Condition,
		"theme":                in.Theme,
		"promptCount":          strconv.Itoa(len(in.Prompts)),
		"prompts":              string(prompts),
		"selectedPrompt":       in.SelectedPrompt,
		"isPractice":           strconv.FormatBool(in.IsPractice),
		"conditionOrder":       in.ConditionOrder,
		"firstKeypressLatency": formatFloat(timing.FirstKeypressLatency),
		"totalResponseTime":    formatFloat(timing.TotalResponseTime),
		"generated":            "false",
	}
	if err := s.store.AppendRow(ctx, records.Prompts, row); err != nil {
		return "", storageErr("append prompt", err)
	}
	if err := s.store.WriteDocument(ctx, in.ProlificID, trialDocument(trial), in); err != nil {
		return "", storageErr("write trial document", err)
	}
	s.ledger.Record(ctx, study.KindPrompt, in.ProlificID, &trial, in.Timestamp, in)

	if !in.WantsGeneration() {
		return MsgPromptSaved, nil
	}
	task := GenerationTask{
		Participant: in.ProlificID,
		Trial:       trial,
		Prompt:      in.SelectedPrompt,
		Theme:       in.Theme,
		Condition:   in.Condition,
	}
	task.Origin, _ = ctxutil.OriginFrom(ctx)
	if err := s.generator.Schedule(ctx, task); err != nil {
		s.log.Error("Could not schedule image generation", "prolific_id", in.ProlificID, "trial_index", trial, "error", err.Error())
		return "", apierr.New(http.StatusInternalServerError, apierr.KindInternal, err)
	}
	return MsgPromptGenerating, nil
}

func (s *submissionService) SaveSelection(ctx context.Context, in study.SelectionSubmission) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	if in.Practice() {
		return MsgPracticeSelection, nil
	}
	trial := *in.TrialIndex
	row := records.Row{
		"timestamp":      in.Timestamp,
		"prolificId":     in.ProlificID,
		"trialIndex":     strconv.Itoa(trial),
		"condition":      in.Condition,
		"theme":          in.Theme,
		"selectedPrompt": in.SelectedPrompt,
		"isPractice":     strconv.FormatBool(in.IsPractice),
		"conditionOrder": in.ConditionOrder,
	}
	if err := s.store.AppendRow(ctx, records.Selections, row); err != nil {
		return "", storageErr("append selection", err)
	}
	if err := s.store.WriteDocument(ctx, in.ProlificID, selectionDocument(trial), in); err != nil {
		return "", storageErr("write selection document", err)
	}
	s.ledger.Record(ctx, study.KindSelection, in.ProlificID, &trial, in.Timestamp, in)
	return MsgSelectionSaved, nil
}

// SaveRatings stores a batch of ratings. The batch is validated as a whole before any
// row is written; ratings.json keeps the latest rating per trial.
func (s *submissionService) SaveRatings(ctx context.Context, in []study.RatingSubmission) (string, error) {
	if err := validation.Slice(in); err != nil {
		return "", err
	}
	for _, r := range in {
		row := records.Row{
			"timestamp":        r.Timestamp,
			"prolificId":       r.ProlificID,
			"trialIndex":       strconv.Itoa(*r.TrialIndex),
			"theme":            r.Theme,
			"condition":        r.Condition,
			"prompt":           r.Prompt,
			"creativityRating": formatFloat(r.CreativityRating),
			"intentionRating":  formatFloat(r.IntentionRating),
		}
		if err := s.store.AppendRow(ctx, records.Ratings, row); err != nil {
			return "", storageErr("append rating", err)
		}
	}

	byParticipant := map[string][]study.RatingSubmission{}
	order := []string{}
	for _, r := range in {
		if _, ok := byParticipant[r.ProlificID]; !ok {
			order = append(order, r.ProlificID)
		}
		byParticipant[r.ProlificID] = append(byParticipant[r.ProlificID], r)
	}
	for _, p := range order {
		batch := byParticipant[p]
		err := s.store.WithParticipantLock(ctx, p, func(ctx context.Context) error {
			doc := map[string]study.RatingSubmission{}
			if _, err := s.store.ReadDocument(ctx, p, ratingsDocument, &doc); err != nil {
				return err
			}
			if doc == nil {
				doc = map[string]study.RatingSubmission{}
			}
			for _, r := range batch {
				doc[strconv.Itoa(*r.TrialIndex)] = r
			}
			return s.store.WriteDocument(ctx, p, ratingsDocument, doc)
		})
		if err != nil {
			return "", storageErr("write ratings document", err)
		}
		for _, r := range batch {
			trial := *r.TrialIndex
			s.ledger.Record(ctx, study.KindRating, p, &trial, r.Timestamp, r)
		}
	}
	return MsgRatingsSaved, nil
}

func (s *submissionService) SaveTiming(ctx context.Context, in study.TimingEvent) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	trial := ""
	if in.TrialIndex != nil {
		trial = strconv.Itoa(*in.TrialIndex)
	}
	row := records.Row{
		"timestamp":            in.Timestamp,
		"prolificId":           in.ProlificID,
		"trialIndex":           trial,
		"phase":                in.Phase,
		"firstKeypressLatency": formatFloat(in.FirstKeypressLatency),
		"totalResponseTime":    formatFloat(in.TotalResponseTime),
	}
	if err := s.store.AppendRow(ctx, records.Timing, row); err != nil {
		return "", storageErr("append timing", err)
	}
	err := s.store.WithParticipantLock(ctx, in.ProlificID, func(ctx context.Context) error {
		var events []study.TimingEvent
		if _, err := s.store.ReadDocument(ctx, in.ProlificID, timingDocument, &events); err != nil {
			return err
		}
		return s.store.WriteDocument(ctx, in.ProlificID, timingDocument, append(events, in))
	})
	if err != nil {
		return "", storageErr("write timing document", err)
	}
	s.ledger.Record(ctx, study.KindTiming, in.ProlificID, in.TrialIndex, in.Timestamp, in)
	return MsgTimingSaved, nil
}

func (s *submissionService) MarkCompletion(ctx context.Context, in study.CompletionSubmission) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	row := records.Row{
		"timestamp":      in.Timestamp,
		"prolificId":     in.ProlificID,
		"completionCode": in.CompletionCode,
	}
	if err := s.store.AppendRow(ctx, records.Completions, row); err != nil {
		return "", storageErr("append completion", err)
	}
	if err := s.store.WriteDocument(ctx, in.ProlificID, completionDocument, in); err != nil {
		return "", storageErr("write completion document", err)
	}
	s.ledger.Record(ctx, study.KindCompletion, in.ProlificID, nil, in.Timestamp, in)
	s.log.Info("Participant completed the study", "prolific_id", in.ProlificID)
	return MsgCompletionRecorded, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
