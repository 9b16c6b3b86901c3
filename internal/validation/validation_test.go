package validation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/platform/apierr"
)

func intp(v int) *int         { return &v }
func f64p(v float64) *float64 { return &v }

func validPrompt() study.PromptSubmission {
	return study.PromptSubmission{
		ProlificID:     "P1",
		TrialIndex:     intp(0),
		Condition:      study.ConditionCreative,
		Theme:          "animals",
		Prompts:        []string{"a red fox"},
		SelectedPrompt: "a red fox",
		ConditionOrder: "creative_first",
		Timestamp:      "2024-05-01T10:00:00Z",
	}
}

func violations(t *testing.T, err error) []FieldViolation {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected apierr, got %v", err)
	}
	if ae.Status != http.StatusUnprocessableEntity || ae.Kind != apierr.KindSchemaViolation {
		t.Fatalf("unexpected classification %d %s", ae.Status, ae.Kind)
	}
	v, ok := ae.Details.([]FieldViolation)
	if !ok {
		t.Fatalf("details are %T", ae.Details)
	}
	return v
}

func hasViolation(v []FieldViolation, field, rule string) bool {
	for _, fv := range v {
		if fv.Field == field && fv.Rule == rule {
			return true
		}
	}
	return false
}

func TestPromptSubmission(t *testing.T) {
	if err := Struct(validPrompt()); err != nil {
		t.Fatalf("valid prompt rejected: %v", err)
	}

	cases := []struct {
		name  string
		mut   func(p *study.PromptSubmission)
		field string
		rule  string
	}{
		{"empty prompts", func(p *study.PromptSubmission) { p.Prompts = []string{} }, "prompts", "min"},
		{"missing prompts", func(p *study.PromptSubmission) { p.Prompts = nil }, "prompts", "required"},
		{"prompt too long", func(p *study.PromptSubmission) { p.Prompts = []string{strings.Repeat("x", 501)} }, "prompts[0]", "max"},
		{"trial index high", func(p *study.PromptSubmission) { p.TrialIndex = intp(7) }, "trialIndex", "lt"},
		{"trial index negative", func(p *study.PromptSubmission) { p.TrialIndex = intp(-1) }, "trialIndex", "gte"},
		{"trial index missing", func(p *study.PromptSubmission) { p.TrialIndex = nil }, "trialIndex", "required"},
		{"bad condition", func(p *study.PromptSubmission) { p.Condition = "BE_FAST" }, "condition", "oneof"},
		{"bad order", func(p *study.PromptSubmission) { p.ConditionOrder = "random" }, "conditionOrder", "oneof"},
		{"negative latency", func(p *study.PromptSubmission) {
			p.TimingData = &study.TimingData{FirstKeypressLatency: f64p(-3)}
		}, "timingData.firstKeypressLatency", "gte"},
		{"traversal id", func(p *study.PromptSubmission) { p.ProlificID = "../etc" }, "prolificId", "participant_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPrompt()
			tc.mut(&p)
			v := violations(t, Struct(p))
			if !hasViolation(v, tc.field, tc.rule) {
				t.Fatalf("expected %s/%s in %+v", tc.field, tc.rule, v)
			}
		})
	}
}

func TestPromptLengthCountsCharacters(t *testing.T) {
	p := validPrompt()
	p.Prompts = []string{strings.Repeat("é", 500)}
	if err := Struct(p); err != nil {
		t.Fatalf("500 multibyte characters should pass: %v", err)
	}
}

func TestRatingsBatch(t *testing.T) {
	good := study.RatingSubmission{
		ProlificID: "P1", TrialIndex: intp(2), CreativityRating: f64p(4), IntentionRating: f64p(0), Timestamp: "t",
	}
	if err := Slice([]study.RatingSubmission{good}); err != nil {
		t.Fatalf("valid batch rejected: %v", err)
	}

	bad := good
	bad.CreativityRating = f64p(4.5)
	v := violations(t, Slice([]study.RatingSubmission{good, bad}))
	if !hasViolation(v, "[1].creativityRating", "lte") {
		t.Fatalf("expected element 1 violation, got %+v", v)
	}

	v = violations(t, Slice([]study.RatingSubmission{}))
	if !hasViolation(v, "", "min") {
		t.Fatalf("empty batch should be rejected, got %+v", v)
	}
}

func TestSurvey(t *testing.T) {
	s := study.SurveySubmission{
		ProlificID: "P1",
		Survey: study.AIExperienceSurvey{
			GenAIExperience:       "basic",
			TextToImageExperience: "very_often",
			ToolsUsed:             map[string]bool{},
		},
		Timestamp: "t",
	}
	if err := Struct(s); err != nil {
		t.Fatalf("valid survey rejected: %v", err)
	}
	s.Survey.GenAIExperience = "expert"
	s.Survey.ToolsUsed = nil
	v := violations(t, Struct(s))
	if !hasViolation(v, "survey.genAiExperience", "oneof") || !hasViolation(v, "survey.toolsUsed", "required") {
		t.Fatalf("unexpected violations %+v", v)
	}
}

func TestImageGenerationRequest(t *testing.T) {
	r := study.ImageGenerationRequest{ProlificID: "P1", Prompts: []string{"a", "b", "c"}, Timestamp: "t"}
	if !hasViolation(violations(t, Struct(r)), "prompts", "max") {
		t.Fatalf("three prompts must be rejected")
	}
	r.Prompts = []string{""}
	if !hasViolation(violations(t, Struct(r)), "prompts[0]", "required") {
		t.Fatalf("blank prompt must be rejected")
	}
}

func TestDecodeError(t *testing.T) {
	var p study.PromptSubmission
	err := json.Unmarshal([]byte(`{"trialIndex":"zero"}`), &p)
	v := violations(t, DecodeError(err))
	if !hasViolation(v, "trialIndex", "type") {
		t.Fatalf("unexpected %+v", v)
	}
	v = violations(t, DecodeError(errors.New("unexpected EOF")))
	if !hasViolation(v, "body", "json") {
		t.Fatalf("unexpected %+v", v)
	}
}
