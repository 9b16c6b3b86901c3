// Package study holds the request contracts, status documents and ledger model of the
// prompt study. Validation rules live in the `validate` tags and are enforced by the
// validation package before anything is persisted.
package study

// TrialCount is the number of scored trials per participant; trial indices are [0, TrialCount).
const TrialCount = 7

const (
	ConditionCreative = "BE_CREATIVE"
	ConditionFluent   = "BE_FLUENT"
	ConditionPractice = "practice"
)

type TimingData struct {
	FirstKeypressLatency *float64 `json:"firstKeypressLatency,omitempty" validate:"omitempty,gte=0"`
	TotalResponseTime    *float64 `json:"totalResponseTime,omitempty" validate:"omitempty,gte=0"`
}

type AIExperienceSurvey struct {
	GenAIExperience       string          `json:"genAiExperience" validate:"required,oneof=none basic intermediate advanced"`
	TextToImageExperience string          `json:"textToImageExperience" validate:"required,oneof=never rarely sometimes often very_often"`
	ToolsUsed             map[string]bool `json:"toolsUsed" validate:"required"`
	OtherTools            *string         `json:"otherTools,omitempty" validate:"omitempty,max=500"`
}

type SurveySubmission struct {
	ProlificID string             `json:"prolificId" validate:"required,participant_id"`
	Survey     AIExperienceSurvey `json:"survey"`
	Timestamp  string             `json:"timestamp" validate:"required"`
}

type PromptSubmission struct {
	ProlificID     string      `json:"prolificId" validate:"required,participant_id"`
	TrialIndex     *int        `json:"trialIndex" validate:"required,gte=0,lt=7"`
	Condition      string      `json:"condition" validate:"required,oneof=BE_CREATIVE BE_FLUENT practice"`
	Theme          string      `json:"theme" validate:"max=200"`
	Prompts        []string    `json:"prompts" validate:"required,min=1,dive,max=500"`
	SelectedPrompt string      `json:"selectedPrompt,omitempty" validate:"max=500"`
	IsPractice     bool        `json:"isPractice"`
	ConditionOrder string      `json:"conditionOrder" validate:"required,oneof=creative_first fluent_first"`
	TimingData     *TimingData `json:"timingData,omitempty"`
	Timestamp      string      `json:"timestamp" validate:"required"`
}

// Practice reports whether the submission belongs to the unscored practice trial.
func (p PromptSubmission) Practice() bool {
	return p.IsPractice || p.Condition == ConditionPractice
}

// WantsGeneration reports whether saving this prompt should schedule image generation.
func (p PromptSubmission) WantsGeneration() bool {
	return !p.Practice() && p.SelectedPrompt != ""
}

type SelectionSubmission struct {
	ProlificID     string `json:"prolificId" validate:"required,participant_id"`
	TrialIndex     *int   `json:"trialIndex" validate:"required,gte=0,lt=7"`
	Condition      string `json:"condition" validate:"required,oneof=BE_CREATIVE BE_FLUENT practice"`
	Theme          string `json:"theme" validate:"max=200"`
	SelectedPrompt string `json:"selectedPrompt" validate:"required,max=500"`
	IsPractice     bool   `json:"isPractice"`
	ConditionOrder string `json:"conditionOrder" validate:"required,oneof=creative_first fluent_first"`
	Timestamp      string `json:"timestamp" validate:"required"`
}

func (s SelectionSubmission) Practice() bool {
	return s.IsPractice || s.Condition == ConditionPractice
}

// ImageGenerationRequest asks for synchronous generation of one image per prompt.
type ImageGenerationRequest struct {
	ProlificID string   `json:"prolificId" validate:"required,participant_id"`
	Prompts    []string `json:"prompts" validate:"required,min=1,max=2,dive,required,max=500"`
	Timestamp  string   `json:"timestamp" validate:"required"`
}

type RatingSubmission struct {
	ProlificID       string   `json:"prolificId" validate:"required,participant_id"`
	TrialIndex       *int     `json:"trialIndex" validate:"required,gte=0,lt=7"`
	CreativityRating *float64 `json:"creativityRating" validate:"required,gte=0,lte=4"`
	IntentionRating  *float64 `json:"intentionRating" validate:"required,gte=0,lte=4"`
	Timestamp        string   `json:"timestamp" validate:"required"`
	Theme            string   `json:"theme" validate:"max=200"`
	Condition        string   `json:"condition" validate:"max=64"`
	Prompt           string   `json:"prompt" validate:"max=500"`
}

type TimingEvent struct {
	ProlificID           string   `json:"prolificId" validate:"required,participant_id"`
	TrialIndex           *int     `json:"trialIndex,omitempty" validate:"omitempty,gte=0,lt=7"`
	Phase                string   `json:"phase" validate:"required,max=64"`
	FirstKeypressLatency *float64 `json:"firstKeypressLatency,omitempty" validate:"omitempty,gte=0"`
	TotalResponseTime    *float64 `json:"totalResponseTime,omitempty" validate:"omitempty,gte=0"`
	Timestamp            string   `json:"timestamp" validate:"required"`
}

type CompletionSubmission struct {
	ProlificID     string `json:"prolificId" validate:"required,participant_id"`
	CompletionCode string `json:"completionCode,omitempty" validate:"max=64"`
	Timestamp      string `json:"timestamp" validate:"required"`
}
