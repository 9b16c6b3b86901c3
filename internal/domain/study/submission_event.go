package study

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	KindSurvey     = "survey"
	KindPrompt     = "prompt"
	KindSelection  = "selection"
	KindRating     = "rating"
	KindTiming     = "timing"
	KindCompletion = "completion"
	KindGeneration = "generation"
)

// SubmissionEvent is one accepted submission mirrored into SQL for analysis.
type SubmissionEvent struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProlificID  string         `gorm:"column:prolific_id;not null;index" json:"prolific_id"`
	Kind        string         `gorm:"column:kind;not null;index" json:"kind"`
	TrialIndex  *int           `gorm:"column:trial_index;index" json:"trial_index,omitempty"`
	SubmittedAt string         `gorm:"column:submitted_at" json:"submitted_at"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (SubmissionEvent) TableName() string { return "submission_event" }

func (e *SubmissionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
