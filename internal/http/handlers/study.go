package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/http/response"
	"github.com/yungbote/promptstudy-backend/internal/services"
)

// StudyHandler serves the participant submission routes.
type StudyHandler struct {
	submissions services.SubmissionService
}

func NewStudyHandler(submissions services.SubmissionService) *StudyHandler {
	return &StudyHandler{submissions: submissions}
}

// submit decodes a body of type T and hands it to save.
func submit[T any](c *gin.Context, save func(*gin.Context, T) (string, error)) {
	var in T
	if err := decodeBody(c, &in); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	msg, err := save(c, in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondMessage(c, msg)
}

// POST /api/save-survey
func (h *StudyHandler) SaveSurvey(c *gin.Context) {
	submit(c, func(c *gin.Context, in study.SurveySubmission) (string, error) {
		return h.submissions.SaveSurvey(c.Request.Context(), in)
	})
}

// POST /api/save-prompt, /api/save-prompts
func (h *StudyHandler) SavePrompt(c *gin.Context) {
	submit(c, func(c *gin.Context, in study.PromptSubmission) (string, error) {
		return h.submissions.SavePrompt(c.Request.Context(), in)
	})
}

// POST /api/save-selection
func (h *StudyHandler) SaveSelection(c *gin.Context) {
	submit(c, func(c *gin.Context, in study.SelectionSubmission) (string, error) {
		return h.submissions.SaveSelection(c.Request.Context(), in)
	})
}

// POST /api/save-ratings
func (h *StudyHandler) SaveRatings(c *gin.Context) {
	submit(c, func(c *gin.Context, in []study.RatingSubmission) (string, error) {
		return h.submissions.SaveRatings(c.Request.Context(), in)
	})
}

// POST /api/save-timing
func (h *StudyHandler) SaveTiming(c *gin.Context) {
	submit(c, func(c *gin.Context, in study.TimingEvent) (string, error) {
		return h.submissions.SaveTiming(c.Request.Context(), in)
	})
}

// POST /api/mark-completion
func (h *StudyHandler) MarkCompletion(c *gin.Context) {
	submit(c, func(c *gin.Context, in study.CompletionSubmission) (string, error) {
		return h.submissions.MarkCompletion(c.Request.Context(), in)
	})
}
