// Package response renders the study API's JSON envelope.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/promptstudy-backend/internal/platform/apierr"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type ErrorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Detail  any    `json:"detail,omitempty"`
}

type MessageEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Status:  StatusError,
		Message: msg,
		Code:    code,
	})
}

// RespondAPIError maps err onto its apierr kind. Internal failures are logged by the
// access log through c.Errors and reach the client with a generic message.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.New(http.StatusInternalServerError, apierr.KindInternal, errors.New("unknown error"))
	}
	_ = c.Error(err)
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := ae.Error()
	if ae.Kind == apierr.KindInternal {
		msg = "Internal server error"
	}
	c.JSON(status, ErrorEnvelope{
		Status:  StatusError,
		Message: msg,
		Code:    string(ae.Kind),
		Detail:  ae.Details,
	})
}

func RespondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageEnvelope{Status: StatusSuccess, Message: msg})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
