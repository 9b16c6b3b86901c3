package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/promptstudy-backend/internal/validation"
)

const maxBodyBytes = 1 << 20

// decodeBody reads one JSON value into out. Decoding failures are schema violations.
func decodeBody(c *gin.Context, out any) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := json.NewDecoder(c.Request.Body).Decode(out); err != nil {
		return validation.DecodeError(err)
	}
	return nil
}
