package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/promptstudy-backend/internal/data/records"
	"github.com/yungbote/promptstudy-backend/internal/http/response"
	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

// StaticHandler serves stored trial images from the record store, whichever backend
// holds them.
type StaticHandler struct {
	log   *logger.Logger
	store *records.Store
}

func NewStaticHandler(log *logger.Logger, store *records.Store) *StaticHandler {
	return &StaticHandler{log: log.With("handler", "StaticHandler"), store: store}
}

// GET /static/*path
func (h *StaticHandler) Serve(c *gin.Context) {
	rc, info, err := h.store.OpenAsset(c.Request.Context(), c.Param("path"))
	if errors.Is(err, blob.ErrNotExist) {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("File not found"))
		return
	}
	if err != nil {
		h.log.Error("Could not open asset", "path", c.Param("path"), "error", err.Error())
		response.RespondError(c, http.StatusInternalServerError, "storage_failure", errors.New("Could not read file"))
		return
	}
	defer rc.Close()

	headers := map[string]string{"Cache-Control": "public, max-age=3600"}
	if !info.Updated.IsZero() {
		headers["Last-Modified"] = info.Updated.UTC().Format(http.TimeFormat)
	}
	size := info.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, info.ContentType, rc, headers)
}
