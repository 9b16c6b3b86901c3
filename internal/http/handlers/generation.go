package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/promptstudy-backend/internal/domain/study"
	"github.com/yungbote/promptstudy-backend/internal/http/response"
	"github.com/yungbote/promptstudy-backend/internal/services"
)

type GenerationHandler struct {
	images services.ImageQueryService
}

func NewGenerationHandler(images services.ImageQueryService) *GenerationHandler {
	return &GenerationHandler{images: images}
}

// GET /api/check-generation-status/:prolificId
func (h *GenerationHandler) CheckStatus(c *gin.Context) {
	report, err := h.images.CheckStatus(c.Request.Context(), c.Param("prolificId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, report)
}

// GET /api/get-all-images/:prolificId
func (h *GenerationHandler) GetAllImages(c *gin.Context) {
	images, err := h.images.ListImages(c.Request.Context(), c.Param("prolificId"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"images": images})
}

// POST /api/generate-images
func (h *GenerationHandler) GenerateImages(c *gin.Context) {
	var req study.ImageGenerationRequest
	if err := decodeBody(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	urls, err := h.images.GenerateImages(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": response.StatusSuccess, "images": urls})
}
