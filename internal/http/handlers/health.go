package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
)

// Features lists the optional integrations a deployment has enabled.
type Features struct {
	ImageGeneration  bool `json:"imageGeneration"`
	ObjectStorage    bool `json:"objectStorage"`
	DistributedLocks bool `json:"distributedLocks"`
	SubmissionLedger bool `json:"submissionLedger"`
	Tracing          bool `json:"tracing"`
}

type HealthHandler struct {
	version  string
	storage  blob.Location
	features Features
	now      func() time.Time
}

func NewHealthHandler(version string, storage blob.Location, features Features) *HealthHandler {
	return &HealthHandler{version: version, storage: storage, features: features, now: time.Now}
}

// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"storage":   h.storage,
		"features":  h.features,
	})
}

// GET /api/test
func (h *HealthHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "connected",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
