package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/promptstudy-backend/internal/http"
	httpH "github.com/yungbote/promptstudy-backend/internal/http/handlers"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Study      *httpH.StudyHandler
	Generation *httpH.GenerationHandler
	Static     *httpH.StaticHandler
}

func wireHandlers(log *logger.Logger, cfg Config, clients *Clients, svc Services) Handlers {
	log.Info("Wiring handlers...")
	features := httpH.Features{
		ImageGeneration:  clients.imagesConfigured,
		ObjectStorage:    cfg.ObjectStorageMode != StorageModeLocal,
		DistributedLocks: cfg.RedisAddr != "",
		SubmissionLedger: clients.ledgerDB != nil,
		Tracing:          cfg.OtelEnabled,
	}
	return Handlers{
		Health:     httpH.NewHealthHandler(cfg.Version, clients.Store.Describe(), features),
		Study:      httpH.NewStudyHandler(svc.Submissions),
		Generation: httpH.NewGenerationHandler(svc.Images),
		Static:     httpH.NewStaticHandler(log, clients.Store),
	}
}

func wireServer(log *logger.Logger, cfg Config, h Handlers) *http.Server {
	if cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	tracing := ""
	if cfg.OtelEnabled {
		tracing = "promptstudy-api"
	}
	return http.NewServer(http.RouterConfig{
		Log:               log,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		TracingService:    tracing,
		StudyHandler:      h.Study,
		GenerationHandler: h.Generation,
		StaticHandler:     h.Static,
		HealthHandler:     h.Health,
	})
}
