package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/promptstudy-backend/internal/http/handlers"
	httpMW "github.com/yungbote/promptstudy-backend/internal/http/middleware"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AllowedOrigins []string
	// TracingService names the otelgin spans; empty disables HTTP tracing.
	TracingService string

	StudyHandler      *httpH.StudyHandler
	GenerationHandler *httpH.GenerationHandler
	StaticHandler     *httpH.StaticHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingService != "" {
		r.Use(otelgin.Middleware(cfg.TracingService))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}

	// Stored images
	if cfg.StaticHandler != nil {
		r.GET("/static/*path", cfg.StaticHandler.Serve)
	}

	api := r.Group("/api")
	{
		if cfg.HealthHandler != nil {
			api.GET("/test", cfg.HealthHandler.Test)
		}

		// Submissions
		if cfg.StudyHandler != nil {
			api.POST("/save-survey", cfg.StudyHandler.SaveSurvey)
			api.POST("/save-prompt", cfg.StudyHandler.SavePrompt)
			api.POST("/save-prompts", cfg.StudyHandler.SavePrompt)
			api.POST("/save-selection", cfg.StudyHandler.SaveSelection)
			api.POST("/save-ratings", cfg.StudyHandler.SaveRatings)
			api.POST("/save-timing", cfg.StudyHandler.SaveTiming)
			api.POST("/mark-completion", cfg.StudyHandler.MarkCompletion)
		}

		// Generation
		if cfg.GenerationHandler != nil {
			api.POST("/generate-images", cfg.GenerationHandler.GenerateImages)
			api.GET("/check-generation-status/:prolificId", cfg.GenerationHandler.CheckStatus)
			api.GET("/get-all-images/:prolificId", cfg.GenerationHandler.GetAllImages)
		}
	}

	return r
}
