package app

import (
	"github.com/yungbote/promptstudy-backend/internal/jobs/worker"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
	"github.com/yungbote/promptstudy-backend/internal/services"
)

type Services struct {
	Worker      *worker.Pool
	Tracker     services.StatusTracker
	Generator   services.ImageGenerator
	Submissions services.SubmissionService
	Images      services.ImageQueryService
}

func wireServices(log *logger.Logger, cfg Config, clients *Clients) Services {
	log.Info("Wiring services...")
	pool := worker.NewPool(log, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		QueueSize:   cfg.WorkerQueueSize,
	})
	tracker := services.NewStatusTracker(log, clients.Store)
	generator := services.NewImageGenerator(
		log,
		clients.Store,
		tracker,
		clients.Images,
		clients.Downloader,
		pool,
		clients.Ledger,
		services.GenerationConfig{Timeout: cfg.GenerationTimeout, MaxImageSize: cfg.MaxImageSize},
	)
	return Services{
		Worker:      pool,
		Tracker:     tracker,
		Generator:   generator,
		Submissions: services.NewSubmissionService(log, clients.Store, generator, clients.Ledger),
		Images:      services.NewImageQueryService(log, tracker, generator, services.AssetLinker{BaseURL: cfg.PublicBaseURL}),
	}
}
