package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/promptstudy-backend/internal/data/db"
	"github.com/yungbote/promptstudy-backend/internal/data/records"
	"github.com/yungbote/promptstudy-backend/internal/data/repos/ledger"
	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
	"github.com/yungbote/promptstudy-backend/internal/platform/fetch"
	"github.com/yungbote/promptstudy-backend/internal/platform/lockx"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
	"github.com/yungbote/promptstudy-backend/internal/platform/openai"
	"github.com/yungbote/promptstudy-backend/internal/services"
)

var errImagesNotConfigured = errors.New("image generation is not configured (missing OPENAI_API_KEY)")

// unconfiguredImages fails every generation so trials end up failed instead of pending.
type unconfiguredImages struct{}

func (unconfiguredImages) GenerateImage(context.Context, string) (openai.ImageGeneration, error) {
	return openai.ImageGeneration{}, errImagesNotConfigured
}

type Clients struct {
	Blob       blob.Store
	Locker     lockx.Locker
	Store      *records.Store
	Images     openai.Client
	Downloader fetch.Downloader
	Ledger     services.SubmissionLedger

	imagesConfigured bool
	ledgerDB         *db.LedgerService
	closers          []func() error
}

func (c *Clients) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (*Clients, error) {
	log.Info("Wiring clients...")
	c := &Clients{}

	// Record storage
	b, err := resolveBlobStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	c.Blob = b
	if cl, ok := b.(interface{ Close() error }); ok {
		c.closers = append(c.closers, cl.Close)
	}

	// Locks
	if cfg.RedisAddr != "" {
		rl, err := lockx.NewRedisLocker(ctx, log, lockx.RedisConfig{Addr: cfg.RedisAddr})
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("init redis locker: %w", err)
		}
		c.Locker = rl
		c.closers = append(c.closers, rl.Close)
	} else {
		c.Locker = lockx.NewLocal()
	}
	c.Store = records.New(log, c.Blob, c.Locker)

	// OpenAI
	images, err := openai.NewClient(log, openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ImageModel: cfg.OpenAIImageModel,
		ImageSize:  cfg.OpenAIImageSize,
		Timeout:    cfg.OpenAITimeout,
		MaxRetries: cfg.OpenAIMaxRetries,
		// Retries share the cap with first attempts.
		RequestsPerMinute: cfg.OpenAIRPM,
	})
	if err != nil {
		log.Warn("Image generation disabled", "error", err.Error())
		c.Images = unconfiguredImages{}
	} else {
		c.Images = images
		c.imagesConfigured = true
	}

	// Downloads
	c.Downloader = fetch.NewDownloader(log, fetch.Config{
		Timeout:    cfg.DownloadTimeout,
		MaxRetries: cfg.DownloadMaxRetries,
	}, fetch.NewDNSResolver(cfg.FallbackNameservers, cfg.DownloadTimeout))

	// Ledger
	c.Ledger = services.NopLedger()
	if cfg.LedgerDSN != "" {
		ls, err := db.NewLedgerService(log, cfg.LedgerDriver, cfg.LedgerDSN)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		c.closers = append(c.closers, ls.Close)
		if err := db.AutoMigrateAll(ls.DB()); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("ledger automigrate: %w", err)
		}
		c.ledgerDB = ls
		c.Ledger = services.NewSubmissionLedger(log, ledger.NewSubmissionEventRepo(ls.DB(), log))
	}
	return c, nil
}
