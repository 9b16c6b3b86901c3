package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/yungbote/promptstudy-backend/internal/data/records"
	"github.com/yungbote/promptstudy-backend/internal/jobs/worker"
	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
	"github.com/yungbote/promptstudy-backend/internal/platform/lockx"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
	"github.com/yungbote/promptstudy-backend/internal/platform/openai"
)

type fakeImages struct {
	mu      sync.Mutex
	prompts []string
	gen     openai.ImageGeneration
	err     error
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (openai.ImageGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.gen, f.err
}

type fakeDownloader struct {
	mu   sync.Mutex
	urls []string
	body []byte
	err  error
	// onDownload runs before the fake returns, e.g. to expire the caller's ctx.
	onDownload func()
}

func (f *fakeDownloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, rawURL)
	if f.onDownload != nil {
		f.onDownload()
	}
	return f.body, f.err
}

// completeFailingTracker refuses MarkCompleted and delegates everything else.
type completeFailingTracker struct {
	StatusTracker
	err error
}

func (f completeFailingTracker) MarkCompleted(context.Context, string, int, string) error {
	return f.err
}

// recordingScheduler keeps submitted jobs so tests decide when they run.
type recordingScheduler struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (s *recordingScheduler) Submit(job worker.Job) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return nil
}

func (s *recordingScheduler) runAll(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()
	for _, j := range jobs {
		_ = j.Run(context.Background())
	}
}

func (s *recordingScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type harness struct {
	root      string
	store     *records.Store
	tracker   StatusTracker
	images    *fakeImages
	download  *fakeDownloader
	scheduler *recordingScheduler
	generator ImageGenerator
	subs      SubmissionService
	queries   ImageQueryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	b, err := blob.NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	log := logger.Nop()
	h := &harness{
		root:      root,
		store:     records.New(log, b, lockx.NewLocal()),
		images:    &fakeImages{gen: openai.ImageGeneration{URL: "https://images.example/fox.png"}},
		download:  &fakeDownloader{body: testPNG(t, 8, 8)},
		scheduler: &recordingScheduler{},
	}
	h.tracker = NewStatusTracker(log, h.store)
	h.generator = NewImageGenerator(log, h.store, h.tracker, h.images, h.download, h.scheduler, nil, GenerationConfig{})
	h.subs = NewSubmissionService(log, h.store, h.generator, nil)
	h.queries = NewImageQueryService(log, h.tracker, h.generator, AssetLinker{BaseURL: "http://localhost:8000"})
	return h
}

func (h *harness) rows(t *testing.T, rt records.RecordType) []records.Row {
	t.Helper()
	rows, err := h.store.ReadRows(context.Background(), rt)
	if err != nil {
		t.Fatalf("ReadRows(%s): %v", rt, err)
	}
	return rows
}
