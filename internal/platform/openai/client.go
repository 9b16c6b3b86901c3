// Package openai is a minimal client for the OpenAI Images API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/promptstudy-backend/internal/platform/httpx"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

const generationsPath = "/v1/images/generations"

// ImageGeneration is one generated image. The API answers with either a short-lived URL
// or inline bytes depending on the model and requested response format.
type ImageGeneration struct {
	URL           string
	Bytes         []byte
	RevisedPrompt string
}

type Client interface {
	GenerateImage(ctx context.Context, prompt string) (ImageGeneration, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	ImageSize  string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
	// RequestsPerMinute caps outgoing calls, retries included; 0 disables the cap.
	RequestsPerMinute int
}

// APIError is a non-2xx answer. Message is taken from the API's error envelope when one
// is present so it can be shown to operators verbatim.
type APIError struct {
	httpx.StatusError
	Message string
	Type    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.StatusError.Error()
	}
	return fmt.Sprintf("openai %d: %s", e.StatusCode, e.Message)
}

type client struct {
	log     *logger.Logger
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "dall-e-3"
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = "1024x1024"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.MaxRetries = max(cfg.MaxRetries, 0)
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &client{
		log:     log.With("client", "OpenAIImages"),
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}, nil
}

type generationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type generationResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, prompt string) (ImageGeneration, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ImageGeneration{}, errors.New("openai: prompt is required")
	}
	req := generationRequest{Model: c.cfg.ImageModel, Prompt: prompt, N: 1, Size: c.cfg.ImageSize}
	// gpt-image models always answer inline and reject response_format.
	if !strings.HasPrefix(strings.ToLower(req.Model), "gpt-image-") {
		req.ResponseFormat = "url"
	}

	var resp generationResponse
	if err := c.postWithRetry(ctx, generationsPath, req, &resp); err != nil {
		return ImageGeneration{}, err
	}
	if len(resp.Data) == 0 {
		return ImageGeneration{}, errors.New("openai: response contained no image")
	}
	item := resp.Data[0]
	out := ImageGeneration{URL: strings.TrimSpace(item.URL), RevisedPrompt: strings.TrimSpace(item.RevisedPrompt)}
	if out.URL != "" {
		return out, nil
	}
	if item.B64JSON == "" {
		return ImageGeneration{}, errors.New("openai: response had neither url nor b64_json")
	}
	raw, err := base64.StdEncoding.DecodeString(item.B64JSON)
	if err != nil {
		return ImageGeneration{}, fmt.Errorf("openai: decode b64_json: %w", err)
	}
	out.Bytes = raw
	return out, nil
}

// postWithRetry retries transient failures (timeouts, 408, 429, 5xx) up to MaxRetries
// times with doubling, jittered backoff; Retry-After is honoured up to 10s.
func (c *client) postWithRetry(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("openai: encode request: %w", err)
	}
	backoff := c.cfg.Backoff
	for attempt := 0; ; attempt++ {
		resp, err := c.post(ctx, path, payload, out)
		if err == nil {
			return nil
		}
		if attempt >= c.cfg.MaxRetries || !httpx.IsRetryableError(err) {
			return err
		}
		wait := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request failed, retrying", "attempt", attempt+1, "wait", wait.String(), "error", err.Error())
		if err := httpx.Sleep(ctx, wait); err != nil {
			return err
		}
		backoff *= 2
	}
}

func (c *client) post(ctx context.Context, path string, payload []byte, out any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai: rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, decodeAPIError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp, fmt.Errorf("openai: decode response: %w", err)
	}
	return resp, nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusError: httpx.StatusError{StatusCode: status, Body: string(raw)}}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		apiErr.Message = strings.TrimSpace(envelope.Error.Message)
		apiErr.Type = envelope.Error.Type
	}
	return apiErr
}
