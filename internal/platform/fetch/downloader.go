// Package fetch downloads generated assets. When the system resolver cannot reach the
// asset host it retries through fixed public nameservers, dialing the resolved IP while
// keeping the original Host header and TLS server name.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/promptstudy-backend/internal/platform/httpx"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

type Config struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	MaxBytes   int64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 32 << 20
	}
	return c
}

type Downloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

type downloader struct {
	log      *logger.Logger
	cfg      Config
	primary  *http.Client
	resolver Resolver
	// fallbackTransport builds the transport used after resolving host to an IP.
	fallbackTransport func(serverName string) *http.Transport
}

func NewDownloader(log *logger.Logger, cfg Config, resolver Resolver) Downloader {
	cfg = cfg.withDefaults()
	return &downloader{
		log:               log.With("service", "AssetDownloader"),
		cfg:               cfg,
		primary:           &http.Client{Timeout: cfg.Timeout},
		resolver:          resolver,
		fallbackTransport: defaultFallbackTransport,
	}
}

func defaultFallbackTransport(serverName string) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}
	return t
}

func (d *downloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid asset url %q", rawURL)
	}

	body, err := d.withRetry(ctx, func() ([]byte, *http.Response, error) {
		return d.get(ctx, d.primary, u.String(), "")
	})
	if err == nil {
		return body, nil
	}
	if !httpx.IsConnectivityError(err) || d.resolver == nil {
		return nil, err
	}

	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return nil, err
	}
	d.log.Warn("Primary download failed to connect, trying fallback resolver", "host", host, "error", err.Error())

	body, fbErr := d.fallback(ctx, u)
	if fbErr != nil {
		return nil, fmt.Errorf("download failed: %w (fallback: %v)", err, fbErr)
	}
	return body, nil
}

func (d *downloader) fallback(ctx context.Context, u *url.URL) ([]byte, error) {
	host := u.Hostname()
	ips, err := d.resolver.LookupIPv4(ctx, host)
	if err != nil {
		return nil, err
	}
	transport := d.fallbackTransport(host)
	defer transport.CloseIdleConnections()
	client := &http.Client{Timeout: d.cfg.Timeout, Transport: transport}

	var errs []error
	for _, ip := range ips {
		target := *u
		if port := u.Port(); port != "" {
			target.Host = net.JoinHostPort(ip.String(), port)
		} else {
			target.Host = ip.String()
		}
		body, err := d.withRetry(ctx, func() ([]byte, *http.Response, error) {
			return d.get(ctx, client, target.String(), u.Host)
		})
		if err == nil {
			d.log.Info("Fallback download succeeded", "host", host, "ip", ip.String())
			return body, nil
		}
		var se *httpx.StatusError
		if errors.As(err, &se) {
			return nil, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", ip, err))
	}
	return nil, errors.Join(errs...)
}

func (d *downloader) get(ctx context.Context, client *http.Client, target, hostHeader string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	if hostHeader != "" {
		req.Host = hostHeader
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp, &httpx.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes+1))
	if err != nil {
		return nil, resp, err
	}
	if int64(len(body)) > d.cfg.MaxBytes {
		return nil, resp, fmt.Errorf("asset exceeds %d bytes", d.cfg.MaxBytes)
	}
	if len(body) == 0 {
		return nil, resp, errors.New("empty asset body")
	}
	return body, resp, nil
}

// withRetry retries transient failures. Connectivity failures are returned at once so
// the caller can switch strategy.
func (d *downloader) withRetry(ctx context.Context, fn func() ([]byte, *http.Response, error)) ([]byte, error) {
	backoff := d.cfg.Backoff
	for attempt := 0; ; attempt++ {
		body, resp, err := fn()
		if err == nil {
			return body, nil
		}
		if httpx.IsConnectivityError(err) || !httpx.IsRetryableError(err) || attempt >= d.cfg.MaxRetries {
			return nil, err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		d.log.Warn("Asset download retrying", "attempt", attempt+1, "sleep", sleepFor.String(), "error", err.Error())
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}
