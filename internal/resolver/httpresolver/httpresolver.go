// Package httpresolver fetches YAML component manifests over HTTP(S) with
// retries, for topologies whose declarations live behind a manifest
// server.
package httpresolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/infrastructure/resilience"
	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
)

const maxManifestBytes = 1 << 20

// Resolver resolves http:// and https:// component URLs by fetching the
// manifest body at the URL. A circuit breaker fronts the manifest server:
// once it looks dead, resolutions fail fast instead of each burning the
// full retry budget.
type Resolver struct {
	client  *retryablehttp.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// Option configures the resolver.
type Option func(*Resolver)

// WithRetries overrides the retry count.
func WithRetries(n int) Option {
	return func(r *Resolver) { r.client.RetryMax = n }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.client.HTTPClient.Timeout = d }
}

// WithBreaker overrides the circuit breaker configuration.
func WithBreaker(cfg resilience.Config) Option {
	return func(r *Resolver) { r.breaker = resilience.New(cfg) }
}

// New creates a resolver with retrying transport defaults.
func New(logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	r := &Resolver{
		client:  client,
		breaker: resilience.New(resilience.Config{}),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements resolver.Resolver.
func (r *Resolver) Resolve(ctx context.Context, url string) (*decl.Component, error) {
	var data []byte
	err := r.breaker.Do(func() error {
		var fetchErr error
		data, fetchErr = r.fetch(ctx, url)
		return fetchErr
	})
	if err != nil {
		return nil, errs.Resolver(url, err)
	}

	var c decl.Component
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errs.Resolver(url, fmt.Errorf("parsing manifest: %w", err))
	}
	if err := c.Validate(); err != nil {
		return nil, errs.InvalidDeclaration(url, err.Error())
	}

	r.logger.Debug("resolved manifest", zap.String("url", url), zap.Int("bytes", len(data)))
	return &c, nil
}

// fetch is one breaker-guarded round trip to the manifest server.
func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest server returned %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
}
