// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package fetch is the data-fetch client used by source processors. It
// retries transient failures with exponential backoff and extracts fields
// from JSON responses by gjson path.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/specialistvlad/printgraph/internal/ctxlog"
)

// Config tunes a Client.
type Config struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxBodyBytes caps the response size; larger bodies are an error.
	MaxBodyBytes int64
	UserAgent    string
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxBodyBytes:    32 << 20,
		UserAgent:       "printgraph",
	}
}

// Client performs GET requests with retry.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client. Zero fields of cfg take their DefaultConfig value,
// except MaxRetries where zero means no retries.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	c := &Client{cfg: cfg, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url and returns the response body. 5xx responses, 429 and
// transport errors are retried; other 4xx responses fail immediately with a
// *StatusError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	logger := ctxlog.FromContext(ctx).With("url", url)

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		b, err := c.once(ctx, url)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialInterval
	policy.MaxInterval = c.cfg.MaxInterval
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		logger.Warn("Fetch attempt failed, retrying.", "attempt", attempt, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxRetries), ctx), notify)
	if err != nil {
		return nil, &FetchError{URL: url, Attempts: attempt, Cause: err}
	}
	logger.Debug("Fetched.", "attempts", attempt, "size", len(body))
	return body, nil
}

func (c *Client) once(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxBodyBytes {
		return nil, backoff.Permanent(fmt.Errorf("response body exceeds %d bytes", c.cfg.MaxBodyBytes))
	}
	return data, nil
}
