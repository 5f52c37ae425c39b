package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"dailyboard/core"
	"dailyboard/realtime"
)

// Sink posts leaderboard pushes to configured HTTP endpoints using the same
// frame body that socket viewers receive. It implements engine.Broadcaster.
type Sink struct {
	client    *http.Client
	endpoints []string
	log       *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	s.log = s.log.With("component", "webhook")
	return s
}

// Broadcast posts the push frame for ev to every endpoint. Every endpoint is
// attempted; the returned error joins the individual failures.
func (s *Sink) Broadcast(ctx context.Context, ev core.Event) error {
	if len(s.endpoints) == 0 {
		return nil
	}
	body := realtime.MarshalJSON(ev)
	var errs []error
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			s.log.Warn("webhook delivery failed", "endpoint", ep, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
	}
	return nil
}
