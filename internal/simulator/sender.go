package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Sender posts events to a webhook at a fixed pace.
type Sender struct {
	target  string
	client  *http.Client
	limiter *rate.Limiter
	token   string
	logger  *log.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) { s.client = c }
}

// WithBearerToken adds an Authorization header, for a faultline-web
// webhook running in production mode.
func WithBearerToken(token string) SenderOption {
	return func(s *Sender) { s.token = token }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) SenderOption {
	return func(s *Sender) { s.logger = l }
}

// NewSender creates a sender that emits at most one event per interval.
// A zero interval sends as fast as the target answers.
func NewSender(target string, interval time.Duration, opts ...SenderOption) *Sender {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	s := &Sender{
		target:  target,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.New(os.Stderr, "faultline-sim: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts one event. Non-2xx responses are errors.
func (s *Sender) Send(ctx context.Context, ev any) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", s.target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: %s", s.target, resp.Status)
	}
	return nil
}

// Run sends count events from gen (0 means until ctx is done). Delivery
// failures are logged and do not stop the run. It returns the number of
// events accepted by the target.
func (s *Sender) Run(ctx context.Context, gen *Generator, count int) int {
	s.logger.Printf("starting simulator, targeting %s", s.target)

	sent := 0
	for i := 0; count == 0 || i < count; i++ {
		// Wait fails only when ctx ends before the next slot.
		if err := s.limiter.Wait(ctx); err != nil {
			return sent
		}

		ev := gen.Next()
		if err := s.Send(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return sent
			}
			s.logger.Printf("failed to send error %s: %v", ev.RequestID, err)
			continue
		}
		sent++
		s.logger.Printf("sent error %s (%s %s)", ev.RequestID, ev.Service, ev.ErrorType)
	}
	return sent
}
