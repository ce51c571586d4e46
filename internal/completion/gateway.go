// Package completion obtains generated replies from the OpenAI chat
// completion API, hiding upstream transience behind a retry loop.
package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/softreply/sophia/internal/conversation"
	"github.com/softreply/sophia/internal/reliability"
)

// Client issues a single chat-completion request. *openai.Client satisfies it.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config controls the upstream call and the retry behavior around it.
type Config struct {
	Model          string
	Temperature    float32
	MaxTokens      int
	MaxRetries     int           // total attempts, not re-attempts
	RetryBackoff   time.Duration // fixed wait between attempts
	RequestTimeout time.Duration // per-attempt bound
}

// UpstreamError is the only error type Generate returns.
type UpstreamError struct {
	Attempts         int
	ExhaustedRetries bool
	Err              error
}

func (e *UpstreamError) Error() string {
	if e.ExhaustedRetries {
		return fmt.Sprintf("completion failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("completion failed (attempt %d): %v", e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Gateway wraps a Client with timeout, classification, and backoff.
type Gateway struct {
	client Client
	cfg    Config

	// sleep is swapped in tests to simulate failures without real delays.
	sleep func(ctx context.Context, d time.Duration) error

	// OnRetry, when set, observes each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

func NewGateway(client Client, cfg Config) *Gateway {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Gateway{
		client: client,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

// Generate produces a reply for the given history. Transient upstream
// failures are retried up to MaxRetries attempts with a fixed backoff; fatal
// ones fail immediately. The reply text is trimmed, and an empty reply is a
// valid result rather than an error.
func (g *Gateway) Generate(ctx context.Context, history []conversation.Turn) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    history,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		text, err := g.attempt(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		// If the caller is gone, stop immediately regardless of the error class.
		if ctx.Err() != nil {
			return "", &UpstreamError{Attempts: attempt, Err: err}
		}
		if !reliability.IsTransient(err) {
			return "", &UpstreamError{Attempts: attempt, Err: err}
		}
		if attempt == g.cfg.MaxRetries {
			break
		}
		if g.OnRetry != nil {
			g.OnRetry(attempt, err)
		}
		if err := g.sleep(ctx, g.cfg.RetryBackoff); err != nil {
			return "", &UpstreamError{Attempts: attempt, Err: err}
		}
	}
	return "", &UpstreamError{Attempts: g.cfg.MaxRetries, ExhaustedRetries: true, Err: lastErr}
}

func (g *Gateway) attempt(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	attemptCtx := ctx
	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(attemptCtx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
