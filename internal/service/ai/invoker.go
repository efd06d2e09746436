package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
)

// Options 控制单次推理的超时与重试。
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Invoker wraps a Completer with a per-attempt timeout and at most one retry.
type Invoker struct {
	completer Completer
	opts      Options
	logger    *zap.Logger
}

// NewInvoker wraps completer. A nil completer makes every call fail with ErrNotConfigured.
func NewInvoker(completer Completer, opts Options, logger *zap.Logger) *Invoker {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	return &Invoker{completer: completer, opts: opts, logger: logging.OrNop(logger)}
}

// Enabled reports whether a provider is wired.
func (i *Invoker) Enabled() bool {
	return i != nil && i.completer != nil
}

// Complete implements Completer.
func (i *Invoker) Complete(ctx context.Context, p Prompt) (string, error) {
	if !i.Enabled() {
		return "", ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt <= i.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(i.opts.RetryDelay):
			}
		}

		out, err := i.attempt(ctx, p)
		if err == nil {
			return out, nil
		}
		lastErr = err

		// 调用方取消时不再重试。
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		i.logger.Warn("inference attempt failed",
			zap.String("prompt", p.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return "", fmt.Errorf("%s failed after %d attempts: %w", p.Name, i.opts.MaxRetries+1, lastErr)
}

func (i *Invoker) attempt(ctx context.Context, p Prompt) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, i.opts.Timeout)
	defer cancel()

	out, err := i.completer.Complete(attemptCtx, p)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("inference timed out after %s: %w", i.opts.Timeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
