package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type Named interface {
	Classifier
	Name() string
}

// Chain tries providers in order (primary, secondary, tertiary) under one overall timeout.
type Chain struct {
	providers []Named
	timeout   time.Duration
	log       *logger.Logger
}

func NewChain(baseLog *logger.Logger, timeout time.Duration, providers ...Named) *Chain {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	out := make([]Named, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Chain{
		providers: out,
		timeout:   timeout,
		log:       baseLog.With("service", "ClassifierChain"),
	}
}

func (c *Chain) Len() int { return len(c.providers) }

func (c *Chain) Classify(ctx context.Context, contextText, originURL string) (*Result, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no providers configured: %w", ErrExhausted)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for i, p := range c.providers {
		res, err := p.Classify(ctx, contextText, originURL)
		if err == nil && res != nil {
			if i > 0 {
				c.log.Info("classifier fallback succeeded", "provider", p.Name(), "position", i)
			}
			return res, nil
		}
		lastErr = err
		c.log.Warn("classifier provider failed", "provider", p.Name(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("timed out after %s: %w", c.timeout, ErrExhausted)
	}
	return nil, fmt.Errorf("%v: %w", lastErr, ErrExhausted)
}
