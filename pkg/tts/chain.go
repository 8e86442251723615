package tts

import (
	"context"
	"errors"
	"log/slog"
)

// Chain tries engines in order. Only a FatalError moves on to the next
// engine; other errors are returned as is.
type Chain struct {
	providers []Provider
	names     []string
}

// NewChain wraps providers in fallback order. names label them in logs.
func NewChain(providers []Provider, names []string) *Chain {
	return &Chain{providers: providers, names: names}
}

// Synthesize implements Provider.
func (c *Chain) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if len(c.providers) == 0 {
		return "", errors.New("no tts engine configured")
	}
	var lastErr error
	for i, p := range c.providers {
		// The voice override belongs to the primary engine.
		v := voice
		if i > 0 {
			v = ""
		}
		format, err := p.Synthesize(ctx, text, v, outputPath)
		if err == nil {
			return format, nil
		}
		lastErr = err
		if !IsFatalError(err) || ctx.Err() != nil {
			return "", err
		}
		slog.Warn("TTS: engine failed, falling back", "engine", c.name(i), "error", err)
	}
	return "", lastErr
}

// Voices returns the voices of the primary engine.
func (c *Chain) Voices(ctx context.Context) ([]Voice, error) {
	if len(c.providers) == 0 {
		return nil, nil
	}
	return c.providers[0].Voices(ctx)
}

func (c *Chain) name(i int) string {
	if i < len(c.names) {
		return c.names[i]
	}
	return "unknown"
}
