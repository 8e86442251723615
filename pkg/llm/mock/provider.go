package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	totalRe = regexp.MustCompile(`exactly (\d+) `)
	partRe  = regexp.MustCompile(`part (\d+) of (\d+)`)
)

// Provider is an offline llm.Provider for development and demos. It answers
// outline prompts with numbered placeholders and segment prompts with a short
// deterministic paragraph.
type Provider struct {
	latency time.Duration
}

// New returns a mock provider that waits latency before each answer.
func New(latency time.Duration) *Provider {
	return &Provider{latency: latency}
}

func (p *Provider) wait(ctx context.Context) error {
	if p.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.latency):
		return nil
	}
}

func (p *Provider) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	index, total := 1, 1
	if m := partRe.FindStringSubmatch(prompt); m != nil {
		index, _ = strconv.Atoi(m[1])
		total, _ = strconv.Atoi(m[2])
	}
	return fmt.Sprintf("[mock segment %d of %d] The road unrolled ahead and the story moved on with it.", index, total), nil
}

func (p *Provider) GenerateJSON(ctx context.Context, name, prompt string, target any) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	total := 1
	if m := totalRe.FindStringSubmatch(prompt); m != nil {
		total, _ = strconv.Atoi(m[1])
	}
	segments := make([]string, total)
	for i := range segments {
		segments[i] = fmt.Sprintf("Mock plan for segment %d.", i+1)
	}
	raw, err := json.Marshal(map[string][]string{"segments": segments})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func (p *Provider) HealthCheck(ctx context.Context) error { return nil }

func (p *Provider) HasProfile(name string) bool { return strings.TrimSpace(name) != "" }
