// Package narrator turns routes into story text through an LLM provider.
package narrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/llm"
	"github.com/4ndr3jS/TravelStory/pkg/llm/prompts"
	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// wordsPerSegment targets roughly three minutes of narration.
const wordsPerSegment = 400

// Generator implements story.Generator on top of an llm.Provider.
type Generator struct {
	llm     llm.Provider
	prompts *prompts.Manager
	cfg     config.Provider
}

// New creates a Generator.
func New(p llm.Provider, pm *prompts.Manager, cfg config.Provider) *Generator {
	return &Generator{llm: p, prompts: pm, cfg: cfg}
}

// GenerateOutline asks the model for one short plan per segment.
func (g *Generator) GenerateOutline(ctx context.Context, route *model.Route, total int) ([]string, error) {
	data := g.baseData(route, total)
	prompt, err := g.prompts.Render(prompts.Outline, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render outline prompt: %w", err)
	}

	var res outlineResponse
	if err := g.llm.GenerateJSON(ctx, llm.IntentOutline, prompt, &res); err != nil {
		return nil, err
	}

	outline := make([]string, 0, len(res))
	for i, entry := range res {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, fmt.Errorf("outline entry %d is empty", i+1)
		}
		outline = append(outline, entry)
	}
	if len(outline) > total {
		outline = outline[:total]
	}

	slog.Debug("Narrator: outline generated", "segments", len(outline), "requested", total)
	return outline, nil
}

// GenerateSegment writes the text of segment index (1-based). Only the tail
// of previous is sent when it exceeds the configured context size.
func (g *Generator) GenerateSegment(ctx context.Context, route *model.Route, index, total int, outline, previous string) (string, error) {
	data := g.baseData(route, total)
	data.Index = index
	data.Outline = outline
	data.Previous = llm.TailRunes(previous, g.cfg.ContextChars(ctx))
	data.IsLast = index == total
	data.Words = wordsPerSegment

	prompt, err := g.prompts.Render(prompts.Segment, data)
	if err != nil {
		return "", fmt.Errorf("failed to render segment prompt: %w", err)
	}

	text, err := g.llm.GenerateText(ctx, llm.IntentSegment, prompt)
	if err != nil {
		return "", err
	}

	text = cleanScript(text)
	if words := len(strings.Fields(text)); words > 2*wordsPerSegment {
		slog.Warn("Narrator: segment exceeded length", "index", index, "words", words, "requested", wordsPerSegment)
	}
	return text, nil
}

func (g *Generator) baseData(route *model.Route, total int) prompts.StoryData {
	return prompts.StoryData{
		StartAddress: route.StartAddress,
		EndAddress:   route.EndAddress,
		TravelMode:   strings.ToLower(string(route.TravelMode)),
		Distance:     route.Distance,
		Duration:     route.Duration,
		Style:        string(route.Style),
		Language:     g.cfg.AppConfig().Story.Language,
		Total:        total,
	}
}

var (
	headingRe  = regexp.MustCompile(`(?m)^[ \t]*#+[ \t]*`)
	titleRe    = regexp.MustCompile(`(?i)^\s*(title|part \d+)\s*:[^\n]*\n`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// cleanScript removes markdown artifacts that sound wrong when spoken.
func cleanScript(text string) string {
	text = strings.ReplaceAll(text, "*", "")
	text = headingRe.ReplaceAllString(text, "")
	text = titleRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// outlineResponse accepts {"segments": [...]}, {"outline": [...]} or a bare array.
type outlineResponse []string

func (o *outlineResponse) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*o = list
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	for _, key := range []string{"segments", "outline"} {
		if raw, ok := obj[key]; ok {
			if err := json.Unmarshal(raw, &list); err != nil {
				return fmt.Errorf("outline field %q: %w", key, err)
			}
			*o = list
			return nil
		}
	}
	return errors.New("outline response has no segments")
}
