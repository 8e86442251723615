package config

import (
	"context"
	"strconv"

	"github.com/4ndr3jS/TravelStory/pkg/store"
)

// Keys for user preferences persisted in the state store.
const (
	KeyStoryStyle   = "pref_story_style"
	KeyTravelMode   = "pref_travel_mode"
	KeyVoice        = "pref_voice"
	KeyContextChars = "pref_context_chars"
)

// Provider merges static configuration with preferences the user changed at
// runtime.
type Provider interface {
	StoryStyle(ctx context.Context) string
	TravelMode(ctx context.Context) string
	Voice(ctx context.Context) string
	ContextChars(ctx context.Context) int

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. st may be nil.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) StoryStyle(ctx context.Context) string {
	return p.getString(ctx, KeyStoryStyle, p.base.Story.DefaultStyle)
}

func (p *UnifiedProvider) TravelMode(ctx context.Context) string {
	return p.getString(ctx, KeyTravelMode, "WALKING")
}

func (p *UnifiedProvider) Voice(ctx context.Context) string {
	return p.getString(ctx, KeyVoice, p.base.TTS.EdgeTTS.VoiceID)
}

func (p *UnifiedProvider) ContextChars(ctx context.Context) int {
	return p.getInt(ctx, KeyContextChars, p.base.Story.ContextChars)
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil && i > 0 {
				return i
			}
		}
	}
	return fallback
}
