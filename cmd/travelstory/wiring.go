package main

import (
	"fmt"
	"log/slog"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/db"
	"github.com/4ndr3jS/TravelStory/pkg/events"
	"github.com/4ndr3jS/TravelStory/pkg/llm/failover"
	"github.com/4ndr3jS/TravelStory/pkg/llm/prompts"
	"github.com/4ndr3jS/TravelStory/pkg/narrator"
	"github.com/4ndr3jS/TravelStory/pkg/playback"
	"github.com/4ndr3jS/TravelStory/pkg/request"
	"github.com/4ndr3jS/TravelStory/pkg/store"
	"github.com/4ndr3jS/TravelStory/pkg/tracker"
	"github.com/4ndr3jS/TravelStory/pkg/tts"
)

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func initLLM(cfg *config.Config, rc *request.Client, tr *tracker.Tracker) (*failover.Provider, []string, error) {
	llmProv, names, err := narrator.NewLLMProvider(cfg.LLM, cfg.Log.LLM.Path, rc, tr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	slog.Info("LLM providers configured", "chain", names)
	return llmProv, names, nil
}

func initGenerator(llmProv *failover.Provider, cfgProv config.Provider) (*narrator.Generator, error) {
	pm, err := prompts.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}
	return narrator.New(llmProv, pm, cfgProv), nil
}

// initTTS returns nil when narration audio is disabled or misconfigured;
// the story itself works without audio.
func initTTS(cfg *config.Config, tr *tracker.Tracker) tts.Provider {
	engine, err := narrator.NewTTSProvider(&cfg.TTS, cfg.Story.Language, tr)
	if err != nil {
		slog.Error("TTS disabled", "error", err)
		return nil
	}
	return engine
}

func initRenderer(cfg *config.Config, engine tts.Provider) *playback.Renderer {
	name := cfg.TTS.Engine
	if cfg.TTS.Fallback != "" && cfg.TTS.Fallback != "none" && cfg.TTS.Fallback != cfg.TTS.Engine {
		name += "+" + cfg.TTS.Fallback
	}
	return playback.NewRenderer(engine, name, cfg.Story.AudioDir)
}

// initEvents connects to NATS when enabled. A failed connection is not fatal;
// the error is reported through the startup probes.
func initEvents(cfg config.EventsConfig) (*events.Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	pub, err := events.Connect(cfg)
	if err != nil {
		slog.Warn("Events: NATS unavailable, running without event bus", "url", cfg.URL, "error", err)
		return nil, err
	}
	return pub, nil
}
