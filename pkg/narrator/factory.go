package narrator

import (
	"errors"
	"fmt"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/llm"
	"github.com/4ndr3jS/TravelStory/pkg/llm/failover"
	"github.com/4ndr3jS/TravelStory/pkg/llm/gemini"
	"github.com/4ndr3jS/TravelStory/pkg/llm/groq"
	"github.com/4ndr3jS/TravelStory/pkg/llm/mock"
	"github.com/4ndr3jS/TravelStory/pkg/llm/openai"
	"github.com/4ndr3jS/TravelStory/pkg/request"
	"github.com/4ndr3jS/TravelStory/pkg/tracker"
	"github.com/4ndr3jS/TravelStory/pkg/tts"
	"github.com/4ndr3jS/TravelStory/pkg/tts/azure"
	"github.com/4ndr3jS/TravelStory/pkg/tts/edgetts"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	temperatureJitter = 0.1
)

// NewLLMProvider builds the configured providers in order and wraps them in
// a failover provider. It also returns the provider labels in fallback order.
func NewLLMProvider(cfg config.LLMConfig, logPath string, rc *request.Client, t *tracker.Tracker) (*failover.Provider, []string, error) {
	if len(cfg.Providers) == 0 {
		return nil, nil, errors.New("no llm providers configured")
	}

	providers := make([]llm.Provider, 0, len(cfg.Providers))
	names := make([]string, 0, len(cfg.Providers))
	seen := make(map[string]int)
	for _, pCfg := range cfg.Providers {
		p, err := newLLM(pCfg, cfg.Temperature, rc, t)
		if err != nil {
			return nil, nil, err
		}
		name := pCfg.Type
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s-%d", name, n+1)
		}
		seen[pCfg.Type]++
		providers = append(providers, p)
		names = append(names, name)
	}

	if !cfg.LogRequests {
		logPath = ""
	}
	f, err := failover.New(providers, names, logPath)
	if err != nil {
		return nil, nil, err
	}
	return f, names, nil
}

func newLLM(cfg config.ProviderConfig, temperature float32, rc *request.Client, t *tracker.Tracker) (llm.Provider, error) {
	switch cfg.Type {
	case "gemini":
		c, err := gemini.NewClient(cfg, t)
		if err != nil {
			return nil, err
		}
		if temperature > 0 {
			c.SetTemperature(temperature, temperatureJitter)
		}
		return c, nil
	case "openai":
		c, err := openai.NewClient(cfg, openAIBaseURL, rc)
		if err != nil {
			return nil, err
		}
		if temperature > 0 {
			c.SetTemperature(temperature)
		}
		return c, nil
	case "groq":
		c, err := groq.NewClient(cfg, rc)
		if err != nil {
			return nil, err
		}
		if temperature > 0 {
			c.SetTemperature(temperature)
		}
		return c, nil
	case "mock":
		return mock.New(0), nil
	default:
		return nil, fmt.Errorf("unknown llm provider type: %s", cfg.Type)
	}
}

// NewTTSProvider returns the configured engine, chained with the fallback
// engine when one is set. Engine "none" yields nil.
func NewTTSProvider(cfg *config.TTSConfig, targetLang string, t *tracker.Tracker) (tts.Provider, error) {
	primary, err := newTTS(cfg, cfg.Engine, targetLang, t)
	if err != nil || primary == nil {
		return nil, err
	}
	if cfg.Fallback == "" || cfg.Fallback == "none" || cfg.Fallback == cfg.Engine {
		return primary, nil
	}
	fallback, err := newTTS(cfg, cfg.Fallback, targetLang, t)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return tts.NewChain([]tts.Provider{primary, fallback}, []string{cfg.Engine, cfg.Fallback}), nil
}

func newTTS(cfg *config.TTSConfig, engine, targetLang string, t *tracker.Tracker) (tts.Provider, error) {
	switch engine {
	case "edge", "edge-tts":
		return edgetts.NewProvider(cfg.EdgeTTS, t), nil
	case "azure", "azure-speech":
		return azure.NewProvider(cfg.AzureSpeech, targetLang, t), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tts engine: %s", engine)
	}
}
