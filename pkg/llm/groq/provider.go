package groq

import (
	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/llm/openai"
	"github.com/4ndr3jS/TravelStory/pkg/request"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
)

// NewClient creates a new Groq client using the generic OpenAI provider.
func NewClient(cfg config.ProviderConfig, rc *request.Client) (*openai.Client, error) {
	if cfg.Type == "" {
		cfg.Type = "groq"
	}
	return openai.NewClient(cfg, groqBaseURL, rc)
}
