package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/llm"
	"github.com/4ndr3jS/TravelStory/pkg/tracker"
)

const defaultModel = "gemini-2.5-flash"

// Client implements llm.Provider for Google Gemini.
type Client struct {
	genaiClient *genai.Client
	apiKey      string
	profiles    map[string]string // intent -> model
	tracker     *tracker.Tracker

	// Segment temperature: base + jitter with bell curve
	temperatureBase   float32
	temperatureJitter float32

	mu sync.RWMutex
}

// NewClient creates a new Gemini client. A missing key yields a client whose
// calls fail until Configure is called with a key.
func NewClient(cfg config.ProviderConfig, t *tracker.Tracker) (*Client, error) {
	c := &Client{tracker: t}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure updates the client with new settings.
func (c *Client) Configure(cfg config.ProviderConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiKey = cfg.Key
	c.profiles = cfg.Profiles

	if c.apiKey == "" {
		c.genaiClient = nil
		return nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = client
	return nil
}

// Close cleans up resources.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genaiClient = nil
}

// SetTemperature configures the sampling temperature for segment prompts.
func (c *Client) SetTemperature(base, jitter float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.temperatureBase = base
	c.temperatureJitter = jitter
}

// HasProfile reports whether an intent maps to a model.
func (c *Client) HasProfile(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profiles[name] != ""
}

// HealthCheck verifies the key and that the segment model is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.genaiClient
	key := c.apiKey
	c.mu.RUnlock()

	if key == "" {
		return errors.New("gemini api key is missing")
	}
	if os.Getenv("TEST_MODE") == "true" {
		return nil
	}
	if client == nil {
		return errors.New("gemini client not configured")
	}

	modelName, _ := c.resolveModel(llm.IntentSegment)
	if _, err := client.Models.Get(ctx, qualified(modelName), nil); err != nil {
		c.logAvailableModels(ctx, client)
		return fmt.Errorf("gemini model %s unavailable: %w", modelName, err)
	}
	return nil
}

// GenerateText sends a prompt and returns the text response.
func (c *Client) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	c.mu.RLock()
	client := c.genaiClient
	c.mu.RUnlock()

	if client == nil {
		return "", errors.New("gemini client not configured")
	}

	modelName, cfg := c.resolveModel(name)
	resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), cfg)
	if err != nil {
		c.track(false)
		return "", fmt.Errorf("generate text error: %w", err)
	}

	text, err := getResponseText(resp)
	if err != nil {
		c.track(false)
		return "", err
	}

	c.track(true)
	return text, nil
}

// GenerateJSON sends a prompt and unmarshals the response into the target struct.
func (c *Client) GenerateJSON(ctx context.Context, name, prompt string, target any) error {
	c.mu.RLock()
	client := c.genaiClient
	c.mu.RUnlock()

	if client == nil {
		return errors.New("gemini client not configured")
	}

	modelName, cfg := c.resolveModel(name)
	cfg.ResponseMIMEType = "application/json"
	if name == llm.IntentOutline {
		cfg.ResponseSchema = outlineSchema
	}

	resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), cfg)
	if err != nil {
		c.track(false)
		return fmt.Errorf("generate json error: %w", err)
	}

	text, err := getResponseText(resp)
	if err != nil {
		c.track(false)
		return err
	}

	cleaned := llm.CleanJSONBlock(text)
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		c.track(false)
		return fmt.Errorf("failed to unmarshal JSON response: %w. Response: %s", err, cleaned)
	}

	c.track(true)
	return nil
}

func (c *Client) track(success bool) {
	if c.tracker == nil {
		return
	}
	if success {
		c.tracker.TrackAPISuccess("gemini")
	} else {
		c.tracker.TrackAPIFailure("gemini")
	}
}

func getResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}

	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("empty candidate (finish reason %s)", cand.FinishReason)
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("candidate has no text (finish reason %s)", cand.FinishReason)
	}
	return sb.String(), nil
}

func qualified(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// logAvailableModels lists the gemini models visible to the key so a
// misconfigured profile can be fixed from the log.
func (c *Client) logAvailableModels(ctx context.Context, client *genai.Client) {
	page, err := client.Models.List(ctx, nil)
	if err != nil {
		slog.Warn("Gemini: failed to list models", "error", err)
		return
	}

	var available []string
	for {
		for _, m := range page.Items {
			if strings.Contains(strings.ToLower(m.Name), "gemini") {
				available = append(available, m.Name)
			}
		}
		page, err = page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) || errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			slog.Warn("Gemini: model listing interrupted", "error", err)
			break
		}
	}

	slog.Error("Gemini: configured model not found", "profiles", c.profiles)
	for _, m := range available {
		slog.Error("Gemini: available model", "name", m)
	}
}
