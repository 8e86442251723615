package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
	Request   RequestConfig   `yaml:"request"`
	LLM       LLMConfig       `yaml:"llm"`
	TTS       TTSConfig       `yaml:"tts"`
	Story     StoryConfig     `yaml:"story"`
	Routing   RoutingConfig   `yaml:"routing"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Events    EventsConfig    `yaml:"events"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	LLM      LogSettings `yaml:"llm"`
	TTS      LogSettings `yaml:"tts"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path        string   `yaml:"path"`
	CacheTTL    Duration `yaml:"cache_ttl"`
	KeepStories int      `yaml:"keep_stories"` // 0 keeps every story
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// RequestConfig holds outbound HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LLMConfig holds settings for the Large Language Model providers.
// Providers are tried in order; later entries are fallbacks.
type LLMConfig struct {
	Providers   []ProviderConfig `yaml:"providers"`
	Temperature float32          `yaml:"temperature"`
	LogRequests bool             `yaml:"log_requests"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Type     string            `yaml:"type"` // "gemini", "openai", "groq", "mock"
	Key      string            `yaml:"key"`
	BaseURL  string            `yaml:"base_url,omitempty"`
	Profiles map[string]string `yaml:"profiles"` // intent -> model
}

// EdgeTTSConfig holds settings for Edge TTS.
// Endpoint fields fall back to the EDGE_TTS_* environment variables.
type EdgeTTSConfig struct {
	VoiceID            string `yaml:"voice"` // e.g. "en-US-AvaMultilingualNeural"
	BaseURL            string `yaml:"base_url,omitempty"`
	Origin             string `yaml:"origin,omitempty"`
	UserAgent          string `yaml:"user_agent,omitempty"`
	TrustedClientToken string `yaml:"trusted_client_token,omitempty"`
	SecMSGecVersion    string `yaml:"sec_ms_gec_version,omitempty"`
}

// AzureSpeechConfig holds settings for Azure Speech.
type AzureSpeechConfig struct {
	Key      string `yaml:"key"`
	Region   string `yaml:"region"`
	VoiceID  string `yaml:"voice"`
	Endpoint string `yaml:"endpoint,omitempty"` // overrides the regional URL
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine      string            `yaml:"engine"`
	Fallback    string            `yaml:"fallback"` // engine used when the primary fails hard
	EdgeTTS     EdgeTTSConfig     `yaml:"edge_tts"`
	AzureSpeech AzureSpeechConfig `yaml:"azure_speech"`
}

// StoryConfig holds story generation and playback settings.
type StoryConfig struct {
	OutlineTimeout  Duration `yaml:"outline_timeout"`
	SegmentTimeout  Duration `yaml:"segment_timeout"`
	BatchSize       int      `yaml:"batch_size"`
	ContextChars    int      `yaml:"context_chars"` // tail of previous text passed to the model, 0 = all
	Language        string   `yaml:"language"`
	DefaultStyle    string   `yaml:"default_style"`
	PersistInterval Duration `yaml:"persist_interval"`
	AudioDir        string   `yaml:"audio_dir"`
}

// RoutingConfig holds geocoding and routing provider settings.
type RoutingConfig struct {
	NominatimURL   string  `yaml:"nominatim_url"`
	GraphHopperURL string  `yaml:"graphhopper_url"`
	GraphHopperKey string  `yaml:"graphhopper_key"`
	ORSURL         string  `yaml:"ors_url"`
	ORSKey         string  `yaml:"ors_key"`
	UserAgent      string  `yaml:"user_agent"`
	WalkingSpeed   float64 `yaml:"walking_speed_mps"`
	DrivingSpeed   float64 `yaml:"driving_speed_mps"`
	SearchLimit    int     `yaml:"search_limit"`
}

// TelemetryConfig holds metrics settings.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// EventsConfig holds settings for publishing story events to NATS.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Name    string `yaml:"name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server:   LogSettings{Path: "./logs/server.log", Level: "INFO"},
			Requests: LogSettings{Path: "./logs/requests.log", Level: "INFO"},
			Events:   LogSettings{Path: "./logs/events.log", Level: "INFO"},
			LLM:      LogSettings{Path: "./logs/llm.log", Level: "INFO"},
			TTS:      LogSettings{Path: "./logs/tts.log", Level: "INFO"},
		},
		DB: DBConfig{
			Path:        "./data/travelstory.db",
			CacheTTL:    Duration(30 * 24 * time.Hour),
			KeepStories: 50,
		},
		Server: ServerConfig{
			Address:         "localhost:8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(20 * time.Second),
			},
		},
		LLM: LLMConfig{
			Providers: []ProviderConfig{
				{
					Type: "gemini",
					Profiles: map[string]string{
						"outline": "gemini-2.5-flash",
						"segment": "gemini-2.5-flash-lite",
					},
				},
			},
			Temperature: 0.9,
			LogRequests: true,
		},
		TTS: TTSConfig{
			Engine:   "edge-tts",
			Fallback: "none",
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "en-US-AvaMultilingualNeural",
			},
			AzureSpeech: AzureSpeechConfig{
				Region:  "westeurope",
				VoiceID: "en-US-AvaMultilingualNeural",
			},
		},
		Story: StoryConfig{
			OutlineTimeout:  Duration(60 * time.Second),
			SegmentTimeout:  Duration(45 * time.Second),
			BatchSize:       3,
			ContextChars:    4000,
			Language:        "en-US",
			DefaultStyle:    "NOIR",
			PersistInterval: Duration(5 * time.Second),
			AudioDir:        "./data/audio",
		},
		Routing: RoutingConfig{
			NominatimURL:   "https://nominatim.openstreetmap.org",
			GraphHopperURL: "https://graphhopper.com/api/1",
			ORSURL:         "https://api.openrouteservice.org",
			UserAgent:      "TravelStory/1.0",
			WalkingSpeed:   1.4,
			DrivingSpeed:   8.3,
			SearchLimit:    5,
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: "travelstory",
		},
		Events: EventsConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "travelstory.story",
			Name:    "travelstory",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, defaults are merged with it but nothing is written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Secrets fall back to the environment and are never saved to disk.
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		switch p.Type {
		case "gemini":
			envFallback(&p.Key, "GEMINI_API_KEY")
		case "openai":
			envFallback(&p.Key, "OPENAI_API_KEY")
		case "groq":
			envFallback(&p.Key, "GROQ_API_KEY")
		}
	}
	envFallback(&cfg.Routing.GraphHopperKey, "GRAPHHOPPER_API_KEY")
	envFallback(&cfg.Routing.ORSKey, "ORS_API_KEY")
	envFallback(&cfg.Events.URL, "NATS_URL")
	envFallback(&cfg.TTS.AzureSpeech.Key, "AZURE_SPEECH_KEY")
	envFallback(&cfg.TTS.AzureSpeech.Region, "AZURE_SPEECH_REGION")

	e := &cfg.TTS.EdgeTTS
	envFallback(&e.BaseURL, "EDGE_TTS_BASE_URL")
	envFallback(&e.Origin, "EDGE_TTS_ORIGIN")
	envFallback(&e.UserAgent, "EDGE_TTS_USER_AGENT")
	envFallback(&e.TrustedClientToken, "EDGE_TTS_TRUSTED_CLIENT_TOKEN")
	envFallback(&e.SecMSGecVersion, "EDGE_TTS_SEC_MS_GEC_VERSION")
}

func envFallback(dst *string, key string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects settings the story controller cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Story.OutlineTimeout <= 0 {
		errs = append(errs, errors.New("story.outline_timeout must be positive"))
	}
	if c.Story.SegmentTimeout <= 0 {
		errs = append(errs, errors.New("story.segment_timeout must be positive"))
	}
	if c.Story.BatchSize <= 0 {
		errs = append(errs, errors.New("story.batch_size must be positive"))
	}
	if c.Story.ContextChars < 0 {
		errs = append(errs, errors.New("story.context_chars must not be negative"))
	}
	if !isValidLocale(c.Story.Language) {
		errs = append(errs, fmt.Errorf("invalid story.language %q: must be 'xx-YY' (e.g. 'en-US', 'de-DE')", c.Story.Language))
	}
	if len(c.LLM.Providers) == 0 {
		errs = append(errs, errors.New("llm.providers must list at least one provider"))
	}
	switch c.TTS.Engine {
	case "edge-tts", "azure-speech", "none":
	default:
		errs = append(errs, fmt.Errorf("invalid tts.engine %q", c.TTS.Engine))
	}
	if c.Routing.WalkingSpeed <= 0 || c.Routing.DrivingSpeed <= 0 {
		errs = append(errs, errors.New("routing speeds must be positive"))
	}
	return errors.Join(errs...)
}

var localePattern = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

func isValidLocale(s string) bool {
	return localePattern.MatchString(s)
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# TravelStory Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
# Secrets may be left empty and supplied via GEMINI_API_KEY, OPENAI_API_KEY,
# GROQ_API_KEY, GRAPHHOPPER_API_KEY, ORS_API_KEY, AZURE_SPEECH_KEY and the
# EDGE_TTS_* endpoint variables (or a .env file).

`)
	data = append(header, data...)

	// Comments for enum fields, placed at the key's indentation.
	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: edge-tts, azure-speech, none\n${1}engine:"))

	reProvider := regexp.MustCompile(`(?m)^(\s+)- type:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: gemini, openai, groq, mock\n${1}- type:"))

	reStyle := regexp.MustCompile(`(?m)^(\s+)default_style:`)
	data = reStyle.ReplaceAll(data, []byte("${1}# Options: NOIR, CHILDREN, HISTORICAL, FANTASY\n${1}default_style:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
