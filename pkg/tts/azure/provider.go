package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/tracker"
	"github.com/4ndr3jS/TravelStory/pkg/tts"
)

const trackerLabel = "azure-speech"

// Provider implements tts.Provider for Azure Speech.
type Provider struct {
	key      string
	voiceID  string
	language string
	client   *http.Client
	url      string
	tracker  *tracker.Tracker
}

// NewProvider creates a new Azure Speech TTS provider. language is used for
// voices whose ID carries no locale.
func NewProvider(cfg config.AzureSpeechConfig, language string, t *tracker.Tracker) *Provider {
	url := cfg.Endpoint
	if url == "" {
		url = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}
	return &Provider{
		key:      cfg.Key,
		voiceID:  cfg.VoiceID,
		language: language,
		client:   &http.Client{},
		url:      url,
		tracker:  t,
	}
}

// Synthesize generates speech from text using Azure Speech.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID, outputPath string) (string, error) {
	vid := p.voiceID
	if voiceID != "" {
		vid = voiceID
	}
	if vid == "" {
		return "", fmt.Errorf("no voice ID configured for Azure Speech")
	}
	if p.key == "" {
		return "", tts.NewFatalError(http.StatusUnauthorized, "azure speech key is missing")
	}

	ssml := p.buildSSML(vid, tts.StripSpeakerLabels(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewBufferString(ssml))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "audio-24khz-160kbitrate-mono-mp3")
	req.Header.Set("User-Agent", "TravelStory")

	resp, err := p.client.Do(req)
	if err != nil {
		tts.Log("AZURE", vid, ssml, 0, err)
		p.track(false)
		return "", fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tts.Log("AZURE", vid, ssml, resp.StatusCode, nil)
		body, err := io.ReadAll(resp.Body)
		bodyStr := string(body)
		if err != nil {
			bodyStr = fmt.Sprintf("[failed to read body: %v]", err)
		}
		if bodyStr == "" {
			bodyStr = "[empty body]"
		}
		p.track(false)
		return "", tts.NewFatalError(resp.StatusCode, fmt.Sprintf("azure speech api error (status %d): %s", resp.StatusCode, bodyStr))
	}

	tts.Log("AZURE", vid, ssml, resp.StatusCode, nil)
	filename := outputPath
	if filepath.Ext(filename) != ".mp3" {
		filename += ".mp3"
	}
	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		p.track(false)
		return "", fmt.Errorf("failed to write audio to file: %w", err)
	}
	p.track(true)
	return "mp3", nil
}

func (p *Provider) track(success bool) {
	if p.tracker == nil {
		return
	}
	if success {
		p.tracker.TrackAPISuccess(trackerLabel)
	} else {
		p.tracker.TrackAPIFailure(trackerLabel)
	}
}

// Voices returns the configured voice.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{{
		ID:       p.voiceID,
		Name:     "Configured Azure Voice",
		Language: tts.LanguageOf(p.voiceID, p.language),
		IsNeural: true,
	}}, nil
}

// validateSSML checks if the SSML string is well-formed XML.
func validateSSML(ssml string) error {
	decoder := xml.NewDecoder(bytes.NewReader([]byte(ssml)))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

const ssmlTemplate = `<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xmlns:mstts='https://www.w3.org/2001/mstts' xml:lang='%s'><voice name='%s'>%s</voice></speak>`

var (
	reLangEnd    = regexp.MustCompile(`([^.?!,])</lang>`)
	reWrapperTag = regexp.MustCompile(`(?i)</?(speak|voice)[^>]*>`)
	reAnyTag     = regexp.MustCompile(`<[^>]*>`)
)

// buildSSML passes inline SSML from the story text through, and falls back
// to plain text when the result is not well-formed.
func (p *Provider) buildSSML(vid, text string) string {
	language := tts.LanguageOf(vid, p.language)

	// Outer wrappers are added here; duplicates are rejected by the service.
	text = reWrapperTag.ReplaceAllString(text, "")
	// A trailing comma inside </lang> keeps the last word from being clipped.
	processed := reLangEnd.ReplaceAllString(text, `$1,</lang>`)

	ssml := fmt.Sprintf(ssmlTemplate, language, vid, processed)
	if err := validateSSML(ssml); err != nil {
		plain := reAnyTag.ReplaceAllString(text, "")
		return fmt.Sprintf(ssmlTemplate, language, vid, escape(plain))
	}
	return ssml
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
