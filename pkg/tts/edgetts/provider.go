package edgetts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/tracker"
	"github.com/4ndr3jS/TravelStory/pkg/tts"
)

const (
	trackerLabel = "edge-tts"
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
	dialAttempts = 3
)

// Provider implements tts.Provider for Microsoft Edge TTS.
type Provider struct {
	cfg       config.EdgeTTSConfig
	tracker   *tracker.Tracker
	dialer    *websocket.Dialer
	now       func() time.Time
	dialPause time.Duration
}

// NewProvider creates a new Edge TTS provider. t may be nil.
func NewProvider(cfg config.EdgeTTSConfig, t *tracker.Tracker) *Provider {
	return &Provider{
		cfg:       cfg,
		tracker:   t,
		dialer:    websocket.DefaultDialer,
		now:       time.Now,
		dialPause: 500 * time.Millisecond,
	}
}

// Synthesize generates an .mp3 file using Edge TTS. An empty voice uses the
// configured one.
func (p *Provider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if voice == "" {
		voice = p.cfg.VoiceID
	}
	if voice == "" {
		return "", fmt.Errorf("voice ID is required")
	}

	text = tts.StripSpeakerLabels(text)

	fullPath := outputPath
	if !strings.HasSuffix(strings.ToLower(fullPath), ".mp3") {
		fullPath += ".mp3"
	}

	if err := p.synthesize(ctx, voice, text, fullPath); err != nil {
		_ = os.Remove(fullPath)
		p.track(false)
		return "", err
	}
	p.track(true)
	return "mp3", nil
}

func (p *Provider) synthesize(ctx context.Context, voice, text, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	conn, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblocks ReadMessage when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := p.sendConfig(conn); err != nil {
		return err
	}

	requestID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := p.sendSSML(conn, voice, text, requestID); err != nil {
		return err
	}

	written, err := p.consumeResponses(ctx, conn, file)
	if err != nil {
		return err
	}
	if written == 0 {
		return errors.New("edge-tts returned no audio")
	}
	return nil
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

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	missing := []string{}
	for _, f := range []struct{ name, val string }{
		{"base_url", p.cfg.BaseURL},
		{"origin", p.cfg.Origin},
		{"user_agent", p.cfg.UserAgent},
		{"trusted_client_token", p.cfg.TrustedClientToken},
		{"sec_ms_gec_version", p.cfg.SecMSGecVersion},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, tts.NewFatalError(0, fmt.Sprintf("edge-tts not configured: missing %s", strings.Join(missing, ", ")))
	}

	header := http.Header{}
	header.Set("Origin", p.cfg.Origin)
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("User-Agent", p.cfg.UserAgent)
	header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	header.Set("Accept-Language", "en-US,en;q=0.9")

	muid := strings.ReplaceAll(uuid.New().String(), "-", "")
	header.Set("Cookie", fmt.Sprintf("muid=%s", muid))

	url := fmt.Sprintf("%s?TrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=%s",
		p.cfg.BaseURL, p.cfg.TrustedClientToken, p.generateSecMSGec(), p.cfg.SecMSGecVersion)

	var dialErr error
	status := 0
	for i := 0; i < dialAttempts; i++ {
		conn, resp, err := p.dialer.DialContext(ctx, url, header)
		if err == nil {
			return conn, nil
		}
		dialErr = err
		if resp != nil {
			status = resp.StatusCode
			slog.Warn("EdgeTTS: handshake failed", "status", resp.Status, "attempt", i+1)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.dialPause):
		}
	}
	return nil, tts.NewFatalError(status, fmt.Sprintf("websocket dial failed after retries: %v", dialErr))
}

// generateSecMSGec derives the rolling Sec-MS-GEC token: Windows file time
// rounded down to five minutes, concatenated with the client token, SHA-256.
func (p *Provider) generateSecMSGec() string {
	ticks := p.now().Unix() + 11644473600
	ticks -= ticks % 300
	strToHash := fmt.Sprintf("%d0000000%s", ticks, p.cfg.TrustedClientToken)

	hash := sha256.Sum256([]byte(strToHash))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

func (p *Provider) sendConfig(conn *websocket.Conn) error {
	configMsg := "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + outputFormat + `"}}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMsg)); err != nil {
		return fmt.Errorf("failed to send speech.config: %w", err)
	}
	return nil
}

func (p *Provider) sendSSML(conn *websocket.Conn, voice, text, requestID string) error {
	ssml := buildSSML(voice, text)
	tts.Log("EDGETTS", voice, ssml, 0, nil)

	ssmlMsg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		return fmt.Errorf("failed to send ssml: %w", err)
	}
	return nil
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

func buildSSML(voice, text string) string {
	lang := tts.LanguageOf(voice, "en-US")
	return fmt.Sprintf("<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'><voice name='%s'>%s</voice></speak>",
		lang, xmlEscaper.Replace(voice), xmlEscaper.Replace(text))
}

func (p *Provider) consumeResponses(ctx context.Context, conn *websocket.Conn, w io.Writer) (int, error) {
	written := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			return written, fmt.Errorf("read message failed: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				return written, nil
			}
		case websocket.BinaryMessage:
			n, err := handleBinaryMessage(data, w)
			if err != nil {
				return written, err
			}
			written += n
		}
	}
}

// handleBinaryMessage writes the audio payload that follows the
// big-endian header length prefix.
func handleBinaryMessage(data []byte, w io.Writer) (int, error) {
	if len(data) < 2 {
		return 0, nil
	}
	headerLength := int(uint16(data[0])<<8 | uint16(data[1]))
	if len(data) < 2+headerLength {
		return 0, nil
	}
	audioData := data[2+headerLength:]
	if len(audioData) == 0 {
		return 0, nil
	}
	n, err := w.Write(audioData)
	if err != nil {
		return n, fmt.Errorf("write audio data failed: %w", err)
	}
	return n, nil
}

// Voices returns a list of high-quality neural voices.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "en-US-AvaMultilingualNeural", Name: "Ava (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-US-AndrewMultilingualNeural", Name: "Andrew (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-GB-SoniaNeural", Name: "Sonia (UK)", Language: "en-GB", IsNeural: true},
		{ID: "fr-FR-VivienneNeural", Name: "Vivienne (France)", Language: "fr-FR", IsNeural: true},
		{ID: "de-DE-SeraphinaNeural", Name: "Seraphina (Germany)", Language: "de-DE", IsNeural: true},
	}, nil
}
