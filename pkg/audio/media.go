// Package audio inspects rendered narration clips.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Info describes a decoded clip.
type Info struct {
	Format     string        `json:"format"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
}

// DecodeMedia opens an mp3 or wav file. The extension picks the decoder
// tried first; the other one is the fallback.
func DecodeMedia(path string) (beep.StreamSeekCloser, beep.Format, string, error) {
	order := []string{"mp3", "wav"}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		order = []string{"wav", "mp3"}
	}

	var lastErr error
	for _, kind := range order {
		f, err := os.Open(path)
		if err != nil {
			return nil, beep.Format{}, "", err
		}
		var (
			s      beep.StreamSeekCloser
			format beep.Format
		)
		if kind == "mp3" {
			s, format, err = mp3.Decode(f)
		} else {
			s, format, err = wav.Decode(f)
		}
		if err == nil {
			return s, format, kind, nil
		}
		f.Close()
		lastErr = err
	}
	return nil, beep.Format{}, "", fmt.Errorf("failed to decode %s: %w", filepath.Base(path), lastErr)
}

// Probe decodes the clip header and measures its length.
func Probe(path string) (Info, error) {
	streamer, format, kind, err := DecodeMedia(path)
	if err != nil {
		return Info{}, err
	}
	defer streamer.Close()

	return Info{
		Format:     kind,
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		Duration:   format.SampleRate.D(streamer.Len()),
	}, nil
}

// GetDuration returns the playing time of the clip at path.
func GetDuration(path string) (time.Duration, error) {
	info, err := Probe(path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
