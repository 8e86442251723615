package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFatalError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "FatalError 429",
			err:      NewFatalError(429, "Too Many Requests"),
			expected: true,
		},
		{
			name:     "Wrapped FatalError",
			err:      fmt.Errorf("render: %w", NewFatalError(500, "Internal Server Error")),
			expected: true,
		},
		{
			name:     "Standard Error",
			err:      errors.New("some regular error"),
			expected: false,
		},
		{
			name:     "Nil Error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatalError(tt.err); got != tt.expected {
				t.Errorf("IsFatalError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLanguageOf(t *testing.T) {
	tests := []struct {
		voice, want string
	}{
		{"de-DE-SeraphinaNeural", "de-DE"},
		{"en-GB-SoniaNeural", "en-GB"},
		{"EN-us-AvaNeural", "en-US"},
		{"Microsoft David", "en-US"},
		{"", "en-US"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LanguageOf(tt.voice, "en-US"), tt.voice)
	}
}

type fakeEngine struct {
	err    error
	calls  int
	voices []string
}

func (f *fakeEngine) Synthesize(_ context.Context, _, voice, _ string) (string, error) {
	f.calls++
	f.voices = append(f.voices, voice)
	if f.err != nil {
		return "", f.err
	}
	return "mp3", nil
}

func (f *fakeEngine) Voices(context.Context) ([]Voice, error) {
	return []Voice{{ID: "v"}}, nil
}

func TestChain(t *testing.T) {
	t.Run("Falls back on fatal errors", func(t *testing.T) {
		primary := &fakeEngine{err: NewFatalError(429, "rate limited")}
		secondary := &fakeEngine{}
		c := NewChain([]Provider{primary, secondary}, []string{"azure-speech", "edge-tts"})

		format, err := c.Synthesize(context.Background(), "text", "de-DE-KatjaNeural", "out")
		require.NoError(t, err)
		assert.Equal(t, "mp3", format)
		assert.Equal(t, 1, secondary.calls)
		assert.Equal(t, []string{""}, secondary.voices, "voice override is not passed to the fallback")
	})

	t.Run("Stops on ordinary errors", func(t *testing.T) {
		primary := &fakeEngine{err: errors.New("disk full")}
		secondary := &fakeEngine{}
		c := NewChain([]Provider{primary, secondary}, nil)

		_, err := c.Synthesize(context.Background(), "text", "", "out")
		require.Error(t, err)
		assert.Equal(t, 0, secondary.calls)
	})

	t.Run("Empty chain", func(t *testing.T) {
		_, err := NewChain(nil, nil).Synthesize(context.Background(), "text", "", "out")
		assert.Error(t, err)
	})
}

func TestLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tts.log")
	SetLogPath(path)
	t.Cleanup(func() { SetLogPath("logs/tts.log") })

	Log("EDGETTS", "en-US-AvaNeural", "<speak/>", 0, nil)
	Log("AZURE", "en-US-AvaNeural", "<speak/>", 0, errors.New("boom"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Equal(t, 2, strings.Count(content, "REQUEST:"))
	assert.Contains(t, content, "[AZURE] VOICE: en-US-AvaNeural STATUS: ERROR(boom)")
}
