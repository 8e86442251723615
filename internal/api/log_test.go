package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCondenseLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLineResponse
	}{
		{
			name:  "story milestone",
			input: `time=2026-03-18T06:50:46.074+01:00 level=INFO msg="Story: Generating outline" component=story segments=8 duration_s=1200 style=NOIR route="Stephansplatz, 1010 Wien, Österreich to Prater"`,
			want:  LogLineResponse{Log: "06:50:46 [story] Story: Generating outline (duration_s=1200, segments=8, style=NOIR)", Level: "INFO"},
		},
		{
			name:  "no attributes",
			input: `time=2026-03-18T06:50:46Z level=WARN msg="Events: NATS disconnected"`,
			want:  LogLineResponse{Log: "06:50:46 Events: NATS disconnected", Level: "WARN"},
		},
		{
			name:  "not slog text",
			input: "panic: something odd",
			want:  LogLineResponse{Log: "panic: something odd"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, condenseLogLine(tt.input))
		})
	}
}
