package version

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The user agent and the telemetry resource embed Version as is.
var releasePattern = regexp.MustCompile(`^v\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

func TestVersionFormat(t *testing.T) {
	assert.Regexp(t, releasePattern, Version)
}

func TestReleasePattern(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"v0.3.0", true},
		{"v1.12.4-rc.1", true},
		{"0.3.0", false},
		{"v0.3", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, releasePattern.MatchString(tt.in))
		})
	}
}
