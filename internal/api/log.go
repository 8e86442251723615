package api

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/logging"
)

// maxParamLen drops attribute values too long for the status line.
const maxParamLen = 24

// Matches key=value or key="value with spaces" in slog text output.
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// LogLineResponse is the latest log line, condensed for the status bar.
type LogLineResponse struct {
	Log   string `json:"log"`
	Level string `json:"level,omitempty"`
}

// handleLatestLog handles GET /api/log/latest.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, condenseLogLine(logging.GlobalLogCapture.GetLastLine()))
}

// condenseLogLine turns a slog text line into "HH:MM:SS msg (k=v, ...)".
// Attributes are sorted, the component attribute becomes a prefix, and long
// values are dropped. Lines that do not parse are returned unchanged.
func condenseLogLine(raw string) LogLineResponse {
	var msg, clock, level, component string
	var params []string

	for _, m := range logRegex.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				clock = t.Format("15:04:05")
			}
		case "level":
			level = val
		case "msg":
			msg = val
		case "component":
			component = val
		default:
			if len(val) <= maxParamLen {
				params = append(params, key+"="+val)
			}
		}
	}
	if msg == "" {
		return LogLineResponse{Log: raw}
	}

	var b strings.Builder
	if clock != "" {
		b.WriteString(clock)
		b.WriteByte(' ')
	}
	if component != "" {
		b.WriteString("[" + component + "] ")
	}
	b.WriteString(msg)
	if len(params) > 0 {
		sort.Strings(params)
		b.WriteString(" (" + strings.Join(params, ", ") + ")")
	}
	return LogLineResponse{Log: b.String(), Level: level}
}
