package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	logPath = "logs/tts.log"
	mu      sync.Mutex
)

// SetLogPath configures the path for the TTS history log. An empty path
// disables it.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logPath = path
}

// Log appends one synthesis request to the TTS history log.
func Log(engine, voice, request string, status int, err error) {
	mu.Lock()
	defer mu.Unlock()
	if logPath == "" {
		return
	}

	_ = os.MkdirAll(filepath.Dir(logPath), 0o755)
	f, fileErr := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fileErr != nil {
		return
	}
	defer f.Close()

	statusStr := fmt.Sprintf("%d", status)
	if err != nil {
		statusStr = fmt.Sprintf("ERROR(%v)", err)
	}

	fmt.Fprintf(f, "[%s] [%s] VOICE: %s STATUS: %s\nREQUEST:\n%s\n--------------------------------------------------\n",
		time.Now().Format("2006-01-02 15:04:05"), engine, voice, statusStr, request)
}
