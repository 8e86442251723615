// Package maintenance prunes the database and the audio directory at startup.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/db"
	"github.com/4ndr3jS/TravelStory/pkg/store"
)

// Run executes all maintenance tasks. Failures are logged, never fatal.
// It blocks until completion.
func Run(ctx context.Context, s store.StoryStore, d *db.DB, cfg config.DBConfig, audioDir string) {
	slog.Info("Starting database maintenance...")

	if ttl := time.Duration(cfg.CacheTTL); ttl > 0 {
		if n, err := d.PruneCache(ttl); err != nil {
			slog.Error("Cache pruning failed", "error", err)
		} else {
			slog.Info("Cache pruning completed", "removed", n)
		}
	}

	if cfg.KeepStories > 0 {
		if n, err := d.PruneStories(cfg.KeepStories); err != nil {
			slog.Error("Story pruning failed", "error", err)
		} else {
			slog.Info("Story pruning completed", "removed", n)
		}
	}

	if audioDir != "" {
		n, err := pruneAudio(ctx, s, audioDir)
		if err != nil {
			slog.Error("Audio pruning failed", "error", err)
		} else if n > 0 {
			slog.Info("Audio pruning completed", "removed_stories", n)
		}
	}
}

// pruneAudio removes rendered clips of stories no longer in the store.
func pruneAudio(ctx context.Context, s store.StoryStore, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read audio dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		rec, err := s.GetStory(ctx, e.Name())
		if err != nil {
			return removed, err
		}
		if rec != nil {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
