package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// ErrStoryNotFound is returned by Resume for unknown story IDs.
var ErrStoryNotFound = errors.New("story not found")

// Restorer installs a persisted story into the controller.
type Restorer interface {
	Restore(ctx context.Context, route *model.Route, st *model.AudioStory, cursor int) error
}

// TryRestore resumes the story that was active when the service stopped.
// A missing or unreadable record clears the marker. It returns the ID of
// the restored story, or "".
func TryRestore(ctx context.Context, st Store, ctrl Restorer, p *Persister) (string, error) {
	id, found := st.GetState(ctx, ActiveStoryKey)
	if !found || id == "" {
		slog.Info("Session: No story to resume")
		return "", nil
	}

	if err := Resume(ctx, st, ctrl, id); err != nil {
		slog.Warn("Session: Could not resume story, starting fresh", "story_id", id, "error", err)
		if derr := st.DeleteState(ctx, ActiveStoryKey); derr != nil {
			return "", fmt.Errorf("failed to clear active story: %w", derr)
		}
		return "", nil
	}
	if p != nil {
		p.track(id)
	}
	slog.Info("Session: Resumed story", "story_id", id)
	return id, nil
}

// Resume loads a stored story into the controller.
func Resume(ctx context.Context, st Store, ctrl Restorer, id string) error {
	rec, err := st.GetStory(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load story %s: %w", id, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrStoryNotFound, id)
	}
	return ctrl.Restore(ctx, rec.Route, rec.Story, rec.Cursor)
}
