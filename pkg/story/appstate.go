package story

import (
	"context"
	"fmt"
)

// AppState is the foreground/background status reported by the client.
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateBackground AppState = "background"
	AppStateInactive   AppState = "inactive"
)

// ParseAppState validates an app state string.
func ParseAppState(s string) (AppState, error) {
	switch AppState(s) {
	case AppStateActive, AppStateBackground, AppStateInactive:
		return AppState(s), nil
	}
	return "", fmt.Errorf("unknown app state %q", s)
}

// WatchAppState forwards lifecycle transitions from a watcher channel into the
// controller until ctx ends or the channel closes.
func (c *Controller) WatchAppState(ctx context.Context, states <-chan AppState) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			if _, err := c.HandleAppState(s); err != nil {
				c.log.Debug("Story: app state not delivered", "state", s, "error", err)
				return
			}
		}
	}
}
