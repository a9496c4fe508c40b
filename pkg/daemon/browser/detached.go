package browser

import (
	"context"

	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// Detached stands in for a browser when none is configured. It has no
// tabs, so sweeps find nothing, and review requests are only logged.
type Detached struct{}

// Tabs returns no tabs.
func (Detached) Tabs(context.Context) ([]types.Tab, error) {
	return nil, nil
}

// Close does nothing.
func (Detached) Close(context.Context, []types.TabID) error {
	return nil
}

// IsPlaying always reports not playing.
func (Detached) IsPlaying(context.Context, types.Tab) (bool, error) {
	return false, nil
}

// OpenReview logs the request.
func (Detached) OpenReview(_ context.Context, focus bool) error {
	logging.Get("browser").Info("review requested with no browser attached", "focus", focus)
	return nil
}

// Connected is always false.
func (Detached) Connected() bool {
	return false
}

var (
	_ types.TabDirectory  = (*Browser)(nil)
	_ types.MediaProbe    = (*Browser)(nil)
	_ types.ReviewSurface = (*Browser)(nil)
	_ types.TabDirectory  = Detached{}
	_ types.MediaProbe    = Detached{}
	_ types.ReviewSurface = Detached{}
)
