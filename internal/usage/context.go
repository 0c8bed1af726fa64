package usage

import "context"

type trackerCtxKey int

const trackerKey trackerCtxKey = iota

// WithTracker returns a context a subgraph can recover tracker from via
// FromContext, the same way internal/hitl binds a Manager to a run's
// context.
func WithTracker(ctx context.Context, tracker *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey, tracker)
}

// FromContext recovers the Tracker bound by WithTracker, if any.
func FromContext(ctx context.Context) (*Tracker, bool) {
	t, ok := ctx.Value(trackerKey).(*Tracker)
	return t, ok
}
