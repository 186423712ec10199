package stands

import "context"

// Feed supplies the aircraft positions for one cycle. Any error means the feed
// has no data this cycle; it is not treated as a failure of the cycle.
type Feed interface {
	Aircraft(ctx context.Context) ([]AircraftData, error)
}

// FeedFunc adapts a function to the Feed interface
type FeedFunc func(ctx context.Context) ([]AircraftData, error)

// Aircraft calls f(ctx)
func (f FeedFunc) Aircraft(ctx context.Context) ([]AircraftData, error) {
	return f(ctx)
}

// StaticFeed always returns the same records
type StaticFeed []AircraftData

// Aircraft returns the records
func (f StaticFeed) Aircraft(context.Context) ([]AircraftData, error) {
	return f, nil
}
