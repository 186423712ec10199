package stands

import "errors"

var (
	// ErrInvalidStand is returned for a stand row with an empty name or unusable position
	ErrInvalidStand = errors.New("invalid stand")
	// ErrDuplicateStandKey is returned when two stands share a name
	ErrDuplicateStandKey = errors.New("duplicate stand key")
	// ErrNoStandData is returned when a cycle is requested before any stands are loaded
	ErrNoStandData = errors.New("no stand data loaded")
	// ErrInvalidPattern is returned for a naming template that cannot be compiled
	ErrInvalidPattern = errors.New("invalid stand extension pattern")
	// ErrInvalidOptions is returned for out of range matching options
	ErrInvalidOptions = errors.New("invalid stand options")
	// ErrFeedUnavailable marks a feed that has no data this cycle
	ErrFeedUnavailable = errors.New("aircraft feed unavailable")
)
