package stands

import "fmt"

// Options tune the matching engine. Start from DefaultOptions; the zero value
// is not usable.
type Options struct {
	MaxStandDistance           float64  // km, an aircraft must be strictly closer than this to a stand
	HideStandSidesWhenOccupied bool     // hide group members of an occupied stand from Stands()
	MaxDistanceFromAirport     float64  // km, strictly closer to the airport reference point
	MaxAircraftAltitude        float64  // feet, inclusive
	MaxAircraftGroundspeed     float64  // knots, inclusive
	StandExtensions            []string // side tokens, e.g. 25 + L => 25L
	StandExtensionPattern      string   // naming template, see Pattern
}

// DefaultOptions returns the stock matching configuration
func DefaultOptions() Options {
	return Options{
		MaxStandDistance:           0.07,
		HideStandSidesWhenOccupied: true,
		MaxDistanceFromAirport:     2,
		MaxAircraftAltitude:        3000,
		MaxAircraftGroundspeed:     10,
		StandExtensions:            []string{"L", "C", "R", "A", "B", "N", "E", "S", "W"},
		StandExtensionPattern:      RootPlaceholder + ExtensionPlaceholder,
	}
}

// Validate checks the options and compiles the naming template
func (o Options) Validate() (*Pattern, error) {
	if o.MaxStandDistance <= 0 {
		return nil, fmt.Errorf("%w: max stand distance must be positive, got %v", ErrInvalidOptions, o.MaxStandDistance)
	}
	if o.MaxDistanceFromAirport <= 0 {
		return nil, fmt.Errorf("%w: max distance from airport must be positive, got %v", ErrInvalidOptions, o.MaxDistanceFromAirport)
	}
	return ParsePattern(o.StandExtensionPattern, o.StandExtensions)
}
