package standdata

import "errors"

var (
	// ErrUnableToLoadStandDataFile is returned when a stand file cannot be opened
	ErrUnableToLoadStandDataFile = errors.New("unable to load stand data file")
	// ErrUnableToParseStandData is returned for stand data with missing or unreadable fields
	ErrUnableToParseStandData = errors.New("unable to parse stand data")
	// ErrInvalidICAOCode is returned for an airport code that is not four letters
	ErrInvalidICAOCode = errors.New("invalid ICAO code")
)
