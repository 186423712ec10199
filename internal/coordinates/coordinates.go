// Package coordinates converts stand source coordinates into decimal degrees.
package coordinates

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCoordinateFormat is returned for a format that has no converter
	ErrInvalidCoordinateFormat = errors.New("invalid coordinate format")
	// ErrMalformedCoordinate is returned when a value cannot be read in the selected format
	ErrMalformedCoordinate = errors.New("malformed coordinate")
)

// Format identifies how coordinates are written in a stand source
type Format int

const (
	// FormatDecimal is plain decimal degrees, e.g. 51.154819
	FormatDecimal Format = iota + 1
	// FormatCAA is the UK AIP sexagesimal form, e.g. 510917.35N / 0000953.33W
	FormatCAA
)

// String returns the configuration name of the format
func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "decimal"
	case FormatCAA:
		return "caa"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat maps a configuration name onto a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "decimal":
		return FormatDecimal, nil
	case "caa", "dms":
		return FormatCAA, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinateFormat, name)
	}
}

// Converter turns raw latitude and longitude strings into decimal degrees
type Converter interface {
	LatitudeToDecimal(raw string) (float64, error)
	LongitudeToDecimal(raw string) (float64, error)
}

// NewConverter returns the converter for the given format
func NewConverter(format Format) (Converter, error) {
	switch format {
	case FormatDecimal:
		return Decimal{}, nil
	case FormatCAA:
		return CAA{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidCoordinateFormat, format)
	}
}

// Decimal passes decimal degree strings straight through
type Decimal struct{}

// LatitudeToDecimal parses a decimal latitude
func (Decimal) LatitudeToDecimal(raw string) (float64, error) {
	return parseDecimal(raw)
}

// LongitudeToDecimal parses a decimal longitude
func (Decimal) LongitudeToDecimal(raw string) (float64, error) {
	return parseDecimal(raw)
}

func parseDecimal(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, raw)
	}
	return v, nil
}

// CAA parses fixed width degrees/minutes/seconds with a trailing hemisphere letter.
// Latitudes are DDMMSS.ss[N|S], longitudes DDDMMSS.ss[E|W].
type CAA struct{}

// LatitudeToDecimal converts a CAA latitude such as 510917.35N
func (CAA) LatitudeToDecimal(raw string) (float64, error) {
	return parseDMS(raw, 2, 'N', 'S')
}

// LongitudeToDecimal converts a CAA longitude such as 0000953.33W
func (CAA) LongitudeToDecimal(raw string) (float64, error) {
	return parseDMS(raw, 3, 'E', 'W')
}

// parseDMS reads degWidth degree digits, two minute digits and the remaining seconds.
// The sign comes from the hemisphere letter when present, otherwise from the degree component.
func parseDMS(raw string, degWidth int, positive, negative byte) (float64, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))

	hemisphere := byte(0)
	if n := len(s); n > 0 && (s[n-1] == positive || s[n-1] == negative) {
		hemisphere = s[n-1]
		s = s[:n-1]
	}

	signed := false
	if strings.HasPrefix(s, "-") {
		signed = true
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}

	if len(s) <= degWidth+2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, raw)
	}

	deg, err1 := strconv.ParseFloat(s[:degWidth], 64)
	minutes, err2 := strconv.ParseFloat(s[degWidth:degWidth+2], 64)
	seconds, err3 := strconv.ParseFloat(s[degWidth+2:], 64)
	if err := errors.Join(err1, err2, err3); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, raw)
	}

	value := math.Abs(deg) + (minutes*60+seconds)/3600

	switch hemisphere {
	case negative:
		return -value, nil
	case positive:
		return value, nil
	}
	if signed {
		return -value, nil
	}
	return value, nil
}
