// Package standdata provides stand positions from CSV files and OpenStreetMap.
package standdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/yegors/stand-status/internal/coordinates"
	"github.com/yegors/stand-status/internal/geo"
	"github.com/yegors/stand-status/internal/stands"
)

// LoadCSVFile reads stand rows from the file at path, see LoadCSV
func LoadCSVFile(path string, conv coordinates.Converter) ([]stands.StandData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnableToLoadStandDataFile, path, err)
	}
	defer file.Close()

	data, err := LoadCSV(file, conv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// LoadCSV reads rows of id, latitude, longitude. Extra columns are ignored.
// A row whose latitude is purely alphabetic is treated as a header and skipped.
// Coordinates are converted with conv and must be within range.
func LoadCSV(r io.Reader, conv coordinates.Converter) ([]stands.StandData, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var data []stands.StandData
	seen := make(map[string]bool)
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrUnableToParseStandData, line, err)
		}

		// Blank lines are dropped by the reader; a lone empty field is not
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("%w: line %d: expected id, latitude, longitude", ErrUnableToParseStandData, line)
		}

		if isHeader(record[1]) {
			continue
		}

		lat, err := conv.LatitudeToDecimal(record[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrUnableToParseStandData, line, err)
		}
		lon, err := conv.LongitudeToDecimal(record[2])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrUnableToParseStandData, line, err)
		}
		if err := geo.ValidateCoordinatePair(lat, lon); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		name := strings.TrimSpace(record[0])
		if name == "" {
			return nil, fmt.Errorf("%w: line %d: %w", ErrUnableToParseStandData, line, stands.ErrInvalidStand)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: line %d: %w %q", ErrUnableToParseStandData, line, stands.ErrDuplicateStandKey, name)
		}
		seen[name] = true

		data = append(data, stands.StandData{
			Name:      name,
			Latitude:  lat,
			Longitude: lon,
		})
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no stands found", ErrUnableToParseStandData)
	}

	return data, nil
}

// isHeader reports whether a latitude field is a column title rather than a value
func isHeader(field string) bool {
	field = strings.TrimSpace(field)
	if field == "" {
		return false
	}
	for _, r := range field {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
