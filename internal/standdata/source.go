package standdata

import (
	"context"
	"fmt"

	"github.com/yegors/stand-status/internal/coordinates"
	"github.com/yegors/stand-status/internal/stands"
)

// Source provides the stand rows to load into a registry
type Source interface {
	Stands(ctx context.Context) ([]stands.StandData, error)
	Describe() string
}

// CSVSource reads stands from a local CSV file
type CSVSource struct {
	Path      string
	Converter coordinates.Converter
}

// NewCSVSource creates a CSV source for the given coordinate format
func NewCSVSource(path string, format coordinates.Format) (*CSVSource, error) {
	conv, err := coordinates.NewConverter(format)
	if err != nil {
		return nil, err
	}
	return &CSVSource{Path: path, Converter: conv}, nil
}

// Stands reads the file
func (s *CSVSource) Stands(context.Context) ([]stands.StandData, error) {
	return LoadCSVFile(s.Path, s.Converter)
}

// Describe names the source for logs
func (s *CSVSource) Describe() string {
	return "csv:" + s.Path
}

// OSMSource fetches stands around a fixed airport position
type OSMSource struct {
	Client    *OSMClient
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// NewOSMSource creates an OSM source. OSM data is always decimal, so any other
// configured coordinate format is rejected.
func NewOSMSource(client *OSMClient, format coordinates.Format, lat, lon, radiusKm float64) (*OSMSource, error) {
	if format != coordinates.FormatDecimal {
		return nil, fmt.Errorf("%w: OpenStreetMap stand data requires decimal coordinates", coordinates.ErrInvalidCoordinateFormat)
	}
	return &OSMSource{Client: client, Latitude: lat, Longitude: lon, RadiusKm: radiusKm}, nil
}

// Stands fetches the stand data, from cache when fresh
func (s *OSMSource) Stands(ctx context.Context) ([]stands.StandData, error) {
	return s.Client.Stands(ctx, s.Latitude, s.Longitude, s.RadiusKm)
}

// Describe names the source for logs
func (s *OSMSource) Describe() string {
	return "osm:" + s.Client.ICAO()
}
