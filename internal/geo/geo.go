// Package geo holds the spherical-earth helpers used to match aircraft to stands.
package geo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusKm = 6371.0 // Mean earth radius used by all distance calculations
	FeetToMeters  = 0.3048 // Conversion factor from feet to metres
	MaxBoxRadius  = 20.0   // Largest bounding box half-diagonal handed to remote queries (km)
	boxBearingSW  = 225.0  // Bearing from centre to the south-west corner
	boxBearingNE  = 45.0   // Bearing from centre to the north-east corner
)

// ErrCoordinateOutOfBounds is returned when a latitude or longitude is outside its valid range
var ErrCoordinateOutOfBounds = errors.New("coordinate out of bounds")

// BoundingBox is a lat/lon aligned rectangle
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// DistanceKm returns the haversine great-circle distance between two points in kilometres
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push a just past 1 for antipodal points
	a = math.Min(1, a)

	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// ValidLatitude reports whether lat is within [-90, 90]
func ValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lon is within [-180, 180]
func ValidLongitude(lon float64) bool {
	return lon >= -180 && lon <= 180
}

// ValidateCoordinatePair returns ErrCoordinateOutOfBounds if either value is out of range
func ValidateCoordinatePair(lat, lon float64) error {
	if !ValidLatitude(lat) {
		return fmt.Errorf("%w: latitude %v", ErrCoordinateOutOfBounds, lat)
	}
	if !ValidLongitude(lon) {
		return fmt.Errorf("%w: longitude %v", ErrCoordinateOutOfBounds, lon)
	}
	return nil
}

// DestinationPoint returns the point reached by travelling distanceKm from (lat, lon)
// along the initial great-circle bearing (degrees clockwise from north)
func DestinationPoint(lat, lon, distanceKm, bearing float64) (float64, float64) {
	phi1 := toRadians(lat)
	lambda1 := toRadians(lon)
	theta := toRadians(bearing)
	delta := distanceKm / EarthRadiusKm

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return toDegrees(phi2), toDegrees(lambda2)
}

// BoxAround returns a bounding box that contains a circle of radiusKm around (lat, lon).
// The corners sit on the diagonals, so the half-diagonal is radius / cos(45°), capped at MaxBoxRadius.
func BoxAround(lat, lon, radiusKm float64) BoundingBox {
	diagonal := math.Min(radiusKm/math.Cos(toRadians(45)), MaxBoxRadius)

	south, west := DestinationPoint(lat, lon, diagonal, boxBearingSW)
	north, east := DestinationPoint(lat, lon, diagonal, boxBearingNE)

	return BoundingBox{South: south, West: west, North: north, East: east}
}

// MagneticVariation calculates the magnetic declination for a given position and time.
// Returns declination in degrees (+East, -West), or 0 if the model has no answer for the date.
func MagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altFt*FeetToMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}

	d := mag.D()
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0.0
	}
	return d
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
