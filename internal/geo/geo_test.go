package geo

import (
	"errors"
	"math"
	"testing"
	"time"
)

const tolerance = 1e-9

func TestDistanceKm(t *testing.T) {
	moscowLat, moscowLon := 55.755833, 37.617222
	nyLat, nyLon := 40.661, -73.944

	t.Run("Moscow to New York", func(t *testing.T) {
		d := DistanceKm(moscowLat, moscowLon, nyLat, nyLon)
		if math.Round(d) != 7512 {
			t.Errorf("Expected 7512 km, got %v", d)
		}
	})

	t.Run("Symmetric", func(t *testing.T) {
		ab := DistanceKm(moscowLat, moscowLon, nyLat, nyLon)
		ba := DistanceKm(nyLat, nyLon, moscowLat, moscowLon)
		if math.Abs(ab-ba) > tolerance {
			t.Errorf("Expected symmetric distance, got %v and %v", ab, ba)
		}
	})

	t.Run("Same point", func(t *testing.T) {
		if d := DistanceKm(nyLat, nyLon, nyLat, nyLon); d != 0 {
			t.Errorf("Expected 0, got %v", d)
		}
	})

	t.Run("Antipodal", func(t *testing.T) {
		d := DistanceKm(0, 0, 0, 180)
		want := math.Pi * EarthRadiusKm
		if math.Abs(d-want) > 1e-6 {
			t.Errorf("Expected %v, got %v", want, d)
		}
	})
}

func TestCoordinateValidation(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{"origin", 0, 0, false},
		{"north pole", 90, 0, false},
		{"south pole", -90, 0, false},
		{"date line east", 0, 180, false},
		{"date line west", 0, -180, false},
		{"latitude too high", 90.000001, 0, true},
		{"latitude too low", -91, 0, true},
		{"longitude too high", 0, 180.5, true},
		{"longitude too low", 0, -181, true},
		{"nan latitude", math.NaN(), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinatePair(tt.lat, tt.lon)
			if tt.wantErr {
				if !errors.Is(err, ErrCoordinateOutOfBounds) {
					t.Errorf("Expected ErrCoordinateOutOfBounds, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestDestinationPoint(t *testing.T) {
	tests := []struct {
		bearing float64
		wantLat float64
		wantLon float64
	}{
		{45, 40.72456128648007, -73.86008993799598},
		{195, 40.574128150080696, -73.9746440460457},
	}

	for _, tt := range tests {
		lat, lon := DestinationPoint(40.661, -73.944, 10, tt.bearing)
		if math.Abs(lat-tt.wantLat) > 1e-6 || math.Abs(lon-tt.wantLon) > 1e-6 {
			t.Errorf("Bearing %v: expected (%v, %v), got (%v, %v)", tt.bearing, tt.wantLat, tt.wantLon, lat, lon)
		}
	}
}

func TestBoxAround(t *testing.T) {
	lat, lon := 51.148056, -0.190278

	box := BoxAround(lat, lon, 6)
	if !(box.South < lat && lat < box.North) || !(box.West < lon && lon < box.East) {
		t.Fatalf("Expected box to contain centre, got %+v", box)
	}

	// Each corner sits radius/cos(45°) away from the centre
	want := 6 / math.Cos(math.Pi/4)
	if d := DistanceKm(lat, lon, box.South, box.West); math.Abs(d-want) > 1e-6 {
		t.Errorf("Expected south-west corner %v km away, got %v", want, d)
	}
	if d := DistanceKm(lat, lon, box.North, box.East); math.Abs(d-want) > 1e-6 {
		t.Errorf("Expected north-east corner %v km away, got %v", want, d)
	}

	t.Run("Capped radius", func(t *testing.T) {
		box := BoxAround(lat, lon, 100)
		if d := DistanceKm(lat, lon, box.North, box.East); math.Abs(d-MaxBoxRadius) > 1e-6 {
			t.Errorf("Expected capped diagonal of %v km, got %v", MaxBoxRadius, d)
		}
	})
}

func TestMagneticVariation(t *testing.T) {
	// Gatwick sits close to the agonic line
	v := MagneticVariation(51.148056, -0.190278, 200, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))
	if v == 0 || math.Abs(v) > 10 {
		t.Errorf("Expected a small non-zero declination, got %v", v)
	}
}
