package stands

import (
	"context"
	"errors"
	"testing"

	"github.com/yegors/stand-status/internal/geo"
	"github.com/yegors/stand-status/pkg/logger"
)

const (
	airportLat = 51.148056
	airportLon = -0.190278
)

// groupStands is a stand with three sides plus an unrelated neighbour 200 m away
var groupStands = []StandData{
	{Name: "43", Latitude: 51.15740, Longitude: -0.17373},
	{Name: "43L", Latitude: 51.15712, Longitude: -0.17410},
	{Name: "43R", Latitude: 51.15712, Longitude: -0.17336},
	{Name: "43N", Latitude: 51.15712, Longitude: -0.17373},
	{Name: "44", Latitude: 51.15892, Longitude: -0.17373},
}

func newTestStatus(t *testing.T, opts Options, data []StandData) *Status {
	t.Helper()
	s, err := NewStatus(airportLat, airportLon, opts, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create status: %v", err)
	}
	if data != nil {
		if err := s.Load(data); err != nil {
			t.Fatalf("Failed to load stands: %v", err)
		}
	}
	return s
}

func onStand(callsign string, lat, lon float64) AircraftData {
	return AircraftData{Callsign: callsign, Latitude: lat, Longitude: lon}
}

func names(list []Stand) []string {
	out := make([]string, len(list))
	for i, st := range list {
		out[i] = st.Name()
	}
	return out
}

func TestNewStatusRejectsBadAirport(t *testing.T) {
	if _, err := NewStatus(1000, 0.1, DefaultOptions(), logger.NewNop()); !errors.Is(err, geo.ErrCoordinateOutOfBounds) {
		t.Errorf("Expected ErrCoordinateOutOfBounds, got %v", err)
	}
}

func TestNewStatusRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxStandDistance = 0
	if _, err := NewStatus(airportLat, airportLon, opts, logger.NewNop()); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("Expected ErrInvalidOptions, got %v", err)
	}

	opts = DefaultOptions()
	opts.StandExtensionPattern = "<standroot><standroot>"
	if _, err := NewStatus(airportLat, airportLon, opts, logger.NewNop()); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("Expected ErrInvalidPattern, got %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)

	t.Run("Duplicate key", func(t *testing.T) {
		err := s.Load([]StandData{{Name: "1", Latitude: 51, Longitude: 0}, {Name: "1", Latitude: 51.1, Longitude: 0}})
		if !errors.Is(err, ErrDuplicateStandKey) {
			t.Errorf("Expected ErrDuplicateStandKey, got %v", err)
		}
	})

	t.Run("Empty name", func(t *testing.T) {
		err := s.Load([]StandData{{Name: " ", Latitude: 51, Longitude: 0}})
		if !errors.Is(err, ErrInvalidStand) {
			t.Errorf("Expected ErrInvalidStand, got %v", err)
		}
	})

	t.Run("Out of range", func(t *testing.T) {
		err := s.Load([]StandData{{Name: "1", Latitude: 91, Longitude: 0}})
		if !errors.Is(err, geo.ErrCoordinateOutOfBounds) {
			t.Errorf("Expected ErrCoordinateOutOfBounds, got %v", err)
		}
	})

	// Failed loads keep the previous collection
	if got := s.Count(); got != len(groupStands) {
		t.Errorf("Expected %d stands after failed loads, got %d", len(groupStands), got)
	}
}

func TestParseDataWithoutStands(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), nil)

	called := false
	feed := FeedFunc(func(context.Context) ([]AircraftData, error) {
		called = true
		return nil, nil
	})

	if err := s.ParseData(context.Background(), feed); !errors.Is(err, ErrNoStandData) {
		t.Errorf("Expected ErrNoStandData, got %v", err)
	}
	if called {
		t.Error("Expected feed not to be fetched without stand data")
	}

	if err := s.Load([]StandData{}); err != nil {
		t.Fatalf("Expected empty load to succeed, got %v", err)
	}
	if err := s.ParseData(context.Background(), StaticFeed{}); !errors.Is(err, ErrNoStandData) {
		t.Errorf("Expected ErrNoStandData after loading zero stands, got %v", err)
	}
}

func TestGroupOccupancy(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)

	feed := StaticFeed{onStand("TEST5", 51.15712, -0.17373)}
	if err := s.ParseData(context.Background(), feed); err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}

	for _, name := range []string{"43", "43L", "43R", "43N"} {
		st, ok := s.Stand(name)
		if !ok {
			t.Fatalf("Expected stand %s to exist", name)
		}
		if !st.IsOccupied() || st.Occupier().Callsign != "TEST5" {
			t.Errorf("Expected %s occupied by TEST5, got %+v", name, st.Occupier())
		}
		if want := name != "43N"; st.IsPartOfOccupiedGroup() != want {
			t.Errorf("Expected %s IsPartOfOccupiedGroup=%v", name, want)
		}
	}

	if st, _ := s.Stand("44"); st.IsOccupied() {
		t.Error("Expected stand 44 to be free")
	}

	if got := names(s.Stands()); len(got) != 2 || got[0] != "43N" || got[1] != "44" {
		t.Errorf("Expected Stands() to be [43N 44], got %v", got)
	}
	if got := len(s.AllStands()); got != 5 {
		t.Errorf("Expected AllStands() to keep all 5 stands, got %d", got)
	}

	aircraft := s.AllAircraft()
	if len(aircraft) != 1 || aircraft[0].StandKey() != "43N" || !aircraft[0].OnStand() {
		t.Fatalf("Expected TEST5 on 43N, got %+v", aircraft)
	}
	if st, ok := aircraft[0].Stand(s); !ok || st.Name() != "43N" {
		t.Errorf("Expected aircraft to resolve stand 43N, got %v %v", st.Name(), ok)
	}
}

func TestShowSidesWhenConfigured(t *testing.T) {
	opts := DefaultOptions()
	opts.HideStandSidesWhenOccupied = false
	s := newTestStatus(t, opts, groupStands)

	if err := s.ParseData(context.Background(), StaticFeed{onStand("TEST5", 51.15712, -0.17373)}); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Stands()); got != 5 {
		t.Errorf("Expected all 5 stands visible, got %d", got)
	}
	if got := len(s.OccupiedStands()); got != 4 {
		t.Errorf("Expected 4 occupied stands, got %d", got)
	}
}

func TestCandidateFilter(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)

	fast := onStand("FAST", 51.15712, -0.17373)
	fast.Groundspeed = 11
	high := onStand("HIGH", 51.15712, -0.17373)
	high.Altitude = 3001
	edge := onStand("EDGE", 51.15892, -0.17373)
	edge.Groundspeed = 10
	edge.Altitude = 3000
	far := onStand("FAR", 53.15092, -0.18304)

	if err := s.ParseData(context.Background(), StaticFeed{fast, high, edge, far}); err != nil {
		t.Fatal(err)
	}

	aircraft := s.AllAircraft()
	if len(aircraft) != 1 || aircraft[0].Callsign != "EDGE" {
		t.Fatalf("Expected only EDGE to pass the filter, got %+v", aircraft)
	}
	if got := names(s.OccupiedStands()); len(got) != 1 || got[0] != "44" {
		t.Errorf("Expected only 44 occupied, got %v", got)
	}
}

func TestFilterKeepsFeedOrder(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)

	feed := StaticFeed{
		onStand("C", airportLat, airportLon),
		onStand("A", airportLat+0.001, airportLon),
		onStand("B", airportLat, airportLon+0.001),
	}
	if err := s.ParseData(context.Background(), feed); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, a := range s.AllAircraft() {
		got = append(got, a.Callsign)
		if a.OnStand() {
			t.Errorf("Expected %s not to be on a stand", a.Callsign)
		}
	}
	if len(got) != 3 || got[0] != "C" || got[1] != "A" || got[2] != "B" {
		t.Errorf("Expected feed order [C A B], got %v", got)
	}
}

func TestNearestStandWins(t *testing.T) {
	data := []StandData{
		{Name: "10", Latitude: 51.15000, Longitude: -0.18000},
		{Name: "11", Latitude: 51.15020, Longitude: -0.18000},
	}
	s := newTestStatus(t, DefaultOptions(), data)

	// 17 m from 10, 6 m from 11
	if err := s.ParseData(context.Background(), StaticFeed{onStand("NEAR", 51.15015, -0.18000)}); err != nil {
		t.Fatal(err)
	}
	if got := s.AllAircraft()[0].StandKey(); got != "11" {
		t.Errorf("Expected nearest stand 11, got %q", got)
	}
}

func TestEquidistantStandsPreferLoadOrder(t *testing.T) {
	data := []StandData{
		{Name: "20", Latitude: 51.15000, Longitude: -0.18000},
		{Name: "21", Latitude: 51.15000, Longitude: -0.18000},
	}
	s := newTestStatus(t, DefaultOptions(), data)

	if err := s.ParseData(context.Background(), StaticFeed{onStand("MID", 51.15010, -0.18000)}); err != nil {
		t.Fatal(err)
	}
	if got := s.AllAircraft()[0].StandKey(); got != "20" {
		t.Errorf("Expected first loaded stand 20, got %q", got)
	}
}

func TestOutsideThresholdIsUnassigned(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)

	// Roughly 100 m south of 43N
	if err := s.ParseData(context.Background(), StaticFeed{onStand("APRON", 51.15622, -0.17373)}); err != nil {
		t.Fatal(err)
	}
	if a := s.AllAircraft(); len(a) != 1 || a[0].OnStand() {
		t.Errorf("Expected one unassigned aircraft, got %+v", a)
	}
	if len(s.OccupiedStands()) != 0 {
		t.Error("Expected no occupied stands")
	}
}

func TestLastWriterWinsAcrossAircraft(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)

	feed := StaticFeed{
		onStand("FIRST", 51.15712, -0.17410),  // on 43L
		onStand("SECOND", 51.15712, -0.17336), // on 43R
	}
	if err := s.ParseData(context.Background(), feed); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"43", "43L", "43R", "43N"} {
		st, _ := s.Stand(name)
		if st.Occupier() == nil || st.Occupier().Callsign != "SECOND" {
			t.Errorf("Expected %s occupied by SECOND, got %+v", name, st.Occupier())
		}
	}

	aircraft := s.AllAircraft()
	if aircraft[0].StandKey() != "43L" || aircraft[1].StandKey() != "43R" {
		t.Errorf("Expected stand keys 43L and 43R, got %q and %q", aircraft[0].StandKey(), aircraft[1].StandKey())
	}
}

func TestRepeatedCyclesAreIdempotent(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)
	feed := StaticFeed{onStand("TEST5", 51.15712, -0.17373)}

	if err := s.ParseData(context.Background(), feed); err != nil {
		t.Fatal(err)
	}
	first := names(s.OccupiedStands())

	if err := s.ParseData(context.Background(), feed); err != nil {
		t.Fatal(err)
	}
	second := names(s.OccupiedStands())

	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("Expected identical occupancy, got %v then %v", first, second)
	}
	if got := len(s.AllAircraft()); got != 1 {
		t.Errorf("Expected 1 aircraft after second cycle, got %d", got)
	}
}

func TestUnavailableFeedClearsOccupancy(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)

	if err := s.ParseData(context.Background(), StaticFeed{onStand("TEST5", 51.15712, -0.17373)}); err != nil {
		t.Fatal(err)
	}
	if len(s.OccupiedStands()) != 1 {
		t.Fatal("Expected one occupied stand before the outage")
	}

	down := FeedFunc(func(context.Context) ([]AircraftData, error) {
		return nil, ErrFeedUnavailable
	})
	if err := s.ParseData(context.Background(), down); err != nil {
		t.Fatalf("Expected unavailable feed not to fail the cycle, got %v", err)
	}

	if len(s.OccupiedStands()) != 0 || len(s.AllAircraft()) != 0 {
		t.Error("Expected no occupancy and no aircraft after the outage")
	}
	if got := len(s.UnoccupiedStands()); got != len(groupStands) {
		t.Errorf("Expected %d unoccupied stands, got %d", len(groupStands), got)
	}

	cycle := s.LastCycle()
	if cycle.FeedAvailable || cycle.FeedError == "" {
		t.Errorf("Expected cycle to record the feed outage, got %+v", cycle)
	}
}

func TestCancelledCycleKeepsOccupancy(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)

	if err := s.ParseData(context.Background(), StaticFeed{onStand("TEST5", 51.15712, -0.17373)}); err != nil {
		t.Fatal(err)
	}
	before := s.LastCycle()

	ctx, cancel := context.WithCancel(context.Background())
	aborted := FeedFunc(func(ctx context.Context) ([]AircraftData, error) {
		cancel()
		return nil, ctx.Err()
	})
	if err := s.ParseData(ctx, aborted); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	if len(s.OccupiedStands()) != 1 || len(s.AllAircraft()) != 1 {
		t.Error("Expected the previous cycle's occupancy to survive cancellation")
	}
	if after := s.LastCycle(); !after.At.Equal(before.At) || !after.FeedAvailable {
		t.Errorf("Expected cycle info to be unchanged, got %+v", after)
	}
}

func TestStandWithoutRootHasNoGroup(t *testing.T) {
	data := []StandData{
		{Name: "Cargo", Latitude: 51.15712, Longitude: -0.17373},
		{Name: "Cargo L", Latitude: 51.15722, Longitude: -0.17373},
	}
	s := newTestStatus(t, DefaultOptions(), data)

	if err := s.ParseData(context.Background(), StaticFeed{onStand("FREIGHT", 51.15712, -0.17373)}); err != nil {
		t.Fatal(err)
	}
	if got := names(s.OccupiedStands()); len(got) != 1 || got[0] != "Cargo" {
		t.Errorf("Expected only Cargo occupied, got %v", got)
	}
}

func TestViewsFollowOptionChanges(t *testing.T) {
	s := newTestStatus(t, DefaultOptions(), groupStands)
	if err := s.ParseData(context.Background(), StaticFeed{onStand("TEST5", 51.15712, -0.17373)}); err != nil {
		t.Fatal(err)
	}
	if got := len(s.OccupiedStands()); got != 1 {
		t.Fatalf("Expected 1 occupied stand, got %d", got)
	}

	opts := s.Options()
	opts.HideStandSidesWhenOccupied = false
	if err := s.SetOptions(opts); err != nil {
		t.Fatal(err)
	}
	if got := len(s.OccupiedStands()); got != 4 {
		t.Errorf("Expected 4 occupied stands once sides are shown, got %d", got)
	}

	byName := s.OccupiedStandsByName()
	if _, ok := byName["43L"]; !ok {
		t.Error("Expected 43L in keyed view")
	}
}

func TestAircraftField(t *testing.T) {
	a := Aircraft{AircraftData: AircraftData{
		Callsign: "BAW123",
		Altitude: 200,
		Extra:    map[string]any{"transponder": "7000"},
	}}

	if v, ok := a.Field("callsign"); !ok || v != "BAW123" {
		t.Errorf("Expected callsign BAW123, got %v %v", v, ok)
	}
	if v, ok := a.Field("transponder"); !ok || v != "7000" {
		t.Errorf("Expected transponder 7000, got %v %v", v, ok)
	}
	if _, ok := a.Field("heading"); ok {
		t.Error("Expected missing field to report false")
	}
	if a.OnStand() {
		t.Error("Expected new aircraft not to be on a stand")
	}
}
