package stands

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yegors/stand-status/internal/geo"
	"github.com/yegors/stand-status/pkg/logger"
)

// CycleInfo summarises the most recent ParseData run
type CycleInfo struct {
	At            time.Time `json:"at"`
	FeedAvailable bool      `json:"feed_available"`
	FeedError     string    `json:"feed_error,omitempty"`
	FeedRecords   int       `json:"feed_records"`
	Candidates    int       `json:"candidates"`
	Matched       int       `json:"matched"`
}

// Status owns the stand registry and runs the occupancy matching cycle.
// It is safe for concurrent use: a cycle runs under the write lock, readers see
// either the previous or the new state.
type Status struct {
	airportLat float64
	airportLon float64
	opts       Options
	pattern    *Pattern
	logger     *logger.Logger

	mu       sync.RWMutex
	stands   []Stand
	index    map[string]int
	aircraft []Aircraft
	cycle    CycleInfo
	gen      uint64

	viewMu sync.Mutex
	view   *views
}

// views holds the memoised occupied/unoccupied lists for one generation
type views struct {
	gen        uint64
	occupied   []Stand
	unoccupied []Stand
}

// NewStatus creates an empty registry for the airport at the given reference point
func NewStatus(airportLat, airportLon float64, opts Options, log *logger.Logger) (*Status, error) {
	if err := geo.ValidateCoordinatePair(airportLat, airportLon); err != nil {
		return nil, fmt.Errorf("invalid airport position: %w", err)
	}

	pattern, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	opts.StandExtensions = pattern.Extensions()

	return &Status{
		airportLat: airportLat,
		airportLon: airportLon,
		opts:       opts,
		pattern:    pattern,
		logger:     log.Named("stands"),
		index:      make(map[string]int),
	}, nil
}

// Load replaces the stand collection. On error the previous collection is kept.
// Occupancy and the aircraft list are reset until the next cycle.
func (s *Status) Load(data []StandData) error {
	stands := make([]Stand, 0, len(data))
	index := make(map[string]int, len(data))

	for i, row := range data {
		if strings.TrimSpace(row.Name) == "" {
			return fmt.Errorf("%w: row %d has no name", ErrInvalidStand, i+1)
		}
		if err := geo.ValidateCoordinatePair(row.Latitude, row.Longitude); err != nil {
			return fmt.Errorf("stand %q: %w", row.Name, err)
		}
		if _, exists := index[row.Name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateStandKey, row.Name)
		}

		index[row.Name] = len(stands)
		stands = append(stands, Stand{
			name:      row.Name,
			latitude:  row.Latitude,
			longitude: row.Longitude,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range stands {
		stands[i].pattern = s.pattern
	}
	s.stands = stands
	s.index = index
	s.aircraft = nil
	s.cycle = CycleInfo{}
	s.gen++

	s.logger.Info("Loaded stand data", logger.Int("stands", len(stands)))
	return nil
}

// Options returns the current matching options
func (s *Status) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opts := s.opts
	opts.StandExtensions = append([]string(nil), s.opts.StandExtensions...)
	return opts
}

// SetOptions replaces the matching options. They apply to the next cycle;
// stand roots and extensions are derived with the new template immediately.
func (s *Status) SetOptions(opts Options) error {
	pattern, err := opts.Validate()
	if err != nil {
		return err
	}
	opts.StandExtensions = pattern.Extensions()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts = opts
	s.pattern = pattern
	for i := range s.stands {
		s.stands[i].pattern = pattern
	}
	s.gen++
	return nil
}

// ParseData runs one full cycle: fetch the feed, reset all occupancy, filter the
// candidates and match each one to its nearest stand and that stand's group.
// It fails when no stands are loaded or ctx is done, leaving the previous cycle
// in place; an unavailable feed yields an empty cycle.
func (s *Status) ParseData(ctx context.Context, feed Feed) error {
	s.mu.RLock()
	loaded := len(s.stands)
	s.mu.RUnlock()
	if loaded == 0 {
		return ErrNoStandData
	}

	// Feed I/O happens outside the lock
	records, feedErr := feed.Aircraft(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	if feedErr != nil {
		s.logger.Warn("Aircraft feed unavailable, clearing occupancy", logger.Error(feedErr))
		records = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stands) == 0 {
		return ErrNoStandData
	}

	s.gen++
	for i := range s.stands {
		s.stands[i].occupier = nil
	}

	s.aircraft = s.filter(records)

	matched := 0
	for i := range s.aircraft {
		if s.match(&s.aircraft[i]) {
			matched++
		}
	}

	s.cycle = CycleInfo{
		At:            time.Now(),
		FeedAvailable: feedErr == nil,
		FeedRecords:   len(records),
		Candidates:    len(s.aircraft),
		Matched:       matched,
	}
	if feedErr != nil {
		s.cycle.FeedError = feedErr.Error()
	}

	s.logger.Debug("Stand cycle complete",
		logger.Int("feed_records", len(records)),
		logger.Int("candidates", len(s.aircraft)),
		logger.Int("matched", matched),
	)
	return nil
}

// filter keeps the records near the airport that are slow and low enough, in feed order
func (s *Status) filter(records []AircraftData) []Aircraft {
	candidates := make([]Aircraft, 0, len(records))
	for _, r := range records {
		nearAirport := geo.DistanceKm(r.Latitude, r.Longitude, s.airportLat, s.airportLon) < s.opts.MaxDistanceFromAirport
		slowEnough := r.Groundspeed <= s.opts.MaxAircraftGroundspeed
		lowEnough := r.Altitude <= s.opts.MaxAircraftAltitude

		if nearAirport && slowEnough && lowEnough {
			candidates = append(candidates, Aircraft{AircraftData: r})
		}
	}
	return candidates
}

// match assigns the aircraft to the closest stand inside the threshold and
// marks the rest of that stand's group as occupied by the same aircraft.
// Equidistant stands resolve to the first one in load order.
func (s *Status) match(a *Aircraft) bool {
	best := -1
	bestDistance := 0.0

	for i := range s.stands {
		d := geo.DistanceKm(s.stands[i].latitude, s.stands[i].longitude, a.Latitude, a.Longitude)
		if d < s.opts.MaxStandDistance && (best < 0 || d < bestDistance) {
			best = i
			bestDistance = d
		}
	}
	if best < 0 {
		return false
	}

	primary := &s.stands[best]
	primary.occupier = a
	a.standKey = primary.name

	for _, i := range s.group(primary.name) {
		s.stands[i].occupier = a
	}
	return true
}

// group returns the registry indexes of the other stands sharing name's root
func (s *Status) group(name string) []int {
	root, _, ok := s.pattern.Match(name)
	if !ok || root == "" {
		return nil
	}

	var members []int
	for _, variant := range s.pattern.Variants(root) {
		if variant == name {
			continue
		}
		if i, exists := s.index[variant]; exists {
			members = append(members, i)
		}
	}
	return members
}

// Stand returns the named stand
func (s *Status) Stand(name string) (Stand, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[name]
	if !ok {
		return Stand{}, false
	}
	return s.stands[i], true
}

// Group returns the other loaded stands sharing the named stand's root
func (s *Status) Group(name string) []Stand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.index[name]; !ok {
		return nil
	}
	var members []Stand
	for _, i := range s.group(name) {
		members = append(members, s.stands[i])
	}
	return members
}

// AllStands returns every loaded stand in load order
func (s *Status) AllStands() []Stand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Stand(nil), s.stands...)
}

// Stands returns the stands for display: when side hiding is enabled, stands
// occupied only as members of a matched group are left out.
func (s *Status) Stands() []Stand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible()
}

func (s *Status) visible() []Stand {
	if !s.opts.HideStandSidesWhenOccupied {
		return append([]Stand(nil), s.stands...)
	}
	out := make([]Stand, 0, len(s.stands))
	for _, st := range s.stands {
		if !st.IsPartOfOccupiedGroup() {
			out = append(out, st)
		}
	}
	return out
}

// OccupiedStands returns the occupied stands of Stands(), in load order
func (s *Status) OccupiedStands() []Stand {
	return append([]Stand(nil), s.views().occupied...)
}

// UnoccupiedStands returns the free stands of Stands(), in load order
func (s *Status) UnoccupiedStands() []Stand {
	return append([]Stand(nil), s.views().unoccupied...)
}

// OccupiedStandsByName returns OccupiedStands keyed by stand name
func (s *Status) OccupiedStandsByName() map[string]Stand {
	return byName(s.views().occupied)
}

// UnoccupiedStandsByName returns UnoccupiedStands keyed by stand name
func (s *Status) UnoccupiedStandsByName() map[string]Stand {
	return byName(s.views().unoccupied)
}

// views returns the memoised views, rebuilding them after a cycle or reload
func (s *Status) views() *views {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.viewMu.Lock()
	defer s.viewMu.Unlock()

	if s.view != nil && s.view.gen == s.gen {
		return s.view
	}

	v := &views{gen: s.gen}
	for _, st := range s.visible() {
		if st.IsOccupied() {
			v.occupied = append(v.occupied, st)
		} else {
			v.unoccupied = append(v.unoccupied, st)
		}
	}
	s.view = v
	return v
}

func byName(list []Stand) map[string]Stand {
	m := make(map[string]Stand, len(list))
	for _, st := range list {
		m[st.name] = st
	}
	return m
}

// AllAircraft returns the candidate aircraft of the latest cycle, in feed order
func (s *Status) AllAircraft() []Aircraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Aircraft(nil), s.aircraft...)
}

// LastCycle returns a summary of the latest cycle
func (s *Status) LastCycle() CycleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycle
}

// Count returns the number of loaded stands
func (s *Status) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stands)
}
