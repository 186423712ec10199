// Package monitor runs the stand matcher on a schedule and publishes what changed.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/stand-status/internal/standdata"
	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/internal/storage/sqlite"
	"github.com/yegors/stand-status/internal/websocket"
	"github.com/yegors/stand-status/pkg/logger"
)

// ErrHistoryDisabled is returned by History when no storage is configured
var ErrHistoryDisabled = errors.New("occupancy history is not enabled")

// WebSocketServer defines the interface for a WebSocket server
type WebSocketServer interface {
	Broadcast(message *websocket.Message)
}

// Storage defines the interface for occupancy history storage
type Storage interface {
	InsertOccupancyEvents(ctx context.Context, events []sqlite.OccupancyEvent) error
	GetStandHistory(ctx context.Context, airport, stand string, limit int) ([]sqlite.OccupancyEvent, error)
	PruneOccupancyEvents(ctx context.Context, before time.Time) (int64, error)
}

// Config configures the refresh service
type Config struct {
	Airport          string        // ICAO code recorded with every event
	FetchInterval    time.Duration // time between cycles
	HistoryRetention time.Duration // events older than this are pruned; 0 keeps everything
}

// occupant is what a stand held at the end of a cycle
type occupant struct {
	callsign string
	primary  string
}

// Service refreshes stand occupancy on a ticker
type Service struct {
	status   *stands.Status
	source   standdata.Source
	feed     stands.Feed
	storage  Storage
	wsServer WebSocketServer
	cfg      Config
	logger   *logger.Logger

	refreshMu sync.Mutex // serialises cycles and reloads
	previous  map[string]occupant

	mu              sync.RWMutex
	lastFetchTime   time.Time
	lastFetchStatus bool
	lastError       string
	started         bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a refresh service. storage and wsServer may be nil.
func NewService(
	status *stands.Status,
	source standdata.Source,
	feed stands.Feed,
	storage Storage,
	wsServer WebSocketServer,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = 60 * time.Second
	}
	return &Service{
		status:   status,
		source:   source,
		feed:     feed,
		storage:  storage,
		wsServer: wsServer,
		cfg:      cfg,
		logger:   log.Named("monitor"),
		previous: make(map[string]occupant),
		stopCh:   make(chan struct{}),
	}
}

// Start loads the stands, runs the first cycle and starts the refresh loop.
// Stand data is loaded while the first feed snapshot is being fetched.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting stand monitor",
		logger.String("airport", s.cfg.Airport),
		logger.String("source", s.source.Describe()),
		logger.Duration("fetch_interval", s.cfg.FetchInterval),
	)

	var (
		data     []stands.StandData
		first    []stands.AircraftData
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = s.source.Stands(gctx)
		if err != nil {
			return fmt.Errorf("failed to load stands from %s: %w", s.source.Describe(), err)
		}
		return nil
	})
	g.Go(func() error {
		// Feed errors are part of the cycle result, not a start-up failure
		first, firstErr = s.feed.Aircraft(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.load(data); err != nil {
		return err
	}

	prefetched := stands.FeedFunc(func(context.Context) ([]stands.AircraftData, error) {
		return first, firstErr
	})
	if _, err := s.refresh(ctx, prefetched); err != nil {
		s.logger.Error("Initial stand cycle failed", logger.Error(err))
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.fetchLoop(ctx)

	return nil
}

// Stop stops the refresh loop and waits for it to exit
func (s *Service) Stop() {
	s.logger.Info("Stopping stand monitor")
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.logger.Info("Stand monitor stopped")
}

func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FetchInterval)
	defer ticker.Stop()

	var pruneC <-chan time.Time
	if s.storage != nil && s.cfg.HistoryRetention > 0 {
		pruneTicker := time.NewTicker(time.Hour)
		defer pruneTicker.Stop()
		pruneC = pruneTicker.C
		s.prune(ctx)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Stand cycle failed", logger.Error(err))
			}
		case <-pruneC:
			s.prune(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Refresh runs one cycle against the live feed and publishes the changes
func (s *Service) Refresh(ctx context.Context) (stands.CycleInfo, error) {
	return s.refresh(ctx, s.feed)
}

func (s *Service) refresh(ctx context.Context, feed stands.Feed) (stands.CycleInfo, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if err := s.status.ParseData(ctx, feed); err != nil {
		if ctx.Err() != nil {
			return stands.CycleInfo{}, err
		}
		s.setResult(time.Now(), false, err)
		return stands.CycleInfo{}, fmt.Errorf("failed to run stand cycle: %w", err)
	}

	cycle := s.status.LastCycle()
	var feedErr error
	if !cycle.FeedAvailable {
		feedErr = errors.New(cycle.FeedError)
	}
	s.setResult(cycle.At, cycle.FeedAvailable, feedErr)

	events := s.detectChanges(cycle.At)
	s.record(ctx, events)
	s.publish(cycle, events)

	return cycle, nil
}

// ReloadStands reloads the stand source. Change tracking restarts from an empty apron.
func (s *Service) ReloadStands(ctx context.Context) error {
	data, err := s.source.Stands(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stands from %s: %w", s.source.Describe(), err)
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.load(data)
}

// load must be called with refreshMu held or before the loop starts
func (s *Service) load(data []stands.StandData) error {
	if err := s.status.Load(data); err != nil {
		return fmt.Errorf("failed to load stands: %w", err)
	}
	s.previous = make(map[string]occupant)

	s.logger.Info("Loaded stands",
		logger.Int("count", len(data)),
		logger.String("source", s.source.Describe()),
	)
	return nil
}

// detectChanges diffs every stand's occupier against the previous cycle
func (s *Service) detectChanges(at time.Time) []sqlite.OccupancyEvent {
	current := make(map[string]occupant)
	var events []sqlite.OccupancyEvent

	for _, st := range s.status.AllStands() {
		name := st.Name()
		prev, hadPrev := s.previous[name]

		var cur occupant
		if a := st.Occupier(); a != nil {
			cur = occupant{callsign: a.Callsign, primary: a.StandKey()}
			current[name] = cur
		}
		hasCur := st.IsOccupied()

		event := sqlite.OccupancyEvent{
			Airport:      s.cfg.Airport,
			Stand:        name,
			Callsign:     cur.callsign,
			PrimaryStand: cur.primary,
			Timestamp:    at,
		}

		switch {
		case hasCur && !hadPrev:
			event.Event = sqlite.EventOccupied
		case !hasCur && hadPrev:
			event.Event = sqlite.EventVacated
			event.PreviousCallsign = prev.callsign
		case hasCur && hadPrev && cur.callsign != prev.callsign:
			event.Event = sqlite.EventOccupierChanged
			event.PreviousCallsign = prev.callsign
		default:
			continue
		}
		events = append(events, event)
	}

	s.previous = current
	return events
}

func (s *Service) record(ctx context.Context, events []sqlite.OccupancyEvent) {
	if s.storage == nil || len(events) == 0 {
		return
	}
	if err := s.storage.InsertOccupancyEvents(ctx, events); err != nil {
		s.logger.Error("Failed to store occupancy events", logger.Error(err))
	}
}

func (s *Service) publish(cycle stands.CycleInfo, events []sqlite.OccupancyEvent) {
	if s.wsServer == nil {
		return
	}

	for _, e := range events {
		s.wsServer.Broadcast(&websocket.Message{
			Type: eventMessageType(e.Event),
			Data: map[string]any{
				"airport":           e.Airport,
				"stand":             e.Stand,
				"callsign":          e.Callsign,
				"previous_callsign": e.PreviousCallsign,
				"primary_stand":     e.PrimaryStand,
				"timestamp":         e.Timestamp,
			},
		})
	}

	s.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeCycleComplete,
		Data: map[string]any{
			"at":             cycle.At,
			"feed_available": cycle.FeedAvailable,
			"candidates":     cycle.Candidates,
			"matched":        cycle.Matched,
			"changes":        len(events),
			"occupied":       len(s.status.OccupiedStands()),
		},
	})
}

func eventMessageType(event string) string {
	switch event {
	case sqlite.EventOccupied:
		return websocket.MessageTypeStandOccupied
	case sqlite.EventVacated:
		return websocket.MessageTypeStandVacated
	default:
		return websocket.MessageTypeStandOccupierChanged
	}
}

func (s *Service) prune(ctx context.Context) {
	n, err := s.storage.PruneOccupancyEvents(ctx, time.Now().Add(-s.cfg.HistoryRetention))
	if err != nil {
		s.logger.Error("Failed to prune occupancy history", logger.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Pruned occupancy history", logger.Int64("events", n))
	}
}

// History returns the stored events for a stand, newest first
func (s *Service) History(ctx context.Context, stand string, limit int) ([]sqlite.OccupancyEvent, error) {
	if s.storage == nil {
		return nil, ErrHistoryDisabled
	}
	return s.storage.GetStandHistory(ctx, s.cfg.Airport, stand, limit)
}

// Stands returns the underlying registry
func (s *Service) Stands() *stands.Status {
	return s.status
}

func (s *Service) setResult(at time.Time, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetchTime = at
	s.lastFetchStatus = ok
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
}

// ServiceStatus summarises the monitor for the status endpoint
type ServiceStatus struct {
	Airport         string           `json:"airport"`
	Source          string           `json:"source"`
	Running         bool             `json:"running"`
	LastFetchTime   time.Time        `json:"last_fetch_time"`
	LastFetchStatus bool             `json:"last_fetch_status"`
	LastError       string           `json:"last_error,omitempty"`
	StandsLoaded    int              `json:"stands_loaded"`
	Occupied        int              `json:"occupied"`
	Unoccupied      int              `json:"unoccupied"`
	LastCycle       stands.CycleInfo `json:"last_cycle"`
}

// Status returns the service status
func (s *Service) Status() ServiceStatus {
	s.mu.RLock()
	st := ServiceStatus{
		Airport:         s.cfg.Airport,
		Source:          s.source.Describe(),
		Running:         s.started,
		LastFetchTime:   s.lastFetchTime,
		LastFetchStatus: s.lastFetchStatus,
		LastError:       s.lastError,
	}
	s.mu.RUnlock()

	st.StandsLoaded = s.status.Count()
	st.Occupied = len(s.status.OccupiedStands())
	st.Unoccupied = len(s.status.UnoccupiedStands())
	st.LastCycle = s.status.LastCycle()
	return st
}
