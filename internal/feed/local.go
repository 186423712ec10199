package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/pkg/logger"
)

// localAircraftData is a dump1090/tar1090 aircraft.json document
type localAircraftData struct {
	Now      float64       `json:"now"`
	Messages int           `json:"messages"`
	Aircraft []localTarget `json:"aircraft"`
}

type localTarget struct {
	Hex          string        `json:"hex"`
	Flight       string        `json:"flight"`
	Registration string        `json:"r,omitempty"`
	AircraftType string        `json:"t,omitempty"`
	AltBaro      FlexibleField `json:"alt_baro"`
	GS           *float64      `json:"gs"`
	Track        *float64      `json:"track"`
	Squawk       string        `json:"squawk"`
	Category     string        `json:"category"`
	Lat          *float64      `json:"lat"`
	Lon          *float64      `json:"lon"`
	Seen         float64       `json:"seen"`
}

// LocalClient reads aircraft from a local ADS-B receiver
type LocalClient struct {
	url        string
	httpClient *http.Client
	retry      RetryConfig
	logger     *logger.Logger
}

// NewLocalClient creates a client for a receiver's aircraft.json URL
func NewLocalClient(url string, timeout time.Duration, retry RetryConfig, log *logger.Logger) *LocalClient {
	return &LocalClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     log.Named("feed-local"),
	}
}

// Aircraft fetches the receiver's current targets. Targets missing a position,
// a ground speed or a barometric altitude are skipped.
func (c *LocalClient) Aircraft(ctx context.Context) ([]stands.AircraftData, error) {
	data, err := retryWithBackoff(ctx, c.retry, func() (*localAircraftData, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stands.ErrFeedUnavailable, err)
	}

	aircraft := make([]stands.AircraftData, 0, len(data.Aircraft))
	for _, t := range data.Aircraft {
		if a, ok := t.toAircraftData(); ok {
			aircraft = append(aircraft, a)
		}
	}

	c.logger.Debug("Fetched local ADS-B data",
		logger.Int("targets", len(data.Aircraft)),
		logger.Int("usable", len(aircraft)),
		logger.Int("message_count", data.Messages),
	)
	return aircraft, nil
}

func (c *LocalClient) fetch(ctx context.Context) (*localAircraftData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}

	var data localAircraftData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &data, nil
}

func (t localTarget) toAircraftData() (stands.AircraftData, bool) {
	if t.Lat == nil || t.Lon == nil || t.GS == nil {
		return stands.AircraftData{}, false
	}
	altitude, ok := t.AltBaro.Float64()
	if !ok {
		return stands.AircraftData{}, false
	}

	hex := strings.ToUpper(strings.TrimSpace(t.Hex))
	callsign := strings.TrimSpace(t.Flight)
	if callsign == "" {
		callsign = hex
	}

	extra := map[string]any{
		"hex":       hex,
		"on_ground": t.AltBaro.IsGround(),
		"seen":      t.Seen,
	}
	if t.Squawk != "" {
		extra["transponder"] = t.Squawk
	}
	if t.Registration != "" {
		extra["registration"] = t.Registration
	}
	if t.AircraftType != "" {
		extra["aircraft_short"] = t.AircraftType
	}
	if t.Category != "" {
		extra["category"] = t.Category
	}
	if t.Track != nil {
		extra["heading"] = *t.Track
	}

	return stands.AircraftData{
		Callsign:    callsign,
		Latitude:    *t.Lat,
		Longitude:   *t.Lon,
		Altitude:    altitude,
		Groundspeed: *t.GS,
		Extra:       extra,
	}, true
}
