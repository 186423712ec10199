package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/pkg/logger"
)

// DefaultVATSIMURL is the public VATSIM v3 data feed
const DefaultVATSIMURL = "https://data.vatsim.net/v3/vatsim-data.json"

// vatsimMinInterval is the update period of the VATSIM feed; polling faster returns the same data
const vatsimMinInterval = 15 * time.Second

// vatsimDataResponse is the part of the v3 data file the stand matcher reads
type vatsimDataResponse struct {
	General struct {
		UpdateTimestamp time.Time `json:"update_timestamp"`
	} `json:"general"`
	Pilots []vatsimPilot `json:"pilots"`
}

type vatsimPilot struct {
	CID         int     `json:"cid"`
	Name        string  `json:"name"`
	Callsign    string  `json:"callsign"`
	Server      string  `json:"server"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"altitude"`
	Groundspeed float64 `json:"groundspeed"`
	Transponder string  `json:"transponder"`
	Heading     float64 `json:"heading"`
	QNHMb       float64 `json:"qnh_mb"`
	FlightPlan  *struct {
		Rules         string `json:"flight_rules"`
		Aircraft      string `json:"aircraft"`
		AircraftShort string `json:"aircraft_short"`
		Departure     string `json:"departure"`
		Arrival       string `json:"arrival"`
		Route         string `json:"route"`
	} `json:"flight_plan"`
	LastUpdated time.Time `json:"last_updated"`
}

// VATSIMClient reads pilot positions from the VATSIM network data feed
type VATSIMClient struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	logger     *logger.Logger
}

// NewVATSIMClient creates a VATSIM feed client. minInterval paces requests and
// is raised to the feed's own 15 second update period.
func NewVATSIMClient(url string, timeout, minInterval time.Duration, retry RetryConfig, log *logger.Logger) *VATSIMClient {
	if url == "" {
		url = DefaultVATSIMURL
	}
	if minInterval < vatsimMinInterval {
		minInterval = vatsimMinInterval
	}
	return &VATSIMClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		retry:      retry,
		logger:     log.Named("feed-vatsim"),
	}
}

// Aircraft fetches the current pilots. Any failure is reported as stands.ErrFeedUnavailable.
func (c *VATSIMClient) Aircraft(ctx context.Context) ([]stands.AircraftData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", stands.ErrFeedUnavailable, err)
	}

	data, err := retryWithBackoff(ctx, c.retry, func() (*vatsimDataResponse, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stands.ErrFeedUnavailable, err)
	}

	aircraft := make([]stands.AircraftData, 0, len(data.Pilots))
	for _, p := range data.Pilots {
		aircraft = append(aircraft, p.toAircraftData())
	}

	c.logger.Debug("Fetched VATSIM pilots",
		logger.Int("pilots", len(aircraft)),
		logger.Time("updated", data.General.UpdateTimestamp),
	)
	return aircraft, nil
}

func (c *VATSIMClient) fetch(ctx context.Context) (*vatsimDataResponse, error) {
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

	var data vatsimDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &data, nil
}

func (p vatsimPilot) toAircraftData() stands.AircraftData {
	extra := map[string]any{
		"cid":          p.CID,
		"name":         p.Name,
		"server":       p.Server,
		"transponder":  p.Transponder,
		"heading":      p.Heading,
		"qnh_mb":       p.QNHMb,
		"last_updated": p.LastUpdated,
	}
	if p.FlightPlan != nil {
		extra["flight_rules"] = p.FlightPlan.Rules
		extra["aircraft"] = p.FlightPlan.Aircraft
		extra["aircraft_short"] = p.FlightPlan.AircraftShort
		extra["departure"] = p.FlightPlan.Departure
		extra["arrival"] = p.FlightPlan.Arrival
		extra["route"] = p.FlightPlan.Route
	}

	return stands.AircraftData{
		Callsign:    p.Callsign,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Altitude:    p.Altitude,
		Groundspeed: p.Groundspeed,
		Extra:       extra,
	}
}
