package standdata

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yegors/stand-status/internal/coordinates"
	"github.com/yegors/stand-status/internal/geo"
	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/pkg/logger"
)

// Defaults for the Overpass client
const (
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"
	DefaultOSMTimeout  = 25 * time.Second
	DefaultOSMCacheTTL = 90 * 24 * time.Hour

	// Attribution carried in the header of every OSM derived stand file
	Attribution = "This data was extracted from the OpenStreetMap API and is licensed under the ODbL license. Its use must be attributed"
)

// OSMConfig holds Overpass client settings; zero values fall back to the defaults
type OSMConfig struct {
	OverpassURL        string
	Timeout            time.Duration // server side query timeout, the HTTP timeout adds a margin
	CacheTTL           time.Duration
	MinRequestInterval time.Duration // pacing between Overpass requests
}

// OSMClient fetches parking positions for one airport from the Overpass API
type OSMClient struct {
	icao        string
	overpassURL string
	timeout     time.Duration
	cacheTTL    time.Duration
	httpClient  *http.Client
	cache       Cache
	limiter     *rate.Limiter
	logger      *logger.Logger
}

// NewOSMClient creates a client for the given airport. The ICAO code must be four letters.
func NewOSMClient(icao string, cfg OSMConfig, cache Cache, log *logger.Logger) (*OSMClient, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if !validICAO(icao) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidICAOCode, icao)
	}

	if cfg.OverpassURL == "" {
		cfg.OverpassURL = DefaultOverpassURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOSMTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultOSMCacheTTL
	}

	limit := rate.Inf
	if cfg.MinRequestInterval > 0 {
		limit = rate.Every(cfg.MinRequestInterval)
	}

	c := &OSMClient{
		icao:        icao,
		overpassURL: cfg.OverpassURL,
		cacheTTL:    cfg.CacheTTL,
		cache:       cache,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      log.Named("osm"),
	}
	c.SetTimeout(cfg.Timeout)
	return c, nil
}

func validICAO(icao string) bool {
	if len(icao) != 4 {
		return false
	}
	for _, r := range icao {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ICAO returns the airport code the client fetches for
func (c *OSMClient) ICAO() string {
	return c.icao
}

// SetTimeout changes the Overpass query timeout
func (c *OSMClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
	c.httpClient = &http.Client{Timeout: timeout + 5*time.Second}
}

// SetCacheTTL changes how long fetched data is reused
func (c *OSMClient) SetCacheTTL(ttl time.Duration) {
	c.cacheTTL = ttl
}

// Query builds the Overpass QL query for parking positions inside the airport's
// aerodrome area, limited to a box around the given centre.
func (c *OSMClient) Query(lat, lon, radiusKm float64) string {
	box := geo.BoxAround(lat, lon, radiusKm)

	return fmt.Sprintf(`[bbox:%v,%v,%v,%v]
[out:csv(ref,name,::type,::lat,::lon;true;",")][timeout:%d];
(
  nwr[aeroway=aerodrome][icao="%s"];
);
map_to_area;
nwr[aeroway=parking_position][~"^name|ref?$"~"."](area);
out tags center;`,
		box.South, box.West, box.North, box.East,
		int(c.timeout/time.Second), c.icao)
}

// FetchStandData returns the stand CSV for the airport, from cache when fresh,
// otherwise from the Overpass API. The result has an id,latitude,longitude header.
func (c *OSMClient) FetchStandData(ctx context.Context, lat, lon, radiusKm float64) ([]byte, error) {
	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, c.icao, c.cacheTTL)
		if err != nil {
			c.logger.Warn("Failed to read OSM stand cache", logger.String("icao", c.icao), logger.Error(err))
		} else if ok {
			c.logger.Debug("Using cached OSM stand data", logger.String("icao", c.icao))
			return data, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed waiting for overpass rate limit: %w", err)
	}

	body, err := c.fetch(ctx, c.Query(lat, lon, radiusKm))
	if err != nil {
		return nil, err
	}

	data, err := ParseOverpassCSV(body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, c.icao, data); err != nil {
			c.logger.Warn("Failed to store OSM stand cache", logger.String("icao", c.icao), logger.Error(err))
		}
	}

	return data, nil
}

func (c *OSMClient) fetch(ctx context.Context, query string) ([]byte, error) {
	reqURL := c.overpassURL + "?" + url.Values{"data": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Info("Fetching stand data from OpenStreetMap", logger.String("icao", c.icao))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query overpass: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from overpass: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read overpass response: %w", err)
	}
	return body, nil
}

// Stands fetches the stand data and parses it into stand rows
func (c *OSMClient) Stands(ctx context.Context, lat, lon, radiusKm float64) ([]stands.StandData, error) {
	data, err := c.FetchStandData(ctx, lat, lon, radiusKm)
	if err != nil {
		return nil, err
	}
	return LoadCSV(bytes.NewReader(data), coordinates.Decimal{})
}

// DeleteCachedData removes the cached stand data and reports whether there was any
func (c *OSMClient) DeleteCachedData(ctx context.Context) (bool, error) {
	if c.cache == nil {
		return false, nil
	}
	return c.cache.Delete(ctx, c.icao)
}

type osmStand struct {
	id       string
	lat, lon string
	removed  bool
}

// ParseOverpassCSV turns an Overpass ref,name,type,lat,lon response into stand CSV.
// The stand id is the ref tag, or the name when there is no ref. When an id repeats,
// a distinct unused name is used instead; failing that, nodes win over ways and relations.
func ParseOverpassCSV(body []byte) ([]byte, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: overpass response: %v", ErrUnableToParseStandData, err)
	}

	var list []*osmStand
	used := make(map[string]*osmStand)

	for i, row := range records {
		// Header line
		if i == 0 {
			continue
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: overpass row %d has %d fields", ErrUnableToParseStandData, i+1, len(row))
		}

		ref, name, featureType := strings.TrimSpace(row[0]), strings.TrimSpace(row[1]), row[2]
		if ref == "" {
			ref = name
		}
		if ref == "" {
			continue
		}

		if existing, dup := used[ref]; dup {
			if name == "" || name == ref || used[name] != nil {
				if featureType != "node" {
					continue
				}
				existing.removed = true
				delete(used, ref)
			} else {
				ref = name
			}
		}

		entry := &osmStand{id: ref, lat: row[3], lon: row[4]}
		list = append(list, entry)
		used[ref] = entry
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "latitude", "longitude", Attribution}); err != nil {
		return nil, err
	}
	for _, s := range list {
		if s.removed {
			continue
		}
		if err := w.Write([]string{s.id, s.lat, s.lon}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write stand csv: %w", err)
	}

	return buf.Bytes(), nil
}
