package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/stand-status/internal/coordinates"
	"github.com/yegors/stand-status/internal/geo"
	"github.com/yegors/stand-status/internal/stands"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // HTTP server settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Station StationConfig `toml:"station"` // Airport reference point
	Stands  StandsConfig  `toml:"stands"`  // Stand source and matching settings
	Filter  FilterConfig  `toml:"filter"`  // Candidate aircraft filter
	Feed    FeedConfig    `toml:"feed"`    // Aircraft feed settings
	OSM     OSMConfig     `toml:"osm"`     // OpenStreetMap stand source settings
	Storage StorageConfig `toml:"storage"` // Data persistence settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // Primary HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts  []int  `toml:"additional_ports"`      // Additional HTTP ports to listen on
	StaticFilesDir   string `toml:"static_files_dir"`      // Optional directory with a dashboard to serve at /
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional log file, rotated by size
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate the log file after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Number of rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
	Compress   bool   `toml:"compress"`     // Gzip rotated files
}

// StationConfig contains the airport the stands belong to
type StationConfig struct {
	AirportCode    string  `toml:"airport_code"`     // ICAO code of the airport (e.g., "EGKK")
	Latitude       float64 `toml:"latitude"`         // Airport reference point latitude in decimal degrees
	Longitude      float64 `toml:"longitude"`        // Airport reference point longitude in decimal degrees
	ElevationFeet  int     `toml:"elevation_feet"`   // Airport elevation, used for magnetic variation
	AirportsDBPath string  `toml:"airports_db_path"` // Optional OurAirports CSV; when set, the position is looked up by airport_code
}

// StandsConfig contains the stand source and matching settings
type StandsConfig struct {
	Source                     string   `toml:"source"`                         // "csv" or "osm"
	CSVPath                    string   `toml:"csv_path"`                       // Stand CSV file (source = "csv")
	CoordinateFormat           string   `toml:"coordinate_format"`              // "decimal" or "caa"
	MaxStandDistanceKm         float64  `toml:"max_stand_distance_km"`          // An aircraft must be closer than this to a stand (default: 0.07)
	HideStandSidesWhenOccupied *bool    `toml:"hide_stand_sides_when_occupied"` // Hide group members of occupied stands (default: true)
	Extensions                 []string `toml:"extensions"`                     // Side tokens (default: L C R A B N E S W)
	ExtensionPattern           string   `toml:"extension_pattern"`              // Naming template (default: "<standroot><extensions>")
}

// FilterConfig contains the thresholds an aircraft must meet to be matched
type FilterConfig struct {
	MaxDistanceFromAirportKm  float64 `toml:"max_distance_from_airport_km"` // default: 2
	MaxAircraftAltitudeFt     float64 `toml:"max_aircraft_altitude_ft"`     // default: 3000
	MaxAircraftGroundspeedKts float64 `toml:"max_aircraft_groundspeed_kts"` // default: 10
}

// FeedConfig contains aircraft feed configuration
type FeedConfig struct {
	SourceType             string `toml:"source_type"`                  // "vatsim" or "local"
	VATSIMURL              string `toml:"vatsim_url"`                   // VATSIM v3 data URL (default: public feed)
	LocalSourceURL         string `toml:"local_source_url"`             // tar1090 aircraft.json URL (source_type = "local")
	FetchIntervalSecs      int    `toml:"fetch_interval_seconds"`       // Time between cycles (default: 60)
	TimeoutSecs            int    `toml:"timeout_seconds"`              // HTTP timeout (default: 10)
	MinRequestIntervalSecs int    `toml:"min_request_interval_seconds"` // Minimum time between VATSIM requests (default: 15)
	MaxRetries             int    `toml:"max_retries"`                  // Retries after a failed request (default: 2)
}

// OSMConfig contains OpenStreetMap Overpass settings
type OSMConfig struct {
	OverpassURL            string  `toml:"overpass_url"`                 // Overpass interpreter URL
	TimeoutSecs            int     `toml:"timeout_seconds"`              // Overpass query timeout (default: 25)
	CacheType              string  `toml:"cache_type"`                   // "sqlite" or "file"
	CacheDir               string  `toml:"cache_dir"`                    // Directory for the file cache
	CacheTTLHours          int     `toml:"cache_ttl_hours"`              // Cache lifetime (default: 2160 = 90 days)
	RadiusMultiplier       float64 `toml:"radius_multiplier"`            // Search radius = max distance from airport x multiplier (default: 3)
	MinRequestIntervalSecs int     `toml:"min_request_interval_seconds"` // Pacing between Overpass requests (0 = unpaced)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath           string `toml:"sqlite_path"`            // SQLite database file; empty disables history and the sqlite cache
	HistoryLimit         int    `toml:"history_limit"`          // Default number of events per history request
	HistoryRetentionDays int    `toml:"history_retention_days"` // Events older than this are pruned (0 = keep)
}

// Load loads the configuration from a TOML file
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Station.AirportsDBPath != "" {
		if err := config.loadStationFromCSV(); err != nil {
			return nil, fmt.Errorf("failed to load station details from CSV: %w", err)
		}
	}

	return &config, nil
}

// loadStationFromCSV looks the airport up in an OurAirports airports.csv
func (c *Config) loadStationFromCSV() error {
	if c.Station.AirportCode == "" {
		return fmt.Errorf("airport_code is required with airports_db_path")
	}

	file, err := os.Open(c.Station.AirportsDBPath)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		return err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return err
	}

	code := strings.ToUpper(c.Station.AirportCode)
	for _, record := range records {
		// ident (1), latitude_deg (4), longitude_deg (5), elevation_ft (6)
		if len(record) < 7 || record[1] != code {
			continue
		}

		lat, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude in CSV for %s: %w", code, err)
		}
		lon, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude in CSV for %s: %w", code, err)
		}
		c.Station.Latitude = lat
		c.Station.Longitude = lon

		if record[6] != "" {
			if elev, err := strconv.ParseFloat(record[6], 64); err == nil {
				c.Station.ElevationFeet = int(elev)
			}
		}
		return nil
	}

	return fmt.Errorf("airport code %s not found in %s", code, c.Station.AirportsDBPath)
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate fills in defaults and validates the configuration
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if err := c.ValidateStation(); err != nil {
		return err
	}
	if err := c.validateStands(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	c.applyOSMDefaults()

	if c.Storage.HistoryLimit <= 0 {
		c.Storage.HistoryLimit = 50
	}
	if c.Storage.HistoryRetentionDays < 0 {
		return fmt.Errorf("invalid history_retention_days: %d (must be >= 0)", c.Storage.HistoryRetentionDays)
	}
	if c.Stands.Source == "osm" && c.OSM.CacheType == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("osm cache_type sqlite requires storage.sqlite_path")
	}

	// Compile the matching options once so a bad pattern fails at start-up
	if _, err := c.StandOptions().Validate(); err != nil {
		return fmt.Errorf("invalid stand options: %w", err)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	portsSeen := map[int]bool{c.Server.Port: true}
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}
	return nil
}

// ValidateStation checks the airport reference point
func (c *Config) ValidateStation() error {
	c.Station.AirportCode = strings.ToUpper(strings.TrimSpace(c.Station.AirportCode))

	if err := geo.ValidateCoordinatePair(c.Station.Latitude, c.Station.Longitude); err != nil {
		return fmt.Errorf("invalid station position: %w", err)
	}

	// Elevation can be negative, so just check it is within a plausible range
	if c.Station.ElevationFeet < -2000 || c.Station.ElevationFeet > 30000 {
		return fmt.Errorf("station elevation out of typical range: %d ft", c.Station.ElevationFeet)
	}
	return nil
}

func (c *Config) validateStands() error {
	if c.Stands.Source == "" {
		c.Stands.Source = "csv"
	}
	if c.Stands.CoordinateFormat == "" {
		c.Stands.CoordinateFormat = "decimal"
	}

	format, err := coordinates.ParseFormat(c.Stands.CoordinateFormat)
	if err != nil {
		return err
	}

	switch c.Stands.Source {
	case "csv":
		if c.Stands.CSVPath == "" {
			return fmt.Errorf("csv_path is required when stands source is csv")
		}
	case "osm":
		if c.Station.AirportCode == "" {
			return fmt.Errorf("airport_code is required when stands source is osm")
		}
		if format != coordinates.FormatDecimal {
			return fmt.Errorf("%w: osm stand data requires decimal coordinates", coordinates.ErrInvalidCoordinateFormat)
		}
	default:
		return fmt.Errorf("invalid stands source: %s (must be 'csv' or 'osm')", c.Stands.Source)
	}

	defaults := stands.DefaultOptions()
	if c.Stands.MaxStandDistanceKm == 0 {
		c.Stands.MaxStandDistanceKm = defaults.MaxStandDistance
	}
	if c.Stands.HideStandSidesWhenOccupied == nil {
		hide := defaults.HideStandSidesWhenOccupied
		c.Stands.HideStandSidesWhenOccupied = &hide
	}
	if len(c.Stands.Extensions) == 0 {
		c.Stands.Extensions = defaults.StandExtensions
	}
	if c.Stands.ExtensionPattern == "" {
		c.Stands.ExtensionPattern = defaults.StandExtensionPattern
	}

	if c.Filter.MaxDistanceFromAirportKm == 0 {
		c.Filter.MaxDistanceFromAirportKm = defaults.MaxDistanceFromAirport
	}
	if c.Filter.MaxAircraftAltitudeFt == 0 {
		c.Filter.MaxAircraftAltitudeFt = defaults.MaxAircraftAltitude
	}
	if c.Filter.MaxAircraftGroundspeedKts == 0 {
		c.Filter.MaxAircraftGroundspeedKts = defaults.MaxAircraftGroundspeed
	}
	return nil
}

func (c *Config) validateFeed() error {
	if c.Feed.SourceType == "" {
		c.Feed.SourceType = "vatsim"
	}
	switch c.Feed.SourceType {
	case "vatsim":
	case "local":
		if c.Feed.LocalSourceURL == "" {
			return fmt.Errorf("local_source_url is required when source_type is local")
		}
	default:
		return fmt.Errorf("invalid feed source type: %s (must be 'vatsim' or 'local')", c.Feed.SourceType)
	}

	if c.Feed.FetchIntervalSecs <= 0 {
		c.Feed.FetchIntervalSecs = 60
	}
	if c.Feed.TimeoutSecs <= 0 {
		c.Feed.TimeoutSecs = 10
	}
	if c.Feed.MinRequestIntervalSecs <= 0 {
		c.Feed.MinRequestIntervalSecs = 15
	}
	if c.Feed.MaxRetries < 0 {
		return fmt.Errorf("invalid max_retries: %d (must be >= 0)", c.Feed.MaxRetries)
	}
	return nil
}

func (c *Config) applyOSMDefaults() {
	if c.OSM.TimeoutSecs <= 0 {
		c.OSM.TimeoutSecs = 25
	}
	if c.OSM.CacheType == "" {
		c.OSM.CacheType = "file"
		if c.Storage.SQLitePath != "" {
			c.OSM.CacheType = "sqlite"
		}
	}
	if c.OSM.CacheDir == "" {
		c.OSM.CacheDir = "cache"
	}
	if c.OSM.CacheTTLHours <= 0 {
		c.OSM.CacheTTLHours = 90 * 24
	}
	if c.OSM.RadiusMultiplier <= 0 {
		c.OSM.RadiusMultiplier = 3
	}
}

// StandOptions maps the configuration onto the matcher options
func (c *Config) StandOptions() stands.Options {
	opts := stands.DefaultOptions()
	if c.Stands.MaxStandDistanceKm != 0 {
		opts.MaxStandDistance = c.Stands.MaxStandDistanceKm
	}
	if c.Stands.HideStandSidesWhenOccupied != nil {
		opts.HideStandSidesWhenOccupied = *c.Stands.HideStandSidesWhenOccupied
	}
	if len(c.Stands.Extensions) > 0 {
		opts.StandExtensions = c.Stands.Extensions
	}
	if c.Stands.ExtensionPattern != "" {
		opts.StandExtensionPattern = c.Stands.ExtensionPattern
	}
	if c.Filter.MaxDistanceFromAirportKm != 0 {
		opts.MaxDistanceFromAirport = c.Filter.MaxDistanceFromAirportKm
	}
	if c.Filter.MaxAircraftAltitudeFt != 0 {
		opts.MaxAircraftAltitude = c.Filter.MaxAircraftAltitudeFt
	}
	if c.Filter.MaxAircraftGroundspeedKts != 0 {
		opts.MaxAircraftGroundspeed = c.Filter.MaxAircraftGroundspeedKts
	}
	return opts
}

// CoordinateFormat returns the parsed stand coordinate format
func (c *Config) CoordinateFormat() coordinates.Format {
	format, err := coordinates.ParseFormat(c.Stands.CoordinateFormat)
	if err != nil {
		return coordinates.FormatDecimal
	}
	return format
}

// OSMSearchRadiusKm is the Overpass search radius around the airport
func (c *Config) OSMSearchRadiusKm() float64 {
	return c.StandOptions().MaxDistanceFromAirport * c.OSM.RadiusMultiplier
}

// FetchInterval returns the time between cycles
func (c *Config) FetchInterval() time.Duration {
	return time.Duration(c.Feed.FetchIntervalSecs) * time.Second
}

// HistoryRetention returns how long occupancy events are kept, 0 for ever
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Storage.HistoryRetentionDays) * 24 * time.Hour
}
