// Package app builds the stand matcher components from configuration.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yegors/stand-status/internal/config"
	"github.com/yegors/stand-status/internal/feed"
	"github.com/yegors/stand-status/internal/standdata"
	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/internal/storage/sqlite"
	"github.com/yegors/stand-status/pkg/logger"
)

// NewLogger creates the application logger
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
}

// OpenStorage opens the SQLite database, or returns nil when none is configured
func OpenStorage(cfg *config.Config, log *logger.Logger) (*sqlite.Storage, error) {
	if cfg.Storage.SQLitePath == "" {
		return nil, nil
	}

	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	storage, err := sqlite.NewStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
	}
	return storage, nil
}

// NewStatus creates the stand registry for the configured airport
func NewStatus(cfg *config.Config, log *logger.Logger) (*stands.Status, error) {
	return stands.NewStatus(cfg.Station.Latitude, cfg.Station.Longitude, cfg.StandOptions(), log)
}

// NewStandSource creates the configured stand source. storage may be nil
// unless the OSM cache is configured as sqlite.
func NewStandSource(cfg *config.Config, storage *sqlite.Storage, log *logger.Logger) (standdata.Source, error) {
	format := cfg.CoordinateFormat()

	switch cfg.Stands.Source {
	case "osm":
		var cache standdata.Cache
		switch cfg.OSM.CacheType {
		case "sqlite":
			if storage == nil {
				return nil, fmt.Errorf("sqlite stand cache requires storage")
			}
			cache = storage.StandCache()
		default:
			fileCache, err := standdata.NewFileCache(cfg.OSM.CacheDir)
			if err != nil {
				return nil, err
			}
			cache = fileCache
		}

		client, err := standdata.NewOSMClient(cfg.Station.AirportCode, standdata.OSMConfig{
			OverpassURL:        cfg.OSM.OverpassURL,
			Timeout:            time.Duration(cfg.OSM.TimeoutSecs) * time.Second,
			CacheTTL:           time.Duration(cfg.OSM.CacheTTLHours) * time.Hour,
			MinRequestInterval: time.Duration(cfg.OSM.MinRequestIntervalSecs) * time.Second,
		}, cache, log)
		if err != nil {
			return nil, err
		}
		return standdata.NewOSMSource(client, format, cfg.Station.Latitude, cfg.Station.Longitude, cfg.OSMSearchRadiusKm())

	default:
		return standdata.NewCSVSource(cfg.Stands.CSVPath, format)
	}
}

// NewFeed creates the configured aircraft feed
func NewFeed(cfg *config.Config, log *logger.Logger) (stands.Feed, error) {
	retry := feed.DefaultRetryConfig()
	retry.MaxRetries = cfg.Feed.MaxRetries

	return feed.New(feed.Config{
		SourceType:         cfg.Feed.SourceType,
		VATSIMURL:          cfg.Feed.VATSIMURL,
		LocalSourceURL:     cfg.Feed.LocalSourceURL,
		Timeout:            time.Duration(cfg.Feed.TimeoutSecs) * time.Second,
		MinRequestInterval: time.Duration(cfg.Feed.MinRequestIntervalSecs) * time.Second,
		Retry:              retry,
	}, log)
}
