package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/yegors/stand-status/pkg/logger"
	_ "modernc.org/sqlite"
)

// Storage is the SQLite database behind stand history and the OSM stand cache
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStorage opens (or creates) the database at dbPath
func NewStorage(dbPath string, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []struct {
		stmt string
		name string
	}{
		{"PRAGMA journal_mode=WAL", "journal mode"},
		{"PRAGMA synchronous=NORMAL", "synchronous mode"},
		{"PRAGMA busy_timeout=5000", "busy timeout"},
		{"PRAGMA cache_size=10000", "cache size"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p.name, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS occupancy_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			airport TEXT NOT NULL,
			stand TEXT NOT NULL,
			event TEXT NOT NULL,       -- occupied, vacated or occupier_changed
			callsign TEXT,
			previous_callsign TEXT,
			primary_stand TEXT,        -- stand the occupier is matched to, differs for group members
			timestamp INTEGER NOT NULL   -- unix nanoseconds
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create occupancy_events table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_occupancy_events_stand ON occupancy_events(airport, stand, timestamp)`)
	if err != nil {
		return fmt.Errorf("failed to create index on occupancy_events.stand: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_occupancy_events_callsign ON occupancy_events(callsign)`)
	if err != nil {
		return fmt.Errorf("failed to create index on occupancy_events.callsign: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS osm_stand_cache (
			icao TEXT PRIMARY KEY,
			csv BLOB NOT NULL,
			fetched_at INTEGER NOT NULL  -- unix seconds
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create osm_stand_cache table: %w", err)
	}

	log.Info("Database schema initialized")
	return nil
}
