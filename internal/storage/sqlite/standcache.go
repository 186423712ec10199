package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StandCache keeps processed OSM stand CSV in the osm_stand_cache table
type StandCache struct {
	storage *Storage
	now     func() time.Time
}

// StandCache returns the OSM stand cache backed by this database
func (s *Storage) StandCache() *StandCache {
	return &StandCache{storage: s, now: time.Now}
}

// Get returns the cached CSV when it was fetched less than maxAge ago
func (c *StandCache) Get(ctx context.Context, icao string, maxAge time.Duration) ([]byte, bool, error) {
	var csv []byte
	var fetchedAt int64
	err := c.storage.db.QueryRowContext(ctx,
		`SELECT csv, fetched_at FROM osm_stand_cache WHERE icao = ?`, icao,
	).Scan(&csv, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query stand cache: %w", err)
	}

	if c.now().Sub(time.Unix(fetchedAt, 0)) >= maxAge {
		return nil, false, nil
	}
	return csv, true, nil
}

// Put stores or replaces the CSV for an airport
func (c *StandCache) Put(ctx context.Context, icao string, csv []byte) error {
	_, err := c.storage.db.ExecContext(ctx, `
		INSERT INTO osm_stand_cache (icao, csv, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(icao) DO UPDATE SET csv = excluded.csv, fetched_at = excluded.fetched_at
	`, icao, csv, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store stand cache: %w", err)
	}
	return nil
}

// Delete removes the entry for an airport
func (c *StandCache) Delete(ctx context.Context, icao string) (bool, error) {
	result, err := c.storage.db.ExecContext(ctx, `DELETE FROM osm_stand_cache WHERE icao = ?`, icao)
	if err != nil {
		return false, fmt.Errorf("failed to delete stand cache: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete stand cache: %w", err)
	}
	return n > 0, nil
}
