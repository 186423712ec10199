package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/yegors/stand-status/pkg/logger"
)

// Occupancy event kinds
const (
	EventOccupied        = "occupied"
	EventVacated         = "vacated"
	EventOccupierChanged = "occupier_changed"
)

// OccupancyEvent is one change of a stand's occupier between two cycles
type OccupancyEvent struct {
	ID               int64     `json:"id"`
	Airport          string    `json:"airport"`
	Stand            string    `json:"stand"`
	Event            string    `json:"event"`
	Callsign         string    `json:"callsign,omitempty"`
	PreviousCallsign string    `json:"previous_callsign,omitempty"`
	PrimaryStand     string    `json:"primary_stand,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// InsertOccupancyEvents stores a cycle's events in one transaction
func (s *Storage) InsertOccupancyEvents(ctx context.Context, events []OccupancyEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO occupancy_events (airport, stand, event, callsign, previous_callsign, primary_stand, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.ExecContext(ctx,
			e.Airport,
			e.Stand,
			e.Event,
			e.Callsign,
			e.PreviousCallsign,
			e.PrimaryStand,
			e.Timestamp.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert occupancy event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("Stored occupancy events", logger.Int("count", len(events)))
	return nil
}

// GetStandHistory returns the newest events for a stand, newest first
func (s *Storage) GetStandHistory(ctx context.Context, airport, stand string, limit int) ([]OccupancyEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, airport, stand, event, callsign, previous_callsign, primary_stand, timestamp
		FROM occupancy_events
		WHERE airport = ? AND stand = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, airport, stand, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stand history: %w", err)
	}
	defer rows.Close()

	events := []OccupancyEvent{}
	for rows.Next() {
		var e OccupancyEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.Airport, &e.Stand, &e.Event, &e.Callsign, &e.PreviousCallsign, &e.PrimaryStand, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan occupancy event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read occupancy events: %w", err)
	}

	return events, nil
}

// PruneOccupancyEvents deletes events older than the cutoff
func (s *Storage) PruneOccupancyEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM occupancy_events WHERE timestamp < ?`,
		before.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune occupancy events: %w", err)
	}
	return result.RowsAffected()
}
