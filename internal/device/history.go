package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryEntry is one persisted position event.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// EventID is the UUID of the originating event.
	EventID string `json:"event_id"`

	DeviceID  string    `json:"device_id"`
	Component string    `json:"component"`
	Type      EventType `json:"type"`

	// Position is the rotor index (-1 when unknown).
	Position int    `json:"position"`
	Label    string `json:"label,omitempty"`
	Previous string `json:"previous,omitempty"`

	// DurationMS is the move duration in milliseconds (0 for non-moves).
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`

	// CreatedAt is the event timestamp (UTC, second precision).
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves position history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordEvent persists one position event.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - ev: Event to persist; ev.ID must be unique
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordEvent(ctx context.Context, ev Event) error

	// GetHistory returns recent position history for a device.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique device identifier
	//   - component: Component name, or "" for every component
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []HistoryEntry: Ordered newest-first entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, deviceID, component string, limit int) ([]HistoryEntry, error)
}

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a new SQLite history repository.
//
// Parameters:
//   - db: Open SQLite connection with the position_history table migrated
//
// Returns:
//   - *SQLiteHistoryRepository: Repository instance ready for use
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// RecordEvent inserts one position event.
func (r *SQLiteHistoryRepository) RecordEvent(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if ev.DeviceID == "" || ev.Component == "" {
		return fmt.Errorf("device id and component are required")
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO position_history
		 (event_id, device_id, component, event_type, position, label, previous_label, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.DeviceID,
		ev.Component,
		string(ev.Type),
		ev.Position,
		ev.Label,
		ev.Previous,
		ev.Duration.Milliseconds(),
		ev.Error,
		ts.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting position history: %w", err)
	}
	return nil
}

// GetHistory returns recent entries for a device, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Unique device identifier
//   - component: Component name, or "" for all
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []HistoryEntry: History entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, deviceID, component string, limit int) ([]HistoryEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, device_id, component, event_type, position, label,
		        previous_label, duration_ms, error, created_at
		 FROM position_history
		 WHERE device_id = ? AND (? = '' OR component = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		component,
		component,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying position history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var eventType, createdAt string

		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.DeviceID, &entry.Component, &eventType,
			&entry.Position, &entry.Label, &entry.Previous, &entry.DurationMS, &entry.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning position history: %w", err)
		}
		entry.Type = EventType(eventType)

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating position history: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes entries older than the given duration.
//
// Returns the number of rows deleted.
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM position_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting position history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// HistorySink adapts a HistoryRepository to EventSink. Write failures are
// logged and dropped; history is best-effort.
func HistorySink(repo HistoryRepository, logger Logger) EventSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return EventSinkFunc(func(ctx context.Context, ev Event) {
		if err := repo.RecordEvent(ctx, ev); err != nil {
			logger.Warn("failed to record position history", "device_id", ev.DeviceID, "component", ev.Component, "error", err)
		}
	})
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
