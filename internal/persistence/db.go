// Package persistence provides the SQLite alert audit store and the
// compressed alert journal. Neither holds simulation state.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/crowdwatch/internal/risk"
)

// DB wraps a SQLite connection for alert and control-event history.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		zone_id INTEGER NOT NULL,
		zone_name TEXT NOT NULL,
		severity TEXT NOT NULL,
		score REAL NOT NULL,
		created_at INTEGER NOT NULL,
		safe_zone_id INTEGER,
		safe_zone_name TEXT NOT NULL DEFAULT '',
		redirect_message TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_zone ON alerts(zone_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type alertRow struct {
	ID              string        `db:"id"`
	ZoneID          int           `db:"zone_id"`
	ZoneName        string        `db:"zone_name"`
	Severity        string        `db:"severity"`
	Score           float64       `db:"score"`
	CreatedAt       int64         `db:"created_at"`
	SafeZoneID      sql.NullInt64 `db:"safe_zone_id"`
	SafeZoneName    string        `db:"safe_zone_name"`
	RedirectMessage string        `db:"redirect_message"`
}

func toRow(a risk.Alert) alertRow {
	r := alertRow{
		ID:              a.ID,
		ZoneID:          a.ZoneID,
		ZoneName:        a.ZoneName,
		Severity:        string(a.Severity),
		Score:           a.Score,
		CreatedAt:       a.CreatedAt.UnixMilli(),
		SafeZoneName:    a.SafeZoneName,
		RedirectMessage: a.RedirectMessage,
	}
	if a.SafeZoneID != nil {
		r.SafeZoneID = sql.NullInt64{Int64: int64(*a.SafeZoneID), Valid: true}
	}
	return r
}

func (r alertRow) alert() risk.Alert {
	a := risk.Alert{
		ID:              r.ID,
		ZoneID:          r.ZoneID,
		ZoneName:        r.ZoneName,
		Severity:        risk.Severity(r.Severity),
		Score:           r.Score,
		CreatedAt:       time.UnixMilli(r.CreatedAt).UTC(),
		SafeZoneName:    r.SafeZoneName,
		RedirectMessage: r.RedirectMessage,
	}
	if r.SafeZoneID.Valid {
		id := int(r.SafeZoneID.Int64)
		a.SafeZoneID = &id
	}
	return a
}

// SaveAlerts appends alerts to the audit history. Re-saving an alert id is a
// no-op.
func (db *DB) SaveAlerts(ctx context.Context, alerts []risk.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range alerts {
		_, err := tx.NamedExecContext(ctx, `INSERT OR IGNORE INTO alerts
			(id, zone_id, zone_name, severity, score, created_at,
			 safe_zone_id, safe_zone_name, redirect_message)
			VALUES (:id, :zone_id, :zone_name, :severity, :score, :created_at,
			 :safe_zone_id, :safe_zone_name, :redirect_message)`, toRow(a))
		if err != nil {
			return fmt.Errorf("insert alert %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// Record implements the monitor's alert sink.
func (db *DB) Record(ctx context.Context, alerts []risk.Alert) error {
	return db.SaveAlerts(ctx, alerts)
}

// RecentAlerts returns the most recent N alerts, newest first.
func (db *DB) RecentAlerts(ctx context.Context, limit int) ([]risk.Alert, error) {
	var rows []alertRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM alerts ORDER BY created_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]risk.Alert, len(rows))
	for i, r := range rows {
		out[i] = r.alert()
	}
	return out, nil
}

// AlertCounts returns the number of stored alerts per zone id.
func (db *DB) AlertCounts(ctx context.Context) (map[int]int, error) {
	var rows []struct {
		ZoneID int `db:"zone_id"`
		N      int `db:"n"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT zone_id, COUNT(*) AS n FROM alerts GROUP BY zone_id"); err != nil {
		return nil, err
	}
	out := make(map[int]int, len(rows))
	for _, r := range rows {
		out[r.ZoneID] = r.N
	}
	return out, nil
}

// Event is an operator action recorded for audit.
type Event struct {
	At          time.Time `json:"at"`
	Category    string    `json:"category"` // "control", "stampede", "monitor"
	Description string    `json:"description"`
}

// SaveEvent appends one operator event.
func (db *DB) SaveEvent(ctx context.Context, e Event) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO events (at, category, description) VALUES (?, ?, ?)",
		e.At.UnixMilli(), e.Category, e.Description,
	)
	return err
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	var rows []struct {
		At          int64  `db:"at"`
		Category    string `db:"category"`
		Description string `db:"description"`
	}
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT at, category, description FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]Event, len(rows))
	for i, r := range rows {
		out[i] = Event{At: time.UnixMilli(r.At).UTC(), Category: r.Category, Description: r.Description}
	}
	return out, nil
}

// SaveMeta stores a key-value pair describing the current run.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a run metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// SaveRunInfo records the parameters of the run that is starting.
func (db *DB) SaveRunInfo(seed int64, population int, started time.Time) error {
	meta := map[string]string{
		"seed":       fmt.Sprintf("%d", seed),
		"population": fmt.Sprintf("%d", population),
		"started_at": started.UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}
	slog.Info("run recorded", "seed", seed, "population", population)
	return nil
}
