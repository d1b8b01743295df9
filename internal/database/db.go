package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jgoulah/watersync/pkg/models"
)

// DB wraps the database connection. It implements the statistics store
// contract: cursor lookup returns the last recorded point of a series and
// Append applies a whole batch in one transaction.
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS statistics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		statistic_id TEXT NOT NULL,
		start_ts INTEGER NOT NULL,
		state REAL NOT NULL,
		sum REAL NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(statistic_id, start_ts)
	);
	CREATE INDEX IF NOT EXISTS idx_statistics_series ON statistics(statistic_id);
	CREATE INDEX IF NOT EXISTS idx_statistics_start ON statistics(start_ts);
	CREATE INDEX IF NOT EXISTS idx_statistics_published ON statistics(published);

	CREATE TABLE IF NOT EXISTS statistics_meta (
		statistic_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source TEXT NOT NULL,
		unit TEXT NOT NULL,
		has_sum INTEGER NOT NULL,
		has_mean INTEGER NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// GetCursor returns the last recorded point for a series as a sync
// cursor. A series with no points yields a zero cursor.
func (db *DB) GetCursor(statisticID string) (models.SyncCursor, error) {
	query := `
	SELECT start_ts, sum
	FROM statistics
	WHERE statistic_id = ?
	ORDER BY start_ts DESC
	LIMIT 1
	`

	var ts int64
	var sum float64
	err := db.conn.QueryRow(query, statisticID).Scan(&ts, &sum)
	if err == sql.ErrNoRows {
		return models.SyncCursor{}, nil
	}
	if err != nil {
		return models.SyncCursor{}, fmt.Errorf("querying cursor: %w", err)
	}

	return models.SyncCursor{
		LastTimestamp: time.Unix(ts, 0).UTC(),
		LastSum:       sum,
	}, nil
}

// Append inserts a batch of statistic points and upserts the series
// metadata inside a single transaction, so a reader of the cursor never
// observes a partially applied batch.
func (db *DB) Append(meta models.StatisticsMetadata, points []models.StatisticPoint) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO statistics_meta (statistic_id, name, source, unit, has_sum, has_mean)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(statistic_id) DO UPDATE SET
		name = excluded.name, source = excluded.source, unit = excluded.unit,
		has_sum = excluded.has_sum, has_mean = excluded.has_mean
	`, meta.StatisticID, meta.Name, meta.Source, meta.Unit, boolToInt(meta.HasSum), boolToInt(meta.HasMean))
	if err != nil {
		return fmt.Errorf("upserting metadata: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT OR IGNORE INTO statistics (statistic_id, start_ts, state, sum, created_at)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, p := range points {
		if _, err := stmt.Exec(meta.StatisticID, p.Start.Unix(), p.State, p.Sum, createdAt); err != nil {
			return fmt.Errorf("inserting point at %s: %w", p.Start, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}

	return nil
}

// ListStatistics retrieves the most recent points for a series, newest
// first. A limit of 0 returns everything.
func (db *DB) ListStatistics(statisticID string, limit int) ([]models.StatisticPoint, error) {
	query := `
	SELECT start_ts, state, sum
	FROM statistics
	WHERE statistic_id = ?
	ORDER BY start_ts DESC
	`
	args := []interface{}{statisticID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying statistics: %w", err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

// ListUnpublished retrieves points not yet pushed to Home Assistant,
// oldest first so backfill arrives in order
func (db *DB) ListUnpublished(statisticID string) ([]models.StatisticPoint, error) {
	query := `
	SELECT start_ts, state, sum
	FROM statistics
	WHERE statistic_id = ? AND published = 0
	ORDER BY start_ts ASC
	`

	rows, err := db.conn.Query(query, statisticID)
	if err != nil {
		return nil, fmt.Errorf("querying unpublished statistics: %w", err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

// MarkPublished marks a point as pushed to Home Assistant
func (db *DB) MarkPublished(statisticID string, start time.Time) error {
	query := `UPDATE statistics SET published = 1 WHERE statistic_id = ? AND start_ts = ?`
	if _, err := db.conn.Exec(query, statisticID, start.Unix()); err != nil {
		return fmt.Errorf("marking point as published: %w", err)
	}
	return nil
}

func scanPoints(rows *sql.Rows) ([]models.StatisticPoint, error) {
	var results []models.StatisticPoint
	for rows.Next() {
		var ts int64
		var p models.StatisticPoint
		if err := rows.Scan(&ts, &p.State, &p.Sum); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		p.Start = time.Unix(ts, 0).UTC()
		results = append(results, p)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
