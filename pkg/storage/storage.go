// Package storage persists normalized records, match documents and the
// scrape log in sqlite or Postgres.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fbscope/fbscope/pkg/dataset"
	"github.com/fbscope/fbscope/pkg/match"
	_ "modernc.org/sqlite"
)

// DB is the sqlite sink.
type DB struct {
	sql *sql.DB
}

var _ Sink = (*DB)(nil)

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS stat_records (
  id             INTEGER PRIMARY KEY,
  record_id      TEXT NOT NULL,
  competition_id TEXT NOT NULL,
  season_id      TEXT NOT NULL,
  entity_id      TEXT NOT NULL,
  category       TEXT NOT NULL,
  data           TEXT NOT NULL,
  first_seen_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_seen_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(competition_id, season_id, entity_id, category)
);
CREATE INDEX IF NOT EXISTS idx_records_category ON stat_records(competition_id, season_id, category);
CREATE TABLE IF NOT EXISTS match_documents (
  match_id    TEXT PRIMARY KEY,
  competition TEXT,
  partial     INTEGER NOT NULL DEFAULT 0 CHECK (partial IN (0,1)),
  data        TEXT NOT NULL,
  scraped_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS scrape_log (
  id          INTEGER PRIMARY KEY,
  occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  target      TEXT NOT NULL,
  kind        TEXT NOT NULL,
  status      TEXT NOT NULL CHECK (status IN ('ok','partial','failed')),
  attempts    INTEGER NOT NULL DEFAULT 0,
  message     TEXT
);
CREATE INDEX IF NOT EXISTS idx_log_time ON scrape_log(occurred_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveDataset upserts every record of ds in one transaction and reports
// whether each one was added, updated or unchanged.
func (d *DB) SaveDataset(ctx context.Context, ds *dataset.Dataset) ([]Change, error) {
	now := time.Now().UTC()
	groups := groupOf(ds)

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	changes := make([]Change, 0, ds.Len())
	for _, r := range ds.Records() {
		k := r.Key()
		var data string
		data, err = payload(r)
		if err != nil {
			return nil, err
		}

		var recordID, existing string
		err = tx.QueryRowContext(ctx, `SELECT record_id, data FROM stat_records WHERE competition_id = ? AND season_id = ? AND entity_id = ? AND category = ?`,
			k.CompetitionID, k.SeasonID, k.EntityID, k.Category).Scan(&recordID, &existing)

		c := Change{OccurredAt: now, Key: k, Group: groups[k]}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.RecordID, c.ChangeType = r.RecordID(), ChangeAdded
			_, err = tx.ExecContext(ctx, `INSERT INTO stat_records(record_id, competition_id, season_id, entity_id, category, data, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)`,
				c.RecordID, k.CompetitionID, k.SeasonID, k.EntityID, k.Category, data)
		case err != nil:
			return nil, err
		case existing != data:
			c.RecordID, c.ChangeType = recordID, ChangeUpdated
			_, err = tx.ExecContext(ctx, `UPDATE stat_records SET data = ?, last_seen_at = CURRENT_TIMESTAMP WHERE competition_id = ? AND season_id = ? AND entity_id = ? AND category = ?`,
				data, k.CompetitionID, k.SeasonID, k.EntityID, k.Category)
		default:
			c.RecordID, c.ChangeType = recordID, ChangeUnchanged
			_, err = tx.ExecContext(ctx, `UPDATE stat_records SET last_seen_at = CURRENT_TIMESTAMP WHERE competition_id = ? AND season_id = ? AND entity_id = ? AND category = ?`,
				k.CompetitionID, k.SeasonID, k.EntityID, k.Category)
		}
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

// SaveMatch stores the whole match document, replacing an earlier one.
func (d *DB) SaveMatch(ctx context.Context, rec *match.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal match %s: %w", rec.MatchID, err)
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO match_documents(match_id, competition, partial, data, scraped_at) VALUES(?,?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(match_id) DO UPDATE SET competition = excluded.competition, partial = excluded.partial, data = excluded.data, scraped_at = CURRENT_TIMESTAMP`,
		rec.MatchID, nullIfEmpty(rec.Competition), boolToInt(rec.Partial()), string(data))
	return err
}

// GetMatch returns the stored JSON document of a match.
func (d *DB) GetMatch(ctx context.Context, matchID string) (string, error) {
	var data string
	err := d.sql.QueryRowContext(ctx, `SELECT data FROM match_documents WHERE match_id = ?`, matchID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	return data, err
}

// LogTarget appends one scrape log line. A zero OccurredAt is stamped with
// the current time.
func (d *DB) LogTarget(ctx context.Context, e LogEntry) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO scrape_log(occurred_at, target, kind, status, attempts, message) VALUES(?,?,?,?,?,?)`,
		occurredAt(e).Format(time.DateTime), e.Target, e.Kind, e.Status, e.Attempts, nullIfEmpty(e.Message))
	return err
}

// ListLog returns the most recent scrape log lines, newest first.
func (d *DB) ListLog(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT occurred_at, target, kind, status, attempts, message FROM scrape_log ORDER BY occurred_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		var occurredAtStr string
		var msg sql.NullString
		if err := rows.Scan(&occurredAtStr, &e.Target, &e.Kind, &e.Status, &e.Attempts, &msg); err != nil {
			return nil, err
		}
		e.OccurredAt = parseTimestamp(occurredAtStr)
		e.Message = msg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *DB) ListRecords(ctx context.Context, opts ListOptions) ([]StoredRecord, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.CompetitionID != "" {
		where += " AND competition_id = ?"
		args = append(args, opts.CompetitionID)
	}
	if opts.SeasonID != "" {
		where += " AND season_id = ?"
		args = append(args, opts.SeasonID)
	}
	if opts.Category != "" {
		where += " AND category = ?"
		args = append(args, opts.Category)
	}
	if opts.EntityID != "" {
		where += " AND entity_id = ?"
		args = append(args, opts.EntityID)
	}
	q := "SELECT record_id, competition_id, season_id, entity_id, category, data, first_seen_at, last_seen_at FROM stat_records " + where + " ORDER BY competition_id, season_id, category, id"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredRecord
	for rows.Next() {
		var r StoredRecord
		var first, last string
		if err := rows.Scan(&r.RecordID, &r.Key.CompetitionID, &r.Key.SeasonID, &r.Key.EntityID, &r.Key.Category, &r.Data, &first, &last); err != nil {
			return nil, err
		}
		r.FirstSeenAt = parseTimestamp(first)
		r.LastSeenAt = parseTimestamp(last)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) Stats(ctx context.Context) ([]CategoryStats, error) {
	query := `
		SELECT
			competition_id,
			season_id,
			category,
			COUNT(*),
			MAX(last_seen_at)
		FROM
			stat_records
		GROUP BY
			competition_id, season_id, category
		ORDER BY
			competition_id, season_id, category;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CategoryStats
	for rows.Next() {
		var s CategoryStats
		var last string
		if err := rows.Scan(&s.CompetitionID, &s.SeasonID, &s.Category, &s.Records, &last); err != nil {
			return nil, err
		}
		s.LastSeenAt = parseTimestamp(last)
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// parseTimestamp reads sqlite CURRENT_TIMESTAMP values, falling back to
// RFC3339.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func occurredAt(e LogEntry) time.Time {
	if e.OccurredAt.IsZero() {
		return time.Now().UTC()
	}
	return e.OccurredAt.UTC()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
