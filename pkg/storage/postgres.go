package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fbscope/fbscope/pkg/dataset"
	"github.com/fbscope/fbscope/pkg/match"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS stat_records (
  id             BIGSERIAL PRIMARY KEY,
  record_id      TEXT NOT NULL,
  competition_id TEXT NOT NULL,
  season_id      TEXT NOT NULL,
  entity_id      TEXT NOT NULL,
  category       TEXT NOT NULL,
  data           JSONB NOT NULL,
  first_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  last_seen_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE(competition_id, season_id, entity_id, category)
);
CREATE INDEX IF NOT EXISTS idx_records_category ON stat_records(competition_id, season_id, category);
CREATE TABLE IF NOT EXISTS match_documents (
  match_id    TEXT PRIMARY KEY,
  competition TEXT,
  partial     BOOLEAN NOT NULL DEFAULT FALSE,
  data        JSONB NOT NULL,
  scraped_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS scrape_log (
  id          BIGSERIAL PRIMARY KEY,
  occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  target      TEXT NOT NULL,
  kind        TEXT NOT NULL,
  status      TEXT NOT NULL CHECK (status IN ('ok','partial','failed')),
  attempts    INTEGER NOT NULL DEFAULT 0,
  message     TEXT
);
CREATE INDEX IF NOT EXISTS idx_log_time ON scrape_log(occurred_at);
`

// Postgres is the sink for postgres:// DSNs. Payloads are JSONB.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Sink = (*Postgres)(nil)

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// SaveDataset upserts every record in one transaction. Unchanged payloads
// only touch last_seen_at; jsonb equality ignores key order.
func (p *Postgres) SaveDataset(ctx context.Context, ds *dataset.Dataset) ([]Change, error) {
	now := time.Now().UTC()
	groups := groupOf(ds)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changes := make([]Change, 0, ds.Len())
	for _, r := range ds.Records() {
		k := r.Key()
		data, err := payload(r)
		if err != nil {
			return nil, err
		}

		c := Change{OccurredAt: now, Key: k, Group: groups[k]}
		var same bool
		err = tx.QueryRow(ctx, `SELECT record_id, data = $5::jsonb FROM stat_records
WHERE competition_id = $1 AND season_id = $2 AND entity_id = $3 AND category = $4`,
			k.CompetitionID, k.SeasonID, k.EntityID, k.Category, data).Scan(&c.RecordID, &same)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			c.RecordID, c.ChangeType = r.RecordID(), ChangeAdded
			_, err = tx.Exec(ctx, `INSERT INTO stat_records(record_id, competition_id, season_id, entity_id, category, data)
VALUES ($1,$2,$3,$4,$5,$6)`, c.RecordID, k.CompetitionID, k.SeasonID, k.EntityID, k.Category, data)
		case err != nil:
			return nil, err
		case !same:
			c.ChangeType = ChangeUpdated
			_, err = tx.Exec(ctx, `UPDATE stat_records SET data = $5, last_seen_at = NOW()
WHERE competition_id = $1 AND season_id = $2 AND entity_id = $3 AND category = $4`,
				k.CompetitionID, k.SeasonID, k.EntityID, k.Category, data)
		default:
			c.ChangeType = ChangeUnchanged
			_, err = tx.Exec(ctx, `UPDATE stat_records SET last_seen_at = NOW()
WHERE competition_id = $1 AND season_id = $2 AND entity_id = $3 AND category = $4`,
				k.CompetitionID, k.SeasonID, k.EntityID, k.Category)
		}
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return changes, nil
}

func (p *Postgres) SaveMatch(ctx context.Context, rec *match.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal match %s: %w", rec.MatchID, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO match_documents (match_id, competition, partial, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id) DO UPDATE SET
			competition = EXCLUDED.competition,
			partial = EXCLUDED.partial,
			data = EXCLUDED.data,
			scraped_at = NOW()`,
		rec.MatchID, nullIfEmpty(rec.Competition), rec.Partial(), data,
	)
	return err
}

func (p *Postgres) GetMatch(ctx context.Context, matchID string) (string, error) {
	var data string
	err := p.pool.QueryRow(ctx, `SELECT data::text FROM match_documents WHERE match_id = $1`, matchID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	return data, err
}

func (p *Postgres) LogTarget(ctx context.Context, e LogEntry) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO scrape_log (occurred_at, target, kind, status, attempts, message) VALUES ($1,$2,$3,$4,$5,$6)`,
		occurredAt(e), e.Target, e.Kind, e.Status, e.Attempts, nullIfEmpty(e.Message))
	return err
}

func (p *Postgres) ListLog(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `SELECT occurred_at, target, kind, status, attempts, COALESCE(message, '') FROM scrape_log ORDER BY occurred_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.OccurredAt, &e.Target, &e.Kind, &e.Status, &e.Attempts, &e.Message); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *Postgres) ListRecords(ctx context.Context, opts ListOptions) ([]StoredRecord, error) {
	where := "WHERE 1=1"
	args := []any{}
	add := func(col, v string) {
		if v != "" {
			args = append(args, v)
			where += fmt.Sprintf(" AND %s = $%d", col, len(args))
		}
	}
	add("competition_id", opts.CompetitionID)
	add("season_id", opts.SeasonID)
	add("category", opts.Category)
	add("entity_id", opts.EntityID)

	q := "SELECT record_id, competition_id, season_id, entity_id, category, data::text, first_seen_at, last_seen_at FROM stat_records " + where + " ORDER BY competition_id, season_id, category, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredRecord
	for rows.Next() {
		var r StoredRecord
		if err := rows.Scan(&r.RecordID, &r.Key.CompetitionID, &r.Key.SeasonID, &r.Key.EntityID, &r.Key.Category, &r.Data, &r.FirstSeenAt, &r.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Stats(ctx context.Context) ([]CategoryStats, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT competition_id, season_id, category, COUNT(*), MAX(last_seen_at)
		FROM stat_records
		GROUP BY competition_id, season_id, category
		ORDER BY competition_id, season_id, category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CategoryStats
	for rows.Next() {
		var s CategoryStats
		if err := rows.Scan(&s.CompetitionID, &s.SeasonID, &s.Category, &s.Records, &s.LastSeenAt); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
