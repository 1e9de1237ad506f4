package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fbscope/fbscope/pkg/dataset"
	"github.com/fbscope/fbscope/pkg/match"
	"github.com/tidwall/gjson"
)

// ErrNotFound is returned by GetMatch for unknown matches.
var ErrNotFound = errors.New("not found")

// Change types reported by SaveDataset.
const (
	ChangeAdded     = "added"
	ChangeUpdated   = "updated"
	ChangeUnchanged = "unchanged"
)

// Scrape log statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Change captures what happened to one record on save.
type Change struct {
	OccurredAt time.Time
	Key        dataset.Key
	RecordID   string
	Group      string
	ChangeType string // added | updated | unchanged
}

// LogEntry is one line of the per target scrape log.
type LogEntry struct {
	OccurredAt time.Time
	Target     string
	Kind       string
	Status     string // ok | partial | failed
	Attempts   int
	Message    string
}

// StoredRecord is a record as persisted: its key plus the JSON payload.
type StoredRecord struct {
	RecordID    string
	Key         dataset.Key
	Data        string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// Field extracts a value from the payload with a gjson path such as
// "values.goals" or "wins".
func (r StoredRecord) Field(path string) gjson.Result {
	return gjson.Get(r.Data, path)
}

// CategoryStats counts stored records per competition, season and category.
type CategoryStats struct {
	CompetitionID string
	SeasonID      string
	Category      string
	Records       int
	LastSeenAt    time.Time
}

// ListOptions controls selection when listing records. Empty fields match
// everything.
type ListOptions struct {
	CompetitionID string
	SeasonID      string
	Category      string
	EntityID      string
	Limit         int
}

// Sink persists scrape output. Saves are idempotent upserts keyed by
// (competition, season, entity id, category); the last write wins.
type Sink interface {
	SaveDataset(ctx context.Context, ds *dataset.Dataset) ([]Change, error)
	SaveMatch(ctx context.Context, rec *match.Record) error
	LogTarget(ctx context.Context, e LogEntry) error
	Stats(ctx context.Context) ([]CategoryStats, error)
	ListRecords(ctx context.Context, opts ListOptions) ([]StoredRecord, error)
	ListLog(ctx context.Context, limit int) ([]LogEntry, error)
	GetMatch(ctx context.Context, matchID string) (string, error)
	Close() error
}

// CountChanges tallies changes by type.
func CountChanges(changes []Change) map[string]int {
	out := map[string]int{}
	for _, c := range changes {
		out[c.ChangeType]++
	}
	return out
}
