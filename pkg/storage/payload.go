package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fbscope/fbscope/pkg/dataset"
)

// payload returns the canonical JSON of a record without its id, so that
// the same data scraped twice compares equal.
func payload(r dataset.Record) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal record %s: %w", r.Key(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("record %s is not a JSON object: %w", r.Key(), err)
	}
	delete(m, "id")
	out, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func groupOf(ds *dataset.Dataset) map[dataset.Key]string {
	out := make(map[dataset.Key]string, ds.Len())
	for _, g := range ds.Groups {
		for _, r := range g.Records {
			out[r.Key()] = g.Name
		}
	}
	return out
}

// OpenSink picks the sink from the DSN: postgres:// and postgresql:// URLs
// open a Postgres pool, anything else is a sqlite file path.
func OpenSink(ctx context.Context, dsn string) (Sink, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn)
	}
	return Open(dsn)
}
