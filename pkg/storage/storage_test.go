package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fbscope/fbscope/pkg/dataset"
	"github.com/fbscope/fbscope/pkg/match"
	"github.com/fbscope/fbscope/pkg/normalize"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "fbscope.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func statRecord(t *testing.T, team, goals string) dataset.Record {
	t.Helper()
	rec, err := normalize.Stat("stats_squads_standard_for", map[string]string{
		"team_id": team, "team": "Team " + team, "goals": goals,
	}, normalize.Meta{CompetitionID: "9", SeasonID: "2024-2025"})
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	return rec
}

func buildDataset(t *testing.T, recs ...dataset.Record) *dataset.Dataset {
	t.Helper()
	b := dataset.NewBuilder("league Premier-League/2024-2025 overview")
	for _, r := range recs {
		if err := b.Add("stats_squads_standard_for", r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return b.Build()
}

func TestSaveDatasetTracksChanges(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	changes, err := db.SaveDataset(ctx, buildDataset(t, statRecord(t, "18bb7c10", "91"), statRecord(t, "b8fd03ef", "96")))
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	if got := CountChanges(changes); got[ChangeAdded] != 2 {
		t.Fatalf("expected 2 added, got %v", got)
	}
	firstID := changes[0].RecordID

	// same data with fresh record ids, one value changed
	changes, err = db.SaveDataset(ctx, buildDataset(t, statRecord(t, "18bb7c10", "91"), statRecord(t, "b8fd03ef", "97")))
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	if changes[0].ChangeType != ChangeUnchanged || changes[1].ChangeType != ChangeUpdated {
		t.Fatalf("unexpected change types: %s, %s", changes[0].ChangeType, changes[1].ChangeType)
	}
	if changes[0].RecordID != firstID {
		t.Fatalf("record id should be kept across runs: %s != %s", changes[0].RecordID, firstID)
	}
	if changes[1].Group != "stats_squads_standard_for" {
		t.Fatalf("unexpected group %q", changes[1].Group)
	}

	recs, err := db.ListRecords(ctx, ListOptions{CompetitionID: "9", EntityID: "b8fd03ef"})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
	if got := recs[0].Field("values.goals").Int(); got != 97 {
		t.Fatalf("last write should win, goals = %d", got)
	}
	if recs[0].Field("id").Exists() {
		t.Fatal("payload should not carry the record id")
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Records != 2 || stats[0].Category != "stats_squads_standard_for" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSaveMatchReplaces(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := &match.Record{MatchID: "cc5b4244", Competition: "Premier-League", Name: "A vs. B"}
	if err := db.SaveMatch(ctx, rec); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	rec.Name = "A vs. B (replay)"
	if err := db.SaveMatch(ctx, rec); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	data, err := db.GetMatch(ctx, "cc5b4244")
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if got := (StoredRecord{Data: data}).Field("name").String(); got != "A vs. B (replay)" {
		t.Fatalf("unexpected stored name %q", got)
	}
	if _, err := db.GetMatch(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScrapeLog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	failedAt := time.Date(2024, 8, 16, 21, 4, 5, 0, time.UTC)
	entries := []LogEntry{
		{OccurredAt: failedAt, Target: "match cc5b4244", Kind: "match", Status: StatusFailed, Attempts: 3, Message: "bot challenge could not be bypassed"},
		{OccurredAt: failedAt.Add(-time.Hour), Target: "league Premier-League/2024-2025 overview", Kind: "league", Status: StatusOK, Attempts: 1},
	}
	for _, e := range entries {
		if err := db.LogTarget(ctx, e); err != nil {
			t.Fatalf("LogTarget: %v", err)
		}
	}
	if err := db.LogTarget(ctx, LogEntry{Target: "x", Kind: "league", Status: "weird"}); err == nil {
		t.Fatal("expected the status check to reject unknown statuses")
	}

	got, err := db.ListLog(ctx, 10)
	if err != nil {
		t.Fatalf("ListLog: %v", err)
	}
	if len(got) != 2 || got[0].Status != StatusFailed || got[0].Attempts != 3 || got[0].Message == "" {
		t.Fatalf("unexpected log: %+v", got)
	}
	// ordered by the time the runner recorded, not by insertion
	if !got[0].OccurredAt.Equal(failedAt) || !got[1].OccurredAt.Equal(failedAt.Add(-time.Hour)) {
		t.Fatalf("occurred_at not kept: %v, %v", got[0].OccurredAt, got[1].OccurredAt)
	}

	before := time.Now().UTC().Add(-time.Minute)
	if err := db.LogTarget(ctx, LogEntry{Target: "match 0a1b2c3d", Kind: "match", Status: StatusOK, Attempts: 1}); err != nil {
		t.Fatalf("LogTarget: %v", err)
	}
	got, err = db.ListLog(ctx, 1)
	if err != nil {
		t.Fatalf("ListLog: %v", err)
	}
	if len(got) != 1 || got[0].Target != "match 0a1b2c3d" || got[0].OccurredAt.Before(before) {
		t.Fatalf("unstamped entry should get the current time: %+v", got)
	}
}

func TestOpenSinkPicksSqlite(t *testing.T) {
	sink, err := OpenSink(context.Background(), filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatalf("OpenSink: %v", err)
	}
	defer sink.Close()
	if _, ok := sink.(*DB); !ok {
		t.Fatalf("expected the sqlite sink, got %T", sink)
	}
}
