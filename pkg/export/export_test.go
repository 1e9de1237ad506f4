package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fbscope/fbscope/pkg/match"
	"github.com/fbscope/fbscope/pkg/schedule"
	"github.com/fbscope/fbscope/pkg/table"
	"github.com/tidwall/gjson"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestTableCSV(t *testing.T) {
	w := New(t.TempDir())
	tbl := &table.Table{
		ID:   "stats_squads_standard_for",
		Keys: []string{"team_id", "team", "goals"},
		Rows: []table.Record{
			{"team_id": "18bb7c10", "team": "Arsenal", "goals": "91"},
			{"team_id": "b8fd03ef", "team": "Manchester City, FC", "goals": "96"},
		},
	}
	path, err := w.Table(tbl.ID, "Premier-League", "2023-2024", "9", tbl)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if want := filepath.Join(w.Dir, "Premier-League", "stats_squads_standard_for-Premier-League-2023-2024.csv"); path != want {
		t.Fatalf("unexpected path\nwant: %s\ngot:  %s", want, path)
	}

	want := [][]string{
		{"team_id", "team", "goals", "competition_id", "season_id"},
		{"18bb7c10", "Arsenal", "91", "9", "2023-2024"},
		{"b8fd03ef", "Manchester City, FC", "96", "9", "2023-2024"},
	}
	if got := readCSV(t, path); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected csv\nwant: %v\ngot:  %v", want, got)
	}

	if path, err := w.Table("empty", "x", "y", "1", &table.Table{}); err != nil || path != "" {
		t.Fatalf("empty tables should be skipped, got %q, %v", path, err)
	}
}

func TestFixturesCSV(t *testing.T) {
	w := New(t.TempDir())
	att, xg := 73297, 2.4
	path, err := w.Fixtures("Premier-League", "2024-2025", "9", []schedule.Fixture{{
		MatchID: "cc5b4244", Gameweek: "1", Date: "2024-08-16", Epoch: 1723834800,
		Home:   schedule.Team{Name: "Manchester Utd", ID: "19538871"},
		Away:   schedule.Team{Name: "Fulham", ID: "fb10988f"},
		HomeXG: &xg, Score: "1–0", Attendance: &att,
	}})
	if err != nil {
		t.Fatalf("Fixtures: %v", err)
	}
	if filepath.Base(path) != "schedule-Premier-League-2024-2025.csv" {
		t.Fatalf("unexpected path %s", path)
	}
	rows := readCSV(t, path)
	if len(rows) != 2 || len(rows[1]) != len(fixtureHeader) {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if rows[1][5] != "1723834800" || rows[1][9] != "2.4" || rows[1][11] != "" || rows[1][15] != "73297" {
		t.Fatalf("unexpected fixture row: %v", rows[1])
	}
}

func TestMatchJSON(t *testing.T) {
	w := New(t.TempDir())
	score := 1
	rec := &match.Record{MatchID: "cc5b4244", Name: "Manchester United vs. Fulham"}
	rec.Home.Name, rec.Home.Score = "Manchester Utd", &score

	path, err := w.Match(rec)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if path != filepath.Join(w.Dir, "matches", "cc5b4244.json") {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	doc := gjson.ParseBytes(data)
	if doc.Get("home.score").Int() != 1 || doc.Get("away.score").Type != gjson.Null || doc.Get("match_id").String() != "cc5b4244" {
		t.Fatalf("unexpected document: %s", data)
	}
}
