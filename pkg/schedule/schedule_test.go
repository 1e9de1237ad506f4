package schedule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fbscope/fbscope/pkg/normalize"
	"github.com/fbscope/fbscope/pkg/table"
	"github.com/google/go-cmp/cmp"
)

func parseFixture(t *testing.T) []Fixture {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "schedule.html"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	doc, err := table.Parse(f)
	if err != nil {
		t.Fatal(err)
	}
	fixtures, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return fixtures
}

func TestParseFixtures(t *testing.T) {
	fixtures := parseFixture(t)
	if len(fixtures) != 2 {
		t.Fatalf("expected 2 fixtures with a match report, got %d", len(fixtures))
	}

	homeXG, awayXG, attendance := 2.4, 0.4, 73297
	want := Fixture{
		MatchID:    "cc5b4244",
		Gameweek:   "1",
		Day:        "Fri",
		Date:       "2024-08-16",
		Time:       "20:00",
		Epoch:      1723834800,
		Home:       Team{Name: "Manchester Utd", ID: "19538871", URL: "/en/squads/19538871/Manchester-United-Stats"},
		Away:       Team{Name: "Fulham", ID: "fb10988f", URL: "/en/squads/fb10988f/Fulham-Stats"},
		HomeXG:     &homeXG,
		AwayXG:     &awayXG,
		Score:      "1–0",
		Attendance: &attendance,
		Venue:      "Old Trafford",
		Referee:    "Robert Jones",
		MatchURL:   "/en/matches/cc5b4244/Manchester-United-Fulham-August-16-2024-Premier-League",
	}
	if diff := cmp.Diff(want, fixtures[0]); diff != "" {
		t.Fatalf("fixture mismatch (-want +got):\n%s", diff)
	}

	second := fixtures[1]
	// no date cell text: the date comes from the kickoff epoch
	if second.Date != "2024-08-17" || second.Attendance == nil || *second.Attendance != 30014 {
		t.Fatalf("unexpected second fixture: %+v", second)
	}
}

func TestParseWithoutFixtures(t *testing.T) {
	doc, err := table.ParseString(`<table><tbody><tr><td data-stat="home_team">x</td></tr></tbody></table>`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(doc); err != ErrNoFixtures {
		t.Fatalf("expected ErrNoFixtures, got %v", err)
	}
}

func TestFixtureTargetAndRecord(t *testing.T) {
	f := parseFixture(t)[0]

	target := f.Target("Premier-League")
	if got := target.URL(""); got != "https://fbref.com"+f.MatchURL {
		t.Fatalf("unexpected target URL %s", got)
	}

	rec := NewRecord(f, normalize.Meta{CompetitionID: "9", SeasonID: "2024-2025"})
	key := rec.Key()
	if key.EntityID != "cc5b4244" || key.Category != Category || key.CompetitionID != "9" || key.SeasonID != "2024-2025" {
		t.Fatalf("unexpected key %+v", key)
	}
	if rec.RecordID() == "" {
		t.Fatal("expected a generated record id")
	}
}
