package table

import (
	"encoding/json"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func loadDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestExtractResultsOverall(t *testing.T) {
	doc := loadDoc(t, "league.html")
	tbl, err := Extract(doc, "results2023-202491_overall")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(tbl.Columns) != 20 {
		t.Fatalf("expected 20 columns, got %d", len(tbl.Columns))
	}
	wantCol := Column{Label: "Rank", Abbr: "Rk", Key: "rank", Description: "Squad's finish in the competition"}
	if tbl.Columns[0] != wantCol {
		t.Fatalf("unexpected first column\nwant: %#v\ngot:  %#v", wantCol, tbl.Columns[0])
	}

	wantKeys := []string{"rank", "team_id", "team_url", "team", "logo_url", "games"}
	if !reflect.DeepEqual(tbl.Keys[:6], wantKeys) {
		t.Fatalf("unexpected keys\nwant: %#v\ngot:  %#v", wantKeys, tbl.Keys[:6])
	}

	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 team rows, got %d", len(tbl.Rows))
	}
	first := tbl.Rows[0]
	want := map[string]string{
		"rank":      "1",
		"team_id":   "b8fd03ef",
		"team_url":  "/en/squads/b8fd03ef/2023-2024/Manchester-City-Stats",
		"team":      "Manchester City",
		"logo_url":  "https://cdn.ssref.net/req/202405011/tlogo/fb/mini.b8fd03ef.png",
		"goal_diff": "+62",
		"last_5":    "WWWWW",
		"notes":     "→ Champions League via league finish",
	}
	for k, v := range want {
		if first[k] != v {
			t.Fatalf("unexpected %s\nwant: %q\ngot:  %q", k, v, first[k])
		}
	}
	if tbl.Rows[1]["notes"] != "" {
		t.Fatalf("expected empty notes, got %q", tbl.Rows[1]["notes"])
	}
	if _, ok := tbl.Rows[1]["notes"]; !ok {
		t.Fatalf("expected notes key to be present on empty cell")
	}
}

func TestExtractAllUnwrapsCommentedTables(t *testing.T) {
	doc := loadDoc(t, "league.html")
	tables := ExtractAll(doc)
	var ids []string
	for _, tbl := range tables {
		ids = append(ids, tbl.ID)
	}
	want := []string{"results2023-202491_overall", "stats_squads_standard_for", "stats_squads_standard_against"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("unexpected tables\nwant: %#v\ngot:  %#v", want, ids)
	}

	standard := tables[1]
	if len(standard.Columns) != 3 {
		t.Fatalf("group header should not be a column: %#v", standard.Columns)
	}
	if len(standard.Rows) != 2 || standard.Rows[0]["possession"] != "61.4" {
		t.Fatalf("unexpected rows: %#v", standard.Rows)
	}
}

func TestExtractAgainstTableSuffixesValues(t *testing.T) {
	doc := loadDoc(t, "league.html")
	tbl, err := Extract(doc, "stats_squads_standard_against")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := Record{
		"team_id":           "18bb7c10",
		"team_url":          "/en/squads/18bb7c10/2023-2024/Arsenal-Stats",
		"team":              "Arsenal",
		"players_used_away": "30",
		"possession_away":   "38.6",
	}
	if len(tbl.Rows) != 1 || !reflect.DeepEqual(tbl.Rows[0], want) {
		t.Fatalf("unexpected rows\nwant: %#v\ngot:  %#v", want, tbl.Rows)
	}
}

func TestExtractPlayerTable(t *testing.T) {
	doc := loadDoc(t, "players.html")
	tbl, err := Extract(doc, "stats_standard")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 player rows, got %d: %#v", len(tbl.Rows), tbl.Rows)
	}
	want := Record{
		"player_id":   "e342ad68",
		"player_url":  "/en/players/e342ad68/Mohamed-Salah",
		"player":      "Mohamed Salah",
		"nationality": "EGY",
		"position":    "FW",
		"team_id":     "822bd0ba",
		"team_url":    "/en/squads/822bd0ba/2023-2024/Liverpool-Stats",
		"team":        "Liverpool",
		"age":         "31-362",
		"minutes":     "2,536",
		"goals":       "18",
		"matches_url": "/en/players/e342ad68/matchlogs/2023-2024/Mohamed-Salah-Match-Logs",
	}
	if !reflect.DeepEqual(tbl.Rows[0], want) {
		t.Fatalf("unexpected row\nwant: %#v\ngot:  %#v", want, tbl.Rows[0])
	}
	for _, k := range tbl.Keys {
		if k == "ranker" {
			t.Fatalf("ranker should be dropped from keys")
		}
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	render := func() []byte {
		doc := loadDoc(t, "league.html")
		var out []*Table
		for _, id := range []string{"results2023-202491_overall", "stats_squads_standard_against"} {
			tbl, err := Extract(doc, id)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			out = append(out, tbl)
		}
		again, _ := Extract(doc, "results2023-202491_overall")
		out = append(out, again)
		b, err := json.Marshal(out)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		return b
	}
	first, second := render(), render()
	if string(first) != string(second) {
		t.Fatalf("extraction is not deterministic")
	}
}

func TestExtractMissingTable(t *testing.T) {
	doc := loadDoc(t, "league.html")
	if _, err := Extract(doc, "stats_keeper"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		id, want string
	}{
		{"results2023-202491_overall", "results_overall"},
		{"results2023-202491_home_away", "results_home_away"},
		{"stats_squads_standard_for", "stats_squads_standard_for"},
		{"stats_standard", "stats_standard"},
	}
	for _, tt := range tests {
		if got := Category(tt.id); got != tt.want {
			t.Fatalf("Category(%q)\nwant: %s\ngot:  %s", tt.id, tt.want, got)
		}
	}
}

func TestEntityID(t *testing.T) {
	tests := []struct {
		href, want string
	}{
		{"/en/squads/18bb7c10/Arsenal-Stats", "18bb7c10"},
		{"/en/squads/18bb7c10/2023-2024/Arsenal-Stats", "18bb7c10"},
		{"/en/players/e342ad68/Mohamed-Salah", "e342ad68"},
		{"https://fbref.com/en/matches/cc5b4244/Manchester-United-Fulham-August-16-2024-Premier-League", "cc5b4244"},
		{"/en/comps/9/Premier-League-Stats", "9"},
		{"/en/country/EGY/Egypt-Football", "EGY"},
		{"/en/squads", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := EntityID(tt.href); got != tt.want {
			t.Fatalf("EntityID(%q)\nwant: %q\ngot:  %q", tt.href, tt.want, got)
		}
	}
}
