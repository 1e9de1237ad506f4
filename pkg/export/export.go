// Package export writes scrape artifacts: one CSV per extracted table, one
// CSV per fixture list and one JSON document per match.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fbscope/fbscope/pkg/match"
	"github.com/fbscope/fbscope/pkg/schedule"
	"github.com/fbscope/fbscope/pkg/table"
)

// Writer writes artifacts under Dir.
type Writer struct {
	Dir string
}

func New(dir string) *Writer {
	return &Writer{Dir: dir}
}

// TablePath is {dir}/{slug}/{name}-{slug}-{season}.csv.
func (w *Writer) TablePath(name, slug, season string) string {
	return filepath.Join(w.Dir, slug, fmt.Sprintf("%s-%s-%s.csv", name, slug, season))
}

// MatchPath is {dir}/matches/{match_id}.json.
func (w *Writer) MatchPath(matchID string) string {
	return filepath.Join(w.Dir, "matches", matchID+".json")
}

// Table writes the rows of t under name, with the competition and season as
// trailing columns. Tables without rows are skipped and return "".
func (w *Writer) Table(name, slug, season, competitionID string, t *table.Table) (string, error) {
	if len(t.Rows) == 0 {
		return "", nil
	}
	header := append(append([]string{}, t.Keys...), "competition_id", "season_id")
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, 0, len(header))
		for _, k := range t.Keys {
			row = append(row, r[k])
		}
		rows = append(rows, append(row, competitionID, season))
	}
	path := w.TablePath(name, slug, season)
	return path, writeCSV(path, header, rows)
}

var fixtureHeader = []string{
	"match_id", "gameweek", "day", "date", "time", "epoch",
	"home_team_name", "home_team_id", "home_team_url",
	"home_xg", "score", "away_xg",
	"away_team_name", "away_team_id", "away_team_url",
	"attendance", "venue", "referee", "match_url",
	"competition_id", "season_id",
}

// Fixtures writes a fixture list as schedule-{slug}-{season}.csv.
func (w *Writer) Fixtures(slug, season, competitionID string, fixtures []schedule.Fixture) (string, error) {
	if len(fixtures) == 0 {
		return "", nil
	}
	rows := make([][]string, 0, len(fixtures))
	for _, f := range fixtures {
		rows = append(rows, []string{
			f.MatchID, f.Gameweek, f.Day, f.Date, f.Time, formatInt64(f.Epoch),
			f.Home.Name, f.Home.ID, f.Home.URL,
			formatFloat(f.HomeXG), f.Score, formatFloat(f.AwayXG),
			f.Away.Name, f.Away.ID, f.Away.URL,
			formatInt(f.Attendance), f.Venue, f.Referee, f.MatchURL,
			competitionID, season,
		})
	}
	path := w.TablePath(schedule.Category, slug, season)
	return path, writeCSV(path, fixtureHeader, rows)
}

// Match writes the match document as indented JSON.
func (w *Writer) Match(rec *match.Record) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal match %s: %w", rec.MatchID, err)
	}
	path := w.MatchPath(rec.MatchID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func formatInt64(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
