// Package schedule reads a competition's fixture list and turns each played
// or scheduled match into a fixture record and a match target.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fbscope/fbscope/pkg/dataset"
	"github.com/fbscope/fbscope/pkg/normalize"
	"github.com/fbscope/fbscope/pkg/table"
	"github.com/fbscope/fbscope/pkg/targets"
	"github.com/google/uuid"
)

// Category is the stat category fixture records are stored under.
const Category = "schedule"

var ErrNoFixtures = errors.New("no fixtures found")

type Team struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

// Fixture is one row of a fixture list.
type Fixture struct {
	MatchID    string   `json:"match_id"`
	Gameweek   string   `json:"gameweek,omitempty"`
	Day        string   `json:"day,omitempty"`
	Date       string   `json:"date"`
	Time       string   `json:"time,omitempty"`
	Epoch      int64    `json:"epoch,omitempty"`
	Home       Team     `json:"home"`
	Away       Team     `json:"away"`
	HomeXG     *float64 `json:"home_xg,omitempty"`
	AwayXG     *float64 `json:"away_xg,omitempty"`
	Score      string   `json:"score,omitempty"`
	Attendance *int     `json:"attendance,omitempty"`
	Venue      string   `json:"venue,omitempty"`
	Referee    string   `json:"referee,omitempty"`
	MatchURL   string   `json:"match_url"`
}

// Target returns the match report target of the fixture.
func (f Fixture) Target(competition string) targets.MatchTarget {
	return targets.MatchTarget{
		MatchID:     f.MatchID,
		Home:        f.Home.Name,
		Away:        f.Away.Name,
		Date:        f.Date,
		Competition: competition,
		Path:        f.MatchURL,
	}
}

// FixtureRecord is a fixture keyed for storage.
type FixtureRecord struct {
	ID            string `json:"id"`
	CompetitionID string `json:"competition_id"`
	SeasonID      string `json:"season_id"`
	Fixture
}

func (r *FixtureRecord) Key() dataset.Key {
	return dataset.Key{
		CompetitionID: r.CompetitionID,
		SeasonID:      r.SeasonID,
		EntityID:      r.MatchID,
		Category:      Category,
	}
}

func (r *FixtureRecord) RecordID() string { return r.ID }

// NewRecord wraps f for storage.
func NewRecord(f Fixture, meta normalize.Meta) *FixtureRecord {
	return &FixtureRecord{
		ID:            uuid.NewString(),
		CompetitionID: meta.CompetitionID,
		SeasonID:      meta.SeasonID,
		Fixture:       f,
	}
}

// Parse reads every fixture table of doc. Rows without a match report
// link (headers, postponed or future matches without a report) and rows
// without both team links are dropped. A match listed twice is kept once.
func Parse(doc *goquery.Document) ([]Fixture, error) {
	var out []Fixture
	seen := map[string]bool{}
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		tbl.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			if tr.Find("td").Length() == 0 {
				return
			}
			f, ok := parseRow(tr)
			if !ok || seen[f.MatchID] {
				return
			}
			seen[f.MatchID] = true
			out = append(out, f)
		})
	})
	if len(out) == 0 {
		return nil, ErrNoFixtures
	}
	return out, nil
}

func cell(tr *goquery.Selection, stat string) *goquery.Selection {
	return tr.Find(fmt.Sprintf(`[data-stat="%s"]`, stat)).First()
}

func team(tr *goquery.Selection, stat string) (Team, bool) {
	a := cell(tr, stat).Find("a").First()
	href, ok := a.Attr("href")
	if !ok {
		return Team{}, false
	}
	t := Team{Name: table.CellText(a), ID: table.EntityID(href), URL: href}
	return t, t.ID != ""
}

func parseRow(tr *goquery.Selection) (Fixture, bool) {
	var f Fixture
	report, ok := cell(tr, "match_report").Find("a").First().Attr("href")
	// future rows link a head-to-head page instead of a report
	if !ok || !strings.Contains(report, "/matches/") {
		return f, false
	}
	f.MatchURL = report
	f.MatchID = table.EntityID(report)
	if f.MatchID == "" {
		return f, false
	}
	if f.Home, ok = team(tr, "home_team"); !ok {
		return f, false
	}
	if f.Away, ok = team(tr, "away_team"); !ok {
		return f, false
	}

	f.Gameweek = table.CellText(cell(tr, "gameweek"))
	f.Day = table.CellText(cell(tr, "dayofweek"))
	f.Date = table.CellText(cell(tr, "date"))

	start := cell(tr, "start_time")
	f.Time = table.CellText(start.Find(".venuetime").First())
	if f.Time == "" {
		f.Time = table.CellText(start)
	}
	if epoch, ok := start.Find("[data-venue-epoch]").Attr("data-venue-epoch"); ok {
		if n, err := strconv.ParseInt(epoch, 10, 64); err == nil {
			f.Epoch = n
		}
	}
	if f.Date == "" && f.Epoch > 0 {
		f.Date = time.Unix(f.Epoch, 0).UTC().Format(time.DateOnly)
	}

	f.Score = table.CellText(cell(tr, "score"))
	f.HomeXG = optFloat(table.CellText(cell(tr, "home_xg")))
	f.AwayXG = optFloat(table.CellText(cell(tr, "away_xg")))
	att := cell(tr, "attendance")
	if n, err := normalize.ParseIntNonNegative(att.AttrOr("csk", table.CellText(att))); err == nil {
		f.Attendance = &n
	}
	f.Venue = table.CellText(cell(tr, "venue"))
	f.Referee = table.CellText(cell(tr, "referee"))
	return f, true
}

func optFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := normalize.ParseFloatSigned(s)
	if err != nil {
		return nil
	}
	return &v
}
