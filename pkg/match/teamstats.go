package match

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fbscope/fbscope/pkg/table"
)

var (
	ofRe      = regexp.MustCompile(`(\d+)\s+of\s+(\d+)`)
	percentRe = regexp.MustCompile(`(\d+)%`)
)

// ratio reads "423 of 571 — 74%" in either order.
func ratio(text string) (made, total, pct int, ok bool) {
	m := ofRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, 0, false
	}
	made, _ = strconv.Atoi(m[1])
	total, _ = strconv.Atoi(m[2])
	if p := percentRe.FindStringSubmatch(text); p != nil {
		pct, _ = strconv.Atoi(p[1])
	}
	return made, total, pct, true
}

func percent(text string) (int, bool) {
	p := percentRe.FindStringSubmatch(text)
	if p == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(p[1])
	return n, true
}

// teamStatParsers set one labelled stat from a team's cell text. Labels
// missing from the map are skipped.
var teamStatParsers = map[string]func(ts *TeamStats, text string){
	"possession": func(ts *TeamStats, text string) {
		if n, ok := percent(text); ok {
			ts.Possession = &n
		}
	},
	"passing accuracy": func(ts *TeamStats, text string) {
		if a, b, p, ok := ratio(text); ok {
			ts.PassingAccuracy = &PassingAccuracy{Completed: a, Total: b, Accuracy: p}
		}
	},
	"shots on target": func(ts *TeamStats, text string) {
		if a, b, p, ok := ratio(text); ok {
			ts.ShotsOnTarget = &ShotsOnTarget{OnTarget: a, Total: b, Percentage: p}
		}
	},
	"saves": func(ts *TeamStats, text string) {
		if a, b, p, ok := ratio(text); ok {
			ts.Saves = &Saves{Saved: a, Faced: b, Percentage: p}
		}
	},
}

// teamStats reads the #team_stats table: a header row with both team names,
// then pairs of a label row and a row with one cell per team.
func (d *decomposer) teamStats() error {
	rows := d.doc.Find("#team_stats tr")
	if rows.Length() == 0 {
		return errors.New("no team stats table")
	}
	var home, away TeamStats
	for i := 1; i < rows.Length(); i++ {
		label := strings.ToLower(table.CellText(rows.Eq(i).Find("th")))
		if label == "" {
			continue
		}
		if i+1 >= rows.Length() {
			break
		}
		cells := rows.Eq(i + 1).Find("td")
		parse, ok := teamStatParsers[label]
		if cells.Length() != 2 || !ok {
			continue
		}
		parse(&home, table.CellText(cells.Eq(0)))
		parse(&away, table.CellText(cells.Eq(1)))
		i++
	}
	home.Extra = d.rec.Home.TeamStats.Extra
	away.Extra = d.rec.Away.TeamStats.Extra
	d.rec.Home.TeamStats = home
	d.rec.Away.TeamStats = away
	return nil
}

// extraTeamStats reads the #team_stats_extra blocks. In each block the
// children with class "th" are headers; the others come in triples of home
// value, label and away value.
func (d *decomposer) extraTeamStats() error {
	blocks := d.doc.Find("#team_stats_extra").ChildrenFiltered("div")
	if blocks.Length() == 0 {
		return errors.New("no extra team stats")
	}
	home, away := map[string]int{}, map[string]int{}
	blocks.Each(func(_ int, block *goquery.Selection) {
		cells := block.ChildrenFiltered("div").Not(".th")
		for i := 0; i+2 < cells.Length(); i += 3 {
			label := strings.ReplaceAll(strings.ToLower(table.CellText(cells.Eq(i+1))), " ", "_")
			if label == "" {
				continue
			}
			if n, err := strconv.Atoi(table.CellText(cells.Eq(i))); err == nil {
				home[label] = n
			}
			if n, err := strconv.Atoi(table.CellText(cells.Eq(i + 2))); err == nil {
				away[label] = n
			}
		}
	})
	d.rec.Home.TeamStats.Extra = home
	d.rec.Away.TeamStats.Extra = away
	return nil
}
