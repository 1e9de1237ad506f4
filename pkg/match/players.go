package match

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fbscope/fbscope/pkg/normalize"
	"github.com/fbscope/fbscope/pkg/table"
)

// DefaultPlayerCategories is used when the page has no stats switcher.
var DefaultPlayerCategories = []string{"summary", "passing", "passing_types", "defense", "possession", "misc"}

// KeeperCategory is the category the keeper table is merged under.
const KeeperCategory = "keeper"

// playerCategories reads the category names from the stats switcher
// links ("..._summary", "..._passing_types").
func (d *decomposer) playerCategories() []string {
	var cats []string
	d.doc.Find("div.filter.switcher a[data-show]").Each(func(_ int, a *goquery.Selection) {
		parts := strings.Split(a.AttrOr("data-show", ""), "_")
		cat := parts[len(parts)-1]
		if strings.Contains(a.AttrOr("data-show", ""), "passing_type") && len(parts) >= 2 {
			cat = strings.Join(parts[len(parts)-2:], "_")
		}
		if cat != "" && !slices.Contains(cats, cat) {
			cats = append(cats, cat)
		}
	})
	if len(cats) == 0 {
		return DefaultPlayerCategories
	}
	return cats
}

func (d *decomposer) playerStats() error {
	if d.rec.Home.ID == "" || d.rec.Away.ID == "" {
		return errors.New("team ids unknown")
	}
	cats := d.playerCategories()
	d.rec.Home.PlayerStats = d.teamPlayerStats(d.rec.Home.ID, cats)
	d.rec.Away.PlayerStats = d.teamPlayerStats(d.rec.Away.ID, cats)
	if len(d.rec.Home.PlayerStats) == 0 && len(d.rec.Away.PlayerStats) == 0 {
		return fmt.Errorf("no player stats tables for %s or %s", d.rec.Home.ID, d.rec.Away.ID)
	}
	return nil
}

// merger groups rows by player id, keeping first seen order.
type merger struct {
	order []*PlayerStats
	index map[string]*PlayerStats
}

func (m *merger) add(category string, row statRow) {
	if row.ref.ID == "" {
		return
	}
	p, ok := m.index[row.ref.ID]
	if !ok {
		p = &PlayerStats{ID: row.ref.ID, Stats: map[string]map[string]any{}}
		m.index[row.ref.ID] = p
		m.order = append(m.order, p)
	}
	p.Name = row.ref.Name
	p.URL = row.ref.URL
	p.Stats[category] = row.values
}

func (d *decomposer) teamPlayerStats(teamID string, cats []string) []*PlayerStats {
	m := &merger{index: map[string]*PlayerStats{}}
	for _, cat := range cats {
		rows := statRows(d.doc.Find(fmt.Sprintf("table#stats_%s_%s", teamID, cat)))
		// header and totals rows carry a player cell too
		if len(rows) >= 2 {
			rows = rows[1 : len(rows)-1]
		}
		for _, r := range rows {
			m.add(cat, r)
		}
	}

	rows := statRows(d.doc.Find(fmt.Sprintf("table#keeper_stats_%s", teamID)))
	if len(rows) > 2 {
		rows = rows[1 : len(rows)-1]
	}
	for _, r := range rows {
		m.add(KeeperCategory, r)
	}
	return m.order
}

type statRow struct {
	ref    PlayerRef
	values map[string]any
}

// statRows reads every row with a player header cell.
func statRows(tbl *goquery.Selection) []statRow {
	var rows []statRow
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find(`th[data-stat="player"]`).Length() == 0 {
			return
		}
		r := statRow{values: map[string]any{}}
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			key := cell.AttrOr("data-stat", "")
			if key == "" {
				return
			}
			text := table.CellText(cell)
			switch key {
			case "player":
				if ref := playerRef(cell.Find("a").First()); ref != nil {
					r.ref = *ref
				} else {
					r.ref.Name = text
				}
			case "age":
				age, _, _ := strings.Cut(text, "-")
				r.values[key] = age
			default:
				r.values[key] = normalize.Coerce(text)
			}
		})
		rows = append(rows, r)
	})
	return rows
}
