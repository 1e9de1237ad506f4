package table

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type columnKind int

const (
	kindValue columnKind = iota
	kindTeam
	kindPlayer
	kindNationality
	kindMatches
	kindDropped
)

func kindOf(key string) columnKind {
	switch key {
	case "team", "squad":
		return kindTeam
	case "player":
		return kindPlayer
	case "nationality":
		return kindNationality
	case "matches":
		return kindMatches
	case "ranker":
		return kindDropped
	}
	return kindValue
}

// layout maps header columns to output keys for one table instance.
type layout struct {
	cols    []Column
	kinds   []columnKind
	primary columnKind
	suffix  string
	keys    []string
}

func newLayout(tableID string, cols []Column) *layout {
	l := &layout{cols: cols, kinds: make([]columnKind, len(cols))}
	if strings.Contains(tableID, "against") {
		l.suffix = "_away"
	}
	for i, c := range cols {
		k := kindOf(c.Key)
		l.kinds[i] = k
		switch k {
		case kindPlayer:
			l.primary = kindPlayer
		case kindTeam:
			if l.primary != kindPlayer {
				l.primary = kindTeam
			}
		}
		l.keys = append(l.keys, l.outputKeys(c.Key, k)...)
	}
	return l
}

func (l *layout) outputKeys(key string, k columnKind) []string {
	switch k {
	case kindTeam:
		return []string{"team_id", "team_url", "team", "logo_url"}
	case kindPlayer:
		return []string{"player_id", "player_url", "player"}
	case kindMatches:
		return []string{"matches_url"}
	case kindDropped:
		return nil
	}
	return []string{key + l.suffix}
}

// row maps one data row. Rows without an entity anchor in the primary
// column are rejected.
func (l *layout) row(tr *goquery.Selection) (Record, bool) {
	if l.primary == kindValue {
		return nil, false
	}
	rec := make(Record, len(l.keys))
	hasPrimary := false
	for i, c := range l.cols {
		cell := tr.Find(`[data-stat="` + c.Key + `"]`).First()
		if cell.Length() == 0 {
			continue
		}
		switch l.kinds[i] {
		case kindTeam:
			id, url, name := entityCell(cell)
			if id == "" {
				continue
			}
			rec["team_id"], rec["team_url"], rec["team"] = id, url, strings.TrimPrefix(name, "vs ")
			if src, ok := cell.Find("img").First().Attr("src"); ok {
				rec["logo_url"] = src
			}
			if l.primary == kindTeam {
				hasPrimary = true
			}
		case kindPlayer:
			id, url, name := entityCell(cell)
			if id == "" {
				continue
			}
			rec["player_id"], rec["player_url"], rec["player"] = id, url, name
			hasPrimary = true
		case kindNationality:
			fields := strings.Fields(CellText(cell))
			if len(fields) > 0 {
				rec[c.Key+l.suffix] = fields[len(fields)-1]
			}
		case kindMatches:
			if href, ok := cell.Find("a[href]").First().Attr("href"); ok {
				rec["matches_url"] = href
			}
		case kindDropped:
		default:
			rec[c.Key+l.suffix] = CellText(cell)
		}
	}
	if !hasPrimary {
		return nil, false
	}
	return rec, true
}

// entityCell reads the first anchor of a cell that links to an entity.
func entityCell(cell *goquery.Selection) (id, url, name string) {
	a := cell.Find("a[href]").First()
	if a.Length() == 0 {
		return "", "", ""
	}
	url = a.AttrOr("href", "")
	return EntityID(url), url, CellText(a)
}
