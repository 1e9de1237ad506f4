package match

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fbscope/fbscope/pkg/normalize"
	"github.com/fbscope/fbscope/pkg/table"
)

var recordRe = regexp.MustCompile(`^\d+-\d+-\d+$`)

// info reads the match name and date from the page title and the
// attendance, venue and referee from the scorebox meta block.
func (d *decomposer) info() error {
	h1 := d.doc.Find("#content > h1").First()
	if h1.Length() == 0 {
		h1 = d.doc.Find("h1").First()
	}
	if h1.Length() == 0 {
		return errors.New("no page title")
	}
	name, date, ok := strings.Cut(table.CellText(h1), "–")
	if !ok {
		return fmt.Errorf("unexpected title %q", table.CellText(h1))
	}
	if i := strings.Index(name, "Match"); i > 0 {
		name = name[:i]
	}

	meta := d.doc.Find(".scorebox_meta").First()
	if meta.Length() == 0 {
		return errors.New("no scorebox meta block")
	}

	var attendance *int
	var venue, referee string
	var err error
	meta.Children().Each(func(_ int, div *goquery.Selection) {
		label, value, ok := strings.Cut(table.CellText(div), ":")
		if !ok {
			return
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "attendance":
			n, perr := normalize.ParseIntNonNegative(value)
			if perr != nil {
				err = fmt.Errorf("attendance: %w", perr)
				return
			}
			attendance = &n
		case "venue":
			venue = value
		case "officials", "referee":
			referee = refereeName(div, value)
		}
	})
	if err != nil {
		return err
	}

	d.rec.Name = strings.TrimSpace(name)
	d.rec.Date = strings.TrimSpace(date)
	d.rec.Attendance = attendance
	d.rec.Venue = venue
	d.rec.Referee = referee
	return nil
}

// refereeName picks the official marked "(Referee)", or the first one.
func refereeName(div *goquery.Selection, value string) string {
	names := []string{}
	div.Find("span").Each(func(_ int, s *goquery.Selection) {
		if t := table.CellText(s); t != "" && !strings.EqualFold(t, "officials") {
			names = append(names, t)
		}
	})
	if len(names) == 0 {
		names = strings.Split(value, "·")
	}
	for _, n := range names {
		if before, _, ok := strings.Cut(n, "(Referee)"); ok {
			return strings.TrimSpace(before)
		}
	}
	return strings.TrimSpace(names[0])
}

// scorebox reads both teams' blocks: the first two child divs of the
// scorebox.
func (d *decomposer) scorebox() error {
	box := d.doc.Find("div.scorebox").First()
	if box.Length() == 0 {
		return errors.New("no scorebox")
	}
	teams := box.ChildrenFiltered("div").Not(".scorebox_meta")
	if teams.Length() < 2 {
		return fmt.Errorf("scorebox has %d team blocks, want 2", teams.Length())
	}
	home, err := scoreboxSide(teams.Eq(0))
	if err != nil {
		return fmt.Errorf("home: %w", err)
	}
	away, err := scoreboxSide(teams.Eq(1))
	if err != nil {
		return fmt.Errorf("away: %w", err)
	}
	home.fill(&d.rec.Home)
	away.fill(&d.rec.Away)
	return nil
}

type sideInfo struct {
	name, id, logo  string
	score           *int
	xg              *float64
	record, manager string
	captain         *PlayerRef
}

func (s sideInfo) fill(t *TeamSide) {
	t.Name = s.name
	t.ID = s.id
	t.LogoURL = s.logo
	t.Score = s.score
	t.XG = s.xg
	t.Record = s.record
	t.Manager = s.manager
	t.Captain = s.captain
}

func scoreboxSide(div *goquery.Selection) (sideInfo, error) {
	var s sideInfo
	anchor := div.Find("strong a").First()
	if anchor.Length() == 0 {
		return s, errors.New("no team name")
	}
	s.name = table.CellText(anchor)
	s.logo = div.Find("img").First().AttrOr("src", "")
	s.id = table.EntityID(anchor.AttrOr("href", ""))
	if s.id == "" && s.logo != "" {
		base := path.Base(s.logo)
		s.id = strings.TrimSuffix(base, path.Ext(base))
	}
	if s.id == "" {
		return s, errors.New("no team id")
	}

	if txt := table.CellText(div.Find(".score").First()); txt != "" {
		n, err := normalize.ParseIntNonNegative(txt)
		if err != nil {
			return s, fmt.Errorf("score: %w", err)
		}
		s.score = &n
	}
	if txt := table.CellText(div.Find(".score_xg").First()); txt != "" {
		f, err := normalize.ParseFloatSigned(txt)
		if err != nil {
			return s, fmt.Errorf("xg: %w", err)
		}
		s.xg = &f
	}
	div.Find("div").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if txt := table.CellText(el); recordRe.MatchString(txt) {
			s.record = txt
			return false
		}
		return true
	})

	div.Find(".datapoint").Each(func(_ int, dp *goquery.Selection) {
		label := table.CellText(dp.Find("strong").First())
		switch label {
		case "Manager":
			_, v, _ := strings.Cut(table.CellText(dp), ":")
			s.manager = strings.TrimSpace(v)
		case "Captain":
			s.captain = captain(div, dp)
		}
	})
	return s, nil
}

// captain reads the captain from its datapoint. When the datapoint holds
// only the name, the id comes from the first link in the team block whose
// text contains that name.
func captain(team, dp *goquery.Selection) *PlayerRef {
	a := dp.Find("a").First()
	if a.Length() == 0 {
		_, name, _ := strings.Cut(table.CellText(dp), ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil
		}
		a = team.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(table.CellText(s), name)
		}).First()
		if a.Length() == 0 {
			return &PlayerRef{Name: name}
		}
	}
	return playerRef(a)
}

// playerRef builds a reference from a player link, or nil when a is empty.
func playerRef(a *goquery.Selection) *PlayerRef {
	if a.Length() == 0 {
		return nil
	}
	href := a.AttrOr("href", "")
	return &PlayerRef{
		ID:   table.EntityID(href),
		Name: table.CellText(a),
		URL:  href,
	}
}
