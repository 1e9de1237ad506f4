package match

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fbscope/fbscope/pkg/table"
)

var formationRe = regexp.MustCompile(`\(([-\d]+)\)`)

// side ids used by the lineup and event markup.
const (
	homeSide = "a"
	awaySide = "b"
)

var sides = [2]string{homeSide, awaySide}

// lineups reads each side on its own. A side that cannot be parsed is left
// empty and reported without touching the other.
func (d *decomposer) lineups() error {
	var errs []error
	for i, t := range []*TeamSide{&d.rec.Home, &d.rec.Away} {
		side := sides[i]
		div := d.doc.Find(fmt.Sprintf("div.lineup#%s", side)).First()
		if div.Length() == 0 {
			errs = append(errs, fmt.Errorf("no lineup for side %s", side))
			continue
		}
		starters, err := lineupRows(div)
		if err != nil {
			errs = append(errs, fmt.Errorf("side %s: %w", side, err))
			continue
		}
		if m := formationRe.FindStringSubmatch(table.CellText(div.Find("th").First())); m != nil {
			t.Formation = m[1]
		}
		t.Lineup = starters
	}
	return errors.Join(errs...)
}

// lineupRows reads the rows after the header up to the literal "Bench" row.
func lineupRows(div *goquery.Selection) (starters []LineupPlayer, err error) {
	rows := div.Find("tr")
	if rows.Length() < 2 {
		return nil, errors.New("empty lineup")
	}
	rows.Slice(1, goquery.ToEnd).EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if table.CellText(tr) == "Bench" {
			return false
		}
		a := tr.Find("a").First()
		if a.Length() == 0 {
			err = fmt.Errorf("lineup row %q has no player link", table.CellText(tr))
			return false
		}
		starters = append(starters, LineupPlayer{Number: table.CellText(tr.Find("td").First()), PlayerRef: *playerRef(a)})
		return true
	})
	if err == nil && len(starters) == 0 {
		err = errors.New("empty lineup")
	}
	if err != nil {
		return nil, err
	}
	return starters, nil
}

var eventTypes = map[string]bool{
	"goal":            true,
	"penalty_goal":    true,
	"own_goal":        true,
	"substitute_in":   true,
	"yellow_card":     true,
	"red_card":        true,
	"yellow_red_card": true,
}

// events reads the timeline of both sides. An entry that cannot be read is
// logged and skipped like an unknown event type.
func (d *decomposer) events() error {
	var parsed [2][]Event
	for i, side := range sides {
		d.doc.Find(fmt.Sprintf("div.event.%s", side)).Each(func(_ int, div *goquery.Selection) {
			ev, err := parseEvent(div)
			if err != nil {
				d.log.WithField("side", side).Warnf("Skipping match event: %v", err)
				return
			}
			if ev != nil {
				parsed[i] = append(parsed[i], *ev)
			}
		})
	}
	d.rec.Home.Events = parsed[0]
	d.rec.Away.Events = parsed[1]
	return nil
}

// parseEvent reads one timeline entry. Unknown event types are skipped.
func parseEvent(div *goquery.Selection) (*Event, error) {
	icon := div.Find("div.event_icon").First()
	classes := strings.Fields(icon.AttrOr("class", ""))
	if len(classes) < 2 || !eventTypes[classes[1]] {
		return nil, nil
	}
	ev := &Event{Type: classes[1]}

	timing := div.ChildrenFiltered("div").First()
	ev.Score = table.CellText(timing.Find("small"))
	minute := timing.Clone()
	minute.Find("small").Remove()
	ev.Minute = strings.Trim(table.CellText(minute), "’' ")

	block := icon.NextFiltered("div")
	if block.Length() == 0 {
		return nil, fmt.Errorf("%s event at %s has no details", ev.Type, ev.Minute)
	}
	small := block.Find("small")
	main := block.Find("a").NotSelection(small.Find("a"))

	switch ev.Type {
	case "substitute_in":
		ev.Player = playerRef(main.First())
		ev.Out = playerRef(small.Find("a").First())
		if ev.Out == nil && main.Length() == 2 {
			ev.Out = playerRef(main.Eq(0))
			ev.Player = playerRef(main.Eq(1))
		}
	default:
		ev.Player = playerRef(main.First())
		ev.Assist = playerRef(small.Find("a").First())
	}
	if ev.Player == nil {
		return nil, fmt.Errorf("%s event at %s has no player", ev.Type, ev.Minute)
	}
	return ev, nil
}
