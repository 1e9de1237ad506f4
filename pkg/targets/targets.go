// Package targets enumerates the pages a scrape run visits: competition
// pages (league overview, player categories, fixture lists) and match
// reports.
package targets

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is the site every target URL is built on.
const DefaultBaseURL = "https://fbref.com"

// Kind tells what sort of page a target points to.
type Kind string

const (
	KindLeague   Kind = "league"
	KindPlayers  Kind = "players"
	KindSchedule Kind = "schedule"
	KindMatch    Kind = "match"
)

// AllKinds lists the competition kinds in the order "scrape all" visits them.
var AllKinds = []Kind{KindLeague, KindPlayers, KindSchedule, KindMatch}

// ParseKind accepts the CLI spelling of a kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLeague, KindPlayers, KindSchedule, KindMatch:
		return k, nil
	case "matches":
		return KindMatch, nil
	default:
		return "", fmt.Errorf("unknown target kind %q", s)
	}
}

// Target is one page to scrape.
type Target interface {
	fmt.Stringer
	Kind() Kind
	URL(base string) string
	// ReadySelector is the CSS selector whose presence means the page
	// content has rendered.
	ReadySelector() string
}

const (
	CategoryOverview = "overview"
	CategorySchedule = "schedule"
)

// CompetitionTarget is one (competition, season, category) page.
type CompetitionTarget struct {
	TargetKind    Kind
	CompetitionID string
	Slug          string
	Season        string
	Category      string
}

func (t CompetitionTarget) Kind() Kind { return t.TargetKind }

func (t CompetitionTarget) String() string {
	return fmt.Sprintf("%s %s/%s %s", t.TargetKind, t.Slug, t.Season, t.Category)
}

func (t CompetitionTarget) ReadySelector() string { return "table" }

// URL builds the page address under base (DefaultBaseURL when empty).
func (t CompetitionTarget) URL(base string) string {
	base = baseURL(base)
	comp := fmt.Sprintf("%s/en/comps/%s/%s", base, t.CompetitionID, t.Season)
	switch t.TargetKind {
	case KindPlayers:
		path := t.Category
		if c, ok := LookupPlayerCategory(t.Category); ok {
			path = c.Path
		}
		return fmt.Sprintf("%s/%s/%s-%s-Stats", comp, path, t.Season, t.Slug)
	case KindSchedule:
		return fmt.Sprintf("%s/schedule/%s-%s-Scores-and-Fixtures", comp, t.Season, t.Slug)
	default:
		return fmt.Sprintf("%s/%s-%s-Stats", comp, t.Season, t.Slug)
	}
}

// MatchTarget is one match report page.
type MatchTarget struct {
	MatchID     string `yaml:"id" json:"match_id"`
	Home        string `yaml:"home" json:"home"`
	Away        string `yaml:"away" json:"away"`
	Date        string `yaml:"date" json:"date"`
	Competition string `yaml:"competition" json:"competition"`
	// Path is the site path of the report when it is already known, as it
	// is for matches discovered from a fixture list.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

func (t MatchTarget) Kind() Kind { return KindMatch }

func (t MatchTarget) String() string {
	if t.Home == "" && t.Away == "" {
		return fmt.Sprintf("match %s", t.MatchID)
	}
	return fmt.Sprintf("match %s %s-%s %s", t.MatchID, t.Home, t.Away, t.Date)
}

func (t MatchTarget) ReadySelector() string { return "table" }

func (t MatchTarget) URL(base string) string {
	base = baseURL(base)
	if t.Path != "" {
		if u, err := url.Parse(t.Path); err == nil && u.IsAbs() {
			return t.Path
		}
		return base + "/" + strings.TrimPrefix(t.Path, "/")
	}
	return fmt.Sprintf("%s/en/matches/%s/%s-%s-%s-%s", base, t.MatchID, t.Home, t.Away, t.Date, t.Competition)
}

func baseURL(base string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}

// PlayerCategory is one player statistics page of a competition.
type PlayerCategory struct {
	Name string
	// Path is the URL segment the site uses for the category.
	Path string
}

// TableID is the id of the player table on the category page.
func (c PlayerCategory) TableID() string { return "stats_" + c.Name }

var PlayerCategories = []PlayerCategory{
	{Name: "standard", Path: "stats"},
	{Name: "keeper", Path: "keepers"},
	{Name: "keeper_adv", Path: "keepersadv"},
	{Name: "shooting", Path: "shooting"},
	{Name: "passing", Path: "passing"},
	{Name: "passing_types", Path: "passing_types"},
	{Name: "gca", Path: "gca"},
	{Name: "defense", Path: "defense"},
	{Name: "possession", Path: "possession"},
	{Name: "playing_time", Path: "playingtime"},
	{Name: "misc", Path: "misc"},
}

func LookupPlayerCategory(name string) (PlayerCategory, bool) {
	for _, c := range PlayerCategories {
		if c.Name == name {
			return c, true
		}
	}
	return PlayerCategory{}, false
}
