// Package match decomposes a match report page into match info, both teams'
// scorebox, lineups, events, team stats and per player statistics.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/fetch"
	"github.com/fbscope/fbscope/pkg/table"
	"github.com/fbscope/fbscope/pkg/targets"
	"github.com/sirupsen/logrus"
)

// State is the step the decomposer is in.
type State int

const (
	StateFetching State = iota
	StateScorebox
	StateLineupsEvents
	StateTeamStats
	StatePlayerStats
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateScorebox:
		return "scorebox"
	case StateLineupsEvents:
		return "lineups_events"
	case StateTeamStats:
		return "team_stats"
	case StatePlayerStats:
		return "player_stats"
	case StateComplete:
		return "complete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PartialParseFailure is a section that could not be parsed. The section is
// left empty on the record.
type PartialParseFailure struct {
	Section string
	Err     error
}

func (f *PartialParseFailure) Error() string {
	return fmt.Sprintf("section %s: %v", f.Section, f.Err)
}

func (f *PartialParseFailure) Unwrap() error { return f.Err }

// PlayerRef identifies a player by site id.
type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// LineupPlayer is one row of a lineup.
type LineupPlayer struct {
	Number string `json:"number"`
	PlayerRef
}

// Event is one entry of the match events timeline.
type Event struct {
	Minute string `json:"minute"`
	// Score is the running score after the event, such as "1:0".
	Score  string     `json:"score"`
	Type   string     `json:"type"`
	Player *PlayerRef `json:"player,omitempty"`
	Assist *PlayerRef `json:"assist,omitempty"`
	// Out is the player replaced by Player on a substitution.
	Out *PlayerRef `json:"out,omitempty"`
}

type PassingAccuracy struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Accuracy  int `json:"accuracy"`
}

type ShotsOnTarget struct {
	OnTarget   int `json:"on_target"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

type Saves struct {
	Saved      int `json:"saved"`
	Faced      int `json:"faced"`
	Percentage int `json:"percentage"`
}

type TeamStats struct {
	Possession      *int             `json:"possession,omitempty"`
	PassingAccuracy *PassingAccuracy `json:"passing_accuracy,omitempty"`
	ShotsOnTarget   *ShotsOnTarget   `json:"shots_on_target,omitempty"`
	Saves           *Saves           `json:"saves,omitempty"`
	// Extra holds the secondary counters (fouls, corners, ...) keyed by
	// lower snake case label.
	Extra map[string]int `json:"extra,omitempty"`
}

// PlayerStats merges one player's rows from every stats table. Stats is
// keyed by category, then by the table's data-stat key.
type PlayerStats struct {
	ID    string                    `json:"id"`
	Name  string                    `json:"name"`
	URL   string                    `json:"url,omitempty"`
	Stats map[string]map[string]any `json:"stats"`
}

type TeamSide struct {
	Name        string         `json:"name"`
	ID          string         `json:"id"`
	LogoURL     string         `json:"logo_url,omitempty"`
	Score       *int           `json:"score"`
	XG          *float64       `json:"xg"`
	Record      string         `json:"record,omitempty"`
	Manager     string         `json:"manager,omitempty"`
	Captain     *PlayerRef     `json:"captain,omitempty"`
	Formation   string         `json:"formation,omitempty"`
	Lineup      []LineupPlayer `json:"lineup"`
	Events      []Event        `json:"events"`
	TeamStats   TeamStats      `json:"team_stats"`
	PlayerStats []*PlayerStats `json:"player_stats"`
}

// Record is everything read from one match report.
type Record struct {
	MatchID     string    `json:"match_id"`
	Competition string    `json:"competition,omitempty"`
	URL         string    `json:"url,omitempty"`
	Name        string    `json:"name"`
	Date        string    `json:"date"`
	Attendance  *int      `json:"attendance"`
	Venue       string    `json:"venue,omitempty"`
	Referee     string    `json:"referee,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
	Home        TeamSide  `json:"home"`
	Away        TeamSide  `json:"away"`
	// PartialSections names the sections that failed to parse.
	PartialSections []string               `json:"partial_sections,omitempty"`
	Failures        []*PartialParseFailure `json:"-"`
}

// Partial reports whether any section failed.
func (r *Record) Partial() bool { return len(r.Failures) > 0 }

func (r *Record) fail(section string, err error) {
	r.Failures = append(r.Failures, &PartialParseFailure{Section: section, Err: err})
	r.PartialSections = append(r.PartialSections, section)
}

// Scraper fetches and decomposes match reports.
type Scraper struct {
	Fetcher fetch.DocumentFetcher
	BaseURL string
	Log     logrus.FieldLogger
}

// Scrape fetches the report of t and decomposes it. Only fetch failures are
// returned; section failures are collected on the record.
func (s *Scraper) Scrape(ctx context.Context, t targets.MatchTarget) (*Record, error) {
	log := utils.LoggerOrNop(s.Log).WithField("match", t.MatchID)
	log.WithField("state", StateFetching).Debug("Fetching match report")

	raw, err := s.Fetcher.Fetch(ctx, t.URL(s.BaseURL), t.ReadySelector())
	if err != nil {
		return nil, fmt.Errorf("fetch match %s: %w", t.MatchID, err)
	}
	doc, err := table.ParseString(raw.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse match %s: %w", t.MatchID, err)
	}

	rec := Decompose(t.MatchID, doc, log)
	rec.Competition = t.Competition
	rec.URL = raw.URL
	rec.ScrapedAt = raw.FetchedAt
	return rec, nil
}

type section struct {
	state State
	name  string
	parse func(d *decomposer) error
}

var sections = []section{
	{StateScorebox, "info", (*decomposer).info},
	{StateScorebox, "scorebox", (*decomposer).scorebox},
	{StateLineupsEvents, "lineups", (*decomposer).lineups},
	{StateLineupsEvents, "events", (*decomposer).events},
	{StateTeamStats, "team_stats", (*decomposer).teamStats},
	{StateTeamStats, "team_stats_extra", (*decomposer).extraTeamStats},
	{StatePlayerStats, "player_stats", (*decomposer).playerStats},
}

type decomposer struct {
	doc *goquery.Document
	rec *Record
	log logrus.FieldLogger
}

// Decompose parses an already fetched match report. It never fails: a
// section that cannot be parsed is logged, recorded as a
// PartialParseFailure and left empty.
func Decompose(matchID string, doc *goquery.Document, log logrus.FieldLogger) *Record {
	log = utils.LoggerOrNop(log)
	d := &decomposer{doc: doc, rec: &Record{MatchID: matchID}, log: log}

	state := StateFetching
	for _, s := range sections {
		if s.state != state {
			state = s.state
			log.WithField("state", state).Debug("Parsing match report")
		}
		if err := s.parse(d); err != nil {
			log.WithFields(logrus.Fields{"section": s.name, "state": state}).Warnf("Could not parse section: %v", err)
			d.rec.fail(s.name, err)
		}
	}
	log.WithField("state", StateComplete).Debugf("Match report parsed with %d failed sections", len(d.rec.Failures))
	return d.rec
}
