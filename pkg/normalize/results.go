package normalize

import (
	"fmt"
	"strings"

	"github.com/fbscope/fbscope/pkg/dataset"
)

const CategoryResultsOverall = "results_overall"

// ResultsOverallFields lists every field a league table row may carry.
var ResultsOverallFields = []string{
	"id", "competition_id", "season_id", "rank",
	"team_id", "team_url", "team", "logo_url",
	"games", "wins", "ties", "losses",
	"goals_for", "goals_against", "goal_diff",
	"points", "points_avg",
	"xg_for", "xg_against", "xg_diff", "xg_diff_per90",
	"last_5", "attendance_per_g", "top_team_scorers", "top_keeper", "notes",
}

var resultsOverallAllowed = fieldSet(ResultsOverallFields)

// ResultsOverallRecord is one validated row of a league table.
type ResultsOverallRecord struct {
	ID             string  `json:"id"`
	CompetitionID  string  `json:"competition_id"`
	SeasonID       string  `json:"season_id"`
	Rank           int     `json:"rank"`
	TeamID         string  `json:"team_id"`
	TeamURL        string  `json:"team_url"`
	Team           string  `json:"team"`
	LogoURL        *string `json:"logo_url"`
	Games          int     `json:"games"`
	Wins           int     `json:"wins"`
	Ties           int     `json:"ties"`
	Losses         int     `json:"losses"`
	GoalsFor       int     `json:"goals_for"`
	GoalsAgainst   int     `json:"goals_against"`
	GoalDiff       int     `json:"goal_diff"`
	Points         int     `json:"points"`
	PointsAvg      float64 `json:"points_avg"`
	XGFor          float64 `json:"xg_for"`
	XGAgainst      float64 `json:"xg_against"`
	XGDiff         float64 `json:"xg_diff"`
	XGDiffPer90    float64 `json:"xg_diff_per90"`
	Last5          string  `json:"last_5"`
	AttendancePerG *int    `json:"attendance_per_g"`
	TopTeamScorers *string `json:"top_team_scorers"`
	TopKeeper      *string `json:"top_keeper"`
	Notes          *string `json:"notes"`
}

func (r *ResultsOverallRecord) Key() dataset.Key {
	return dataset.Key{
		CompetitionID: r.CompetitionID,
		SeasonID:      r.SeasonID,
		EntityID:      r.TeamID,
		Category:      CategoryResultsOverall,
	}
}

func (r *ResultsOverallRecord) RecordID() string { return r.ID }

// ResultsOverall validates a league table row. Unknown fields, malformed
// values and inconsistent totals all reject the record.
func ResultsOverall(raw map[string]string, meta Meta) (*ResultsOverallRecord, error) {
	if err := rejectUnknown(raw, resultsOverallAllowed); err != nil {
		return nil, err
	}

	rd := &reader{raw: raw}
	rec := &ResultsOverallRecord{
		ID:            firstNonEmpty(raw["id"]),
		CompetitionID: firstNonEmpty(raw["competition_id"], meta.CompetitionID),
		SeasonID:      firstNonEmpty(raw["season_id"], meta.SeasonID),
		Rank:          rd.intNonNegative("rank"),
		TeamID:        rd.str("team_id"),
		TeamURL:       rd.str("team_url"),
		Team:          rd.str("team"),
		LogoURL:       rd.optStr("logo_url"),
		Games:         rd.intNonNegative("games"),
		Wins:          rd.intNonNegative("wins"),
		Ties:          rd.intNonNegative("ties"),
		Losses:        rd.intNonNegative("losses"),
		GoalsFor:      rd.intNonNegative("goals_for"),
		GoalsAgainst:  rd.intNonNegative("goals_against"),
		GoalDiff:      rd.intSigned("goal_diff"),
		Points:        rd.intNonNegative("points"),
		PointsAvg:     rd.float("points_avg"),
		XGFor:         rd.float("xg_for"),
		XGAgainst:     rd.float("xg_against"),
		XGDiff:        rd.float("xg_diff"),
		XGDiffPer90:   rd.float("xg_diff_per90"),
	}

	last5 := rd.value("last_5")
	if tokens, err := ParseLast5(last5); err != nil {
		rd.fail("last_5", last5, err)
	} else {
		rec.Last5 = strings.Join(tokens, " ")
	}
	rec.AttendancePerG = rd.optIntNonNegative("attendance_per_g")
	rec.TopTeamScorers = rd.optStr("top_team_scorers")
	rec.TopKeeper = rd.optStr("top_keeper")
	rec.Notes = rd.optStr("notes")

	if rd.err != nil {
		return nil, rd.err
	}
	if err := rec.check(); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	return rec, nil
}

// check runs the cross-field rules once every field parsed.
func (r *ResultsOverallRecord) check() error {
	if r.Games <= 0 {
		return &ValidationError{Field: "games", Value: fmt.Sprint(r.Games), Reason: "must be greater than zero", Err: ErrInconsistent}
	}
	if r.Wins+r.Ties+r.Losses != r.Games {
		return &ValidationError{
			Field:  "games",
			Reason: fmt.Sprintf("wins+ties+losses=%d, games=%d", r.Wins+r.Ties+r.Losses, r.Games),
			Err:    ErrInconsistent,
		}
	}
	if r.GoalsFor-r.GoalsAgainst != r.GoalDiff {
		return &ValidationError{
			Field:  "goal_diff",
			Reason: fmt.Sprintf("goals_for-goals_against=%d, goal_diff=%d", r.GoalsFor-r.GoalsAgainst, r.GoalDiff),
			Err:    ErrInconsistent,
		}
	}
	return nil
}
