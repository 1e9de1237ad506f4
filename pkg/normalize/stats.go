package normalize

import (
	"strings"

	"github.com/fbscope/fbscope/pkg/dataset"
)

// identityFields are kept as strings on StatRecord rather than coerced.
var identityFields = map[string]bool{
	"id": true, "competition_id": true, "season_id": true,
	"player_id": true, "player_url": true, "player": true,
	"team_id": true, "team_url": true, "team": true, "logo_url": true,
}

// StatRecord is a validated row of any stat table without a dedicated
// schema. Non-identity cells are coerced with Coerce.
type StatRecord struct {
	ID            string         `json:"id"`
	CompetitionID string         `json:"competition_id"`
	SeasonID      string         `json:"season_id"`
	Category      string         `json:"category"`
	EntityID      string         `json:"entity_id"`
	PlayerID      string         `json:"player_id,omitempty"`
	Player        string         `json:"player,omitempty"`
	PlayerURL     string         `json:"player_url,omitempty"`
	TeamID        string         `json:"team_id,omitempty"`
	Team          string         `json:"team,omitempty"`
	TeamURL       string         `json:"team_url,omitempty"`
	LogoURL       string         `json:"logo_url,omitempty"`
	Values        map[string]any `json:"values"`
}

func (r *StatRecord) Key() dataset.Key {
	return dataset.Key{
		CompetitionID: r.CompetitionID,
		SeasonID:      r.SeasonID,
		EntityID:      r.EntityID,
		Category:      r.Category,
	}
}

func (r *StatRecord) RecordID() string { return r.ID }

// EntityKey returns the entity id for a row: the player id, qualified by the
// team id when the row carries both, else the team id.
func EntityKey(playerID, teamID string) string {
	switch {
	case playerID != "" && teamID != "":
		return playerID + "@" + teamID
	case playerID != "":
		return playerID
	default:
		return teamID
	}
}

// Stat normalizes a row of a generic stat table.
func Stat(category string, raw map[string]string, meta Meta) (*StatRecord, error) {
	if strings.TrimSpace(category) == "" {
		return nil, &ValidationError{Field: "category", Reason: ErrEmpty.Error(), Err: ErrEmpty}
	}
	rec := &StatRecord{
		ID:            firstNonEmpty(raw["id"]),
		CompetitionID: firstNonEmpty(raw["competition_id"], meta.CompetitionID),
		SeasonID:      firstNonEmpty(raw["season_id"], meta.SeasonID),
		Category:      category,
		PlayerID:      strings.TrimSpace(raw["player_id"]),
		Player:        strings.TrimSpace(raw["player"]),
		PlayerURL:     strings.TrimSpace(raw["player_url"]),
		TeamID:        strings.TrimSpace(raw["team_id"]),
		Team:          strings.TrimSpace(raw["team"]),
		TeamURL:       strings.TrimSpace(raw["team_url"]),
		LogoURL:       strings.TrimSpace(raw["logo_url"]),
		Values:        make(map[string]any, len(raw)),
	}
	rec.EntityID = EntityKey(rec.PlayerID, rec.TeamID)
	if rec.EntityID == "" {
		return nil, &ValidationError{Field: "entity_id", Reason: ErrEmpty.Error(), Err: ErrEmpty}
	}
	for k, v := range raw {
		if identityFields[k] {
			continue
		}
		rec.Values[k] = Coerce(v)
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	return rec, nil
}
