package targets

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v2"
)

// Competition is one entry of a targets file.
type Competition struct {
	ID      string   `yaml:"id"`
	Slug    string   `yaml:"slug"`
	Seasons []string `yaml:"seasons"`
	// Categories restricts the player categories; empty means all of them.
	Categories []string `yaml:"categories,omitempty"`
}

// File is the static target list read once at start.
type File struct {
	Competitions []Competition `yaml:"competitions"`
	Matches      []MatchTarget `yaml:"matches"`
}

// Default is the built-in list used when no targets file is given.
func Default() *File {
	return &File{
		Competitions: []Competition{
			{ID: "9", Slug: "Premier-League", Seasons: []string{"2024-2025"}},
		},
		Matches: []MatchTarget{
			{
				MatchID:     "cc5b4244",
				Home:        "Manchester-United",
				Away:        "Fulham",
				Date:        "August-16-2024",
				Competition: "Premier-League",
			},
		},
	}
}

// LoadFile reads a YAML targets file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse targets file %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("targets file %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) Validate() error {
	for i, c := range f.Competitions {
		if c.ID == "" || c.Slug == "" {
			return fmt.Errorf("competition %d: id and slug are required", i)
		}
		if len(c.Seasons) == 0 {
			return fmt.Errorf("competition %s: at least one season is required", c.Slug)
		}
		for _, name := range c.Categories {
			if _, ok := LookupPlayerCategory(name); !ok {
				return fmt.Errorf("competition %s: unknown player category %q", c.Slug, name)
			}
		}
	}
	for i, m := range f.Matches {
		if m.MatchID == "" {
			return fmt.Errorf("match %d: id is required", i)
		}
		if m.Path == "" && (m.Home == "" || m.Away == "" || m.Date == "" || m.Competition == "") {
			return fmt.Errorf("match %s: home, away, date and competition are required without a path", m.MatchID)
		}
	}
	return nil
}

// Filter narrows an expansion. Empty fields match everything. Competitions
// match either the id or the slug.
type Filter struct {
	Competitions []string
	Seasons      []string
	Categories   []string
	Matches      []string
}

func match(values []string, candidates ...string) bool {
	if len(values) == 0 {
		return true
	}
	for _, c := range candidates {
		if slices.Contains(values, c) {
			return true
		}
	}
	return false
}

// Expand enumerates the targets of the requested kinds in file order:
// competitions first, then seasons, then kinds, then categories.
func (f *File) Expand(kinds []Kind, filter Filter) []Target {
	var out []Target
	for _, c := range f.Competitions {
		if !match(filter.Competitions, c.ID, c.Slug) {
			continue
		}
		for _, season := range c.Seasons {
			if !match(filter.Seasons, season) {
				continue
			}
			for _, k := range kinds {
				out = append(out, c.expand(k, season, filter)...)
			}
		}
	}
	if slices.Contains(kinds, KindMatch) {
		for _, m := range f.Matches {
			if match(filter.Matches, m.MatchID) && match(filter.Competitions, m.Competition) {
				out = append(out, m)
			}
		}
	}
	return out
}

func (c Competition) expand(k Kind, season string, filter Filter) []Target {
	base := CompetitionTarget{TargetKind: k, CompetitionID: c.ID, Slug: c.Slug, Season: season}
	switch k {
	case KindLeague:
		base.Category = CategoryOverview
		return []Target{base}
	case KindSchedule:
		base.Category = CategorySchedule
		return []Target{base}
	case KindPlayers:
		var out []Target
		for _, pc := range PlayerCategories {
			if len(c.Categories) > 0 && !slices.Contains(c.Categories, pc.Name) {
				continue
			}
			if !match(filter.Categories, pc.Name) {
				continue
			}
			t := base
			t.Category = pc.Name
			out = append(out, t)
		}
		return out
	}
	return nil
}

// Matches returns the match targets among ts.
func Matches(ts []Target) []MatchTarget {
	var out []MatchTarget
	for _, t := range ts {
		if m, ok := t.(MatchTarget); ok {
			out = append(out, m)
		}
	}
	return out
}
