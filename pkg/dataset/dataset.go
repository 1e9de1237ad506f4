// Package dataset groups normalized records produced by one scrape target.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyKey is returned when a record has no entity id or category.
	ErrEmptyKey = errors.New("record key is incomplete")
	// ErrBuilt is returned when adding to a builder that already built its dataset.
	ErrBuilt = errors.New("dataset already built")
)

// Key identifies one logical record. Two records with the same key describe
// the same entity; a later scrape supersedes an earlier one.
type Key struct {
	CompetitionID string `json:"competition_id"`
	SeasonID      string `json:"season_id"`
	EntityID      string `json:"entity_id"`
	Category      string `json:"category"`
}

func (k Key) String() string {
	return strings.Join([]string{k.CompetitionID, k.SeasonID, k.EntityID, k.Category}, "|")
}

// Valid reports whether the key can be persisted.
func (k Key) Valid() bool {
	return k.EntityID != "" && k.Category != ""
}

// Record is a validated, typed record ready for persistence.
type Record interface {
	Key() Key
	RecordID() string
}

// Group is a named list of records, usually one per source table.
type Group struct {
	Name    string
	Records []Record
}

// Dataset is the immutable result of one target's scrape run.
type Dataset struct {
	Name   string
	Groups []Group
}

// Group returns the group with the given name.
func (d *Dataset) Group(name string) (Group, bool) {
	for _, g := range d.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// Len returns the total number of records across groups.
func (d *Dataset) Len() int {
	n := 0
	for _, g := range d.Groups {
		n += len(g.Records)
	}
	return n
}

// Records returns all records in group order.
func (d *Dataset) Records() []Record {
	out := make([]Record, 0, d.Len())
	for _, g := range d.Groups {
		out = append(out, g.Records...)
	}
	return out
}

type position struct {
	group string
	index int
}

// Builder accumulates records as tables are parsed.
type Builder struct {
	name   string
	order  []string
	groups map[string][]Record
	seen   map[Key]position
	built  bool
}

func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		groups: make(map[string][]Record),
		seen:   make(map[Key]position),
	}
}

// Add appends r to the named group. A record whose key was already added
// replaces the earlier one in place.
func (b *Builder) Add(group string, r Record) error {
	if b.built {
		return ErrBuilt
	}
	k := r.Key()
	if !k.Valid() {
		return fmt.Errorf("%w: %s", ErrEmptyKey, k)
	}
	if pos, ok := b.seen[k]; ok {
		b.groups[pos.group][pos.index] = r
		return nil
	}
	if _, ok := b.groups[group]; !ok {
		b.order = append(b.order, group)
	}
	b.groups[group] = append(b.groups[group], r)
	b.seen[k] = position{group: group, index: len(b.groups[group]) - 1}
	return nil
}

// Len returns the number of records added so far.
func (b *Builder) Len() int {
	return len(b.seen)
}

// Build freezes the builder and returns the dataset.
func (b *Builder) Build() *Dataset {
	b.built = true
	d := &Dataset{Name: b.name, Groups: make([]Group, 0, len(b.order))}
	for _, name := range b.order {
		recs := make([]Record, len(b.groups[name]))
		copy(recs, b.groups[name])
		d.Groups = append(d.Groups, Group{Name: name, Records: recs})
	}
	return d
}
