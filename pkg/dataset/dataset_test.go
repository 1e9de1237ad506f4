package dataset

import (
	"errors"
	"reflect"
	"testing"
)

type fakeRecord struct {
	key Key
	id  string
}

func (f fakeRecord) Key() Key         { return f.key }
func (f fakeRecord) RecordID() string { return f.id }

func rec(entity, category, id string) fakeRecord {
	return fakeRecord{key: Key{CompetitionID: "9", SeasonID: "2023-2024", EntityID: entity, Category: category}, id: id}
}

func TestBuilderGroupsInInsertionOrder(t *testing.T) {
	b := NewBuilder("9/2023-2024/overview")
	for _, r := range []struct {
		group string
		rec   fakeRecord
	}{
		{"results_overall", rec("a", "results_overall", "1")},
		{"stats_squads_standard_for", rec("a", "stats_squads_standard_for", "2")},
		{"results_overall", rec("b", "results_overall", "3")},
	} {
		if err := b.Add(r.group, r.rec); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	d := b.Build()

	var names []string
	for _, g := range d.Groups {
		names = append(names, g.Name)
	}
	want := []string{"results_overall", "stats_squads_standard_for"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected groups\nwant: %#v\ngot:  %#v", want, names)
	}
	if d.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", d.Len())
	}
	g, ok := d.Group("results_overall")
	if !ok || len(g.Records) != 2 {
		t.Fatalf("unexpected results_overall group: %#v", g)
	}
}

func TestBuilderLaterRecordSupersedes(t *testing.T) {
	b := NewBuilder("x")
	_ = b.Add("g", rec("a", "c", "old"))
	_ = b.Add("g", rec("b", "c", "other"))
	_ = b.Add("g", rec("a", "c", "new"))

	d := b.Build()
	g, _ := d.Group("g")
	var ids []string
	for _, r := range g.Records {
		ids = append(ids, r.RecordID())
	}
	want := []string{"new", "other"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("unexpected ids\nwant: %#v\ngot:  %#v", want, ids)
	}
}

func TestBuilderRejectsEmptyKeyAndBuiltState(t *testing.T) {
	b := NewBuilder("x")
	if err := b.Add("g", rec("", "c", "1")); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	b.Build()
	if err := b.Add("g", rec("a", "c", "1")); !errors.Is(err, ErrBuilt) {
		t.Fatalf("expected ErrBuilt, got %v", err)
	}
}
