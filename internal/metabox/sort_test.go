package metabox

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"wpx-extend/internal/metadata"
)

func lookupFrom(groups map[string]*metadata.Group) GroupLookup {
	return func(f metadata.FieldEntity) *metadata.Group {
		return groups[f.ID]
	}
}

func names(groups []metadata.MetaboxGroup) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Name
	}
	return out
}

func TestSort_GroupsByOrderThenEncounter(t *testing.T) {
	fields := []metadata.FieldEntity{
		{ID: "a", Slug: "cover", Label: "Cover"},
		{ID: "b", Slug: "gallery", Label: "Gallery"},
		{ID: "c", Slug: "isbn", Label: "ISBN"},
	}
	lookup := lookupFrom(map[string]*metadata.Group{
		"a": {Name: "Media"},
		"b": {Name: "Media", Order: 5},
	})

	got := Sort(fields, lookup, SlugID)

	if diff := cmp.Diff([]string{"Media", "Settings"}, names(got)); diff != "" {
		t.Fatalf("group order mismatch (-want +got):\n%s", diff)
	}
	media := got[0]
	if media.Fields[0].ID != "cover" || media.Fields[1].ID != "gallery" {
		t.Fatalf("expected retrieval order cover, gallery; got %+v", media.Fields)
	}
	if media.Settings.Order != 5 {
		t.Fatalf("expected explicit order to win, got %d", media.Settings.Order)
	}
	if got[1].Fields[0].ID != "isbn" {
		t.Fatalf("expected isbn in Settings, got %+v", got[1].Fields)
	}
}

func TestSort_DescendingOrder(t *testing.T) {
	fields := []metadata.FieldEntity{
		{ID: "1", Slug: "one"},
		{ID: "2", Slug: "two"},
		{ID: "3", Slug: "three"},
		{ID: "4", Slug: "four"},
	}
	lookup := lookupFrom(map[string]*metadata.Group{
		"1": {Name: "Low", Order: 1},
		"2": {Name: "High", Order: 10, Collapsed: true},
		"3": {Name: "Mid", Order: 5},
		"4": {Name: "AlsoMid", Order: 5},
	})

	got := Sort(fields, lookup, nil)

	if diff := cmp.Diff([]string{"High", "Mid", "AlsoMid", "Low"}, names(got)); diff != "" {
		t.Fatalf("group order mismatch (-want +got):\n%s", diff)
	}
	if !got[0].Settings.Collapsed {
		t.Fatal("expected collapsed setting to be carried")
	}
}

func TestSort_Deterministic(t *testing.T) {
	fields := []metadata.FieldEntity{
		{ID: "a", Slug: "a"}, {ID: "b", Slug: "b"}, {ID: "c", Slug: "c"},
		{ID: "d", Slug: "d"}, {ID: "e", Slug: "e"},
	}
	lookup := lookupFrom(map[string]*metadata.Group{
		"a": {Name: "X", Order: 2},
		"b": {Name: "Y", Order: 2},
		"d": {Name: "X", Order: 2},
		"e": {Name: "Z"},
	})

	first := Sort(fields, lookup, nil)
	second := Sort(fields, lookup, nil)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Sort is not deterministic (-first +second):\n%s", diff)
	}
}

func TestSort_MetaboxEntries(t *testing.T) {
	fields := []metadata.FieldEntity{{
		ID:          "f1",
		Slug:        "isbn",
		Label:       "ISBN",
		Description: "Ten or thirteen digits",
		Type:        metadata.FieldText,
		Required:    true,
	}}

	got := Sort(fields, nil, PostTypeID("book"))

	want := []metadata.MetaboxGroup{{
		Name: metadata.DefaultGroupName,
		Fields: []metadata.Metabox{{
			ID:          "_book_isbn",
			Label:       "ISBN",
			Description: "Ten or thirteen digits",
			Field:       metadata.FieldText,
			Required:    true,
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Sort() mismatch (-want +got):\n%s", diff)
	}
}

func TestSort_Empty(t *testing.T) {
	if got := Sort(nil, nil, nil); len(got) != 0 {
		t.Fatalf("expected no groups, got %v", got)
	}
}
