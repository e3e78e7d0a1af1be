package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"wpx-extend/internal/config"
	"wpx-extend/internal/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "wpx"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s
}

func TestStore_EntityRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := &metadata.ConfigEntity{
		Kind:  metadata.KindPostType,
		Name:  "book",
		Title: "Books",
		RawAttributes: map[string]string{
			"_wpx_cpt_public":   "true",
			"_wpx_cpt_supports": "title,editor",
		},
	}
	if err := s.CreateEntity(ctx, e); err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.GetEntityByName(ctx, metadata.KindPostType, "book")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(e, got); diff != "" {
		t.Fatalf("entity mismatch (-want +got):\n%s", diff)
	}

	e.RawAttributes = map[string]string{"_wpx_cpt_public": "false"}
	e.MenuOrder = 3
	if err := s.UpdateEntity(ctx, e); err != nil {
		t.Fatalf("update: %v", err)
	}
	attrs, err := s.GetRawAttributes(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]string{"_wpx_cpt_public": "false"}, attrs); diff != "" {
		t.Fatalf("attributes not replaced (-want +got):\n%s", diff)
	}

	if err := s.DeleteEntity(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetEntity(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_DuplicateName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateEntity(ctx, &metadata.ConfigEntity{Kind: metadata.KindTaxonomy, Name: "genre"}); err != nil {
		t.Fatal(err)
	}
	err := s.CreateEntity(ctx, &metadata.ConfigEntity{Kind: metadata.KindTaxonomy, Name: "genre"})
	if !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}
	// Same name under another kind is fine.
	if err := s.CreateEntity(ctx, &metadata.ConfigEntity{Kind: metadata.KindPostType, Name: "genre"}); err != nil {
		t.Fatalf("expected distinct kinds to coexist: %v", err)
	}
}

func TestStore_ListEntitiesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, e := range []metadata.ConfigEntity{
		{Kind: metadata.KindPostType, Name: "zine", MenuOrder: 0},
		{Kind: metadata.KindPostType, Name: "album", MenuOrder: 2},
		{Kind: metadata.KindPostType, Name: "book", MenuOrder: 0},
		{Kind: metadata.KindTaxonomy, Name: "genre"},
	} {
		e := e
		if err := s.CreateEntity(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListEntities(ctx, metadata.KindPostType)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range list {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"book", "zine", "album"}, names); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_FieldsAndGroups(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	isbn := &metadata.ConfigEntity{Kind: metadata.KindField, Name: "isbn", Title: "ISBN", MenuOrder: 2,
		RawAttributes: map[string]string{FieldTypeKey: "text", FieldRequiredKey: "true", FieldDescriptionKey: "Book number"}}
	cover := &metadata.ConfigEntity{Kind: metadata.KindField, Name: "cover", Title: "Cover", MenuOrder: 1,
		RawAttributes: map[string]string{FieldTypeKey: "image"}}
	for _, e := range []*metadata.ConfigEntity{isbn, cover} {
		if err := s.CreateEntity(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	media := &metadata.Group{Name: "Media", Order: 4, Collapsed: true}
	if err := s.SaveGroup(ctx, media); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignGroup(ctx, cover.ID, media.ID); err != nil {
		t.Fatal(err)
	}

	fields, err := s.FieldsByRefs(ctx, []string{isbn.ID, "cover", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	want := []metadata.FieldEntity{
		{ID: cover.ID, Slug: "cover", Label: "Cover", Type: metadata.FieldImage, MenuOrder: 1, GroupRef: "Media"},
		{ID: isbn.ID, Slug: "isbn", Label: "ISBN", Type: metadata.FieldText, Required: true, Description: "Book number", MenuOrder: 2},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	g, err := s.GroupForField(ctx, cover.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(media, g); diff != "" {
		t.Fatalf("group mismatch (-want +got):\n%s", diff)
	}
	if g, err := s.GroupForField(ctx, isbn.ID); err != nil || g != nil {
		t.Fatalf("expected no group for isbn, got %v, %v", g, err)
	}

	// Saving by name updates in place.
	again := &metadata.Group{Name: "Media", Order: 9}
	if err := s.SaveGroup(ctx, again); err != nil {
		t.Fatal(err)
	}
	if again.ID != media.ID {
		t.Fatalf("expected upsert to keep id %s, got %s", media.ID, again.ID)
	}
}

func TestStore_Ancestor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root := &metadata.ConfigEntity{Kind: metadata.KindOptionsPage, Name: "site"}
	if err := s.CreateEntity(ctx, root); err != nil {
		t.Fatal(err)
	}
	mid := &metadata.ConfigEntity{Kind: metadata.KindOptionsPage, Name: "social", ParentID: root.ID}
	if err := s.CreateEntity(ctx, mid); err != nil {
		t.Fatal(err)
	}
	leaf := &metadata.ConfigEntity{Kind: metadata.KindOptionsPage, Name: "twitter", ParentID: mid.ID}
	if err := s.CreateEntity(ctx, leaf); err != nil {
		t.Fatal(err)
	}

	if got, _ := s.Ancestor(ctx, leaf.ID); got != root.ID {
		t.Fatalf("Ancestor(leaf) = %q, want %q", got, root.ID)
	}
	if got, _ := s.Ancestor(ctx, root.ID); got != "" {
		t.Fatalf("Ancestor(root) = %q, want empty", got)
	}
}

func TestStore_DeleteAllConfiguration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	parent := &metadata.ConfigEntity{Kind: metadata.KindOptionsPage, Name: "site", RawAttributes: map[string]string{"a": "b"}}
	_ = s.CreateEntity(ctx, parent)
	_ = s.CreateEntity(ctx, &metadata.ConfigEntity{Kind: metadata.KindOptionsPage, Name: "child", ParentID: parent.ID})
	_ = s.SaveGroup(ctx, &metadata.Group{Name: "Media"})

	if err := s.DeleteAllConfiguration(ctx); err != nil {
		t.Fatal(err)
	}
	list, _ := s.ListEntities(ctx, metadata.KindOptionsPage)
	groups, _ := s.ListGroups(ctx)
	if len(list) != 0 || len(groups) != 0 {
		t.Fatalf("expected everything deleted, got %d entities and %d groups", len(list), len(groups))
	}
}

func TestStore_Options(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetOption(ctx, "wpx_admin_options"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetOption(ctx, "wpx_admin_options", "{}"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetOption(ctx, "wpx_admin_options", `{"a":1}`); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetOption(ctx, "wpx_admin_options"); v != `{"a":1}` {
		t.Fatalf("GetOption = %q", v)
	}
	if err := s.DeleteOption(ctx, "wpx_admin_options"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetOption(ctx, "wpx_admin_options"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected option deleted, got %v", err)
	}
}

func TestTransientBackend(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b := NewTransientBackend(s)
	now := time.Unix(1_700_000_000, 0)
	b.now = func() time.Time { return now }

	if err := b.Set(ctx, "wpx_cpts", []byte(`["book"]`), now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	v, ok, err := b.Get(ctx, "wpx_cpts")
	if err != nil || !ok || string(v) != `["book"]` {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := b.Get(ctx, "wpx_cpts"); ok {
		t.Fatal("expected expired transient to miss")
	}

	_ = b.Set(ctx, "a", []byte("1"), time.Time{})
	_ = b.Set(ctx, "b", []byte("2"), time.Time{})
	if err := b.Delete(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.Get(ctx, "a"); ok {
		t.Fatal("expected deleted transient to miss")
	}

	_ = b.Set(ctx, "c", []byte("3"), time.Time{})
	_ = b.Set(ctx, "d", []byte("4"), time.Time{})
	n, err := b.Purge(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Purge = %d, %v; want 2", n, err)
	}
	if _, ok, _ := b.Get(ctx, "c"); ok {
		t.Fatal("expected purged transient to miss")
	}
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.FindUserByEmail(ctx, "admin@localhost")
	if err != nil {
		t.Fatalf("expected seeded admin: %v", err)
	}
	if !u.Active || len(u.Roles) != 1 || u.Roles[0] != "administrator" {
		t.Fatalf("unexpected admin %+v", u)
	}
	if _, err := s.FindUserByEmail(ctx, "nobody@localhost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
