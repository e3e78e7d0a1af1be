package metadata

import (
	"errors"
	"testing"
)

func TestRegistry_RegisterPostType(t *testing.T) {
	reg := NewRegistry()
	args := &RegistrationArgs{Kind: KindPostType, Name: "book", Args: map[string]any{"public": true}}

	if err := reg.RegisterPostType("book", args); err != nil {
		t.Fatalf("register: %v", err)
	}
	got := reg.PostType("book")
	if got == nil || got.Args["public"] != true {
		t.Fatalf("expected book to be registered, got %+v", got)
	}
}

func TestRegistry_RejectsLongNames(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterPostType("a_post_type_name_that_is_too_long", &RegistrationArgs{})
	if !errors.Is(err, ErrRegistrationRejected) {
		t.Fatalf("expected ErrRegistrationRejected, got %v", err)
	}
	err = reg.RegisterTaxonomy("", []string{"post"}, &RegistrationArgs{})
	if !errors.Is(err, ErrRegistrationRejected) {
		t.Fatalf("expected ErrRegistrationRejected for empty taxonomy, got %v", err)
	}
}

func TestRegistry_BuiltinOnlyReceivesMetaboxes(t *testing.T) {
	reg := NewRegistry()
	args := &RegistrationArgs{
		Kind:      KindPostType,
		Name:      "post",
		Args:      map[string]any{"public": false},
		Metaboxes: []MetaboxGroup{{Name: DefaultGroupName}},
	}
	if err := reg.RegisterPostType("post", args); err != nil {
		t.Fatalf("register: %v", err)
	}

	got := reg.PostType("post")
	if !got.Builtin {
		t.Fatal("expected post to stay builtin")
	}
	if got.Args != nil {
		t.Fatalf("expected builtin args untouched, got %v", got.Args)
	}
	if len(got.Metaboxes) != 1 {
		t.Fatalf("expected metaboxes to be attached, got %d", len(got.Metaboxes))
	}
}

func TestRegistry_TaxonomyObjectTypes(t *testing.T) {
	reg := NewRegistry()
	objectTypes := []string{"book", "post"}
	if err := reg.RegisterTaxonomy("genre", objectTypes, &RegistrationArgs{Name: "genre"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	objectTypes[0] = "mutated"

	got := reg.Taxonomy("genre")
	if got.ObjectTypes[0] != "book" {
		t.Fatalf("expected object types to be copied, got %v", got.ObjectTypes)
	}
}

func TestRegistry_ResetKeepsBuiltins(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterOptionsPage("site", &RegistrationArgs{Name: "site"})
	reg.Reset()

	if reg.OptionsPage("site") != nil {
		t.Fatal("expected options page to be dropped")
	}
	if len(reg.All(KindPostType)) != 2 || len(reg.All(KindTaxonomy)) != 2 {
		t.Fatal("expected builtins to survive reset")
	}
	if all := reg.All(KindPostType); all[0].Name != "page" || all[1].Name != "post" {
		t.Fatalf("expected sorted builtins, got %s, %s", all[0].Name, all[1].Name)
	}
}

func TestRewrite_MarshalJSON(t *testing.T) {
	slug := "books"
	cases := []struct {
		name string
		in   Rewrite
		want string
	}{
		{"disabled", Rewrite{Disabled: true}, "false"},
		{"post type", Rewrite{PostType: &PostTypeRewrite{Slug: &slug}}, `{"slug":"books"}`},
		{"empty", Rewrite{}, "true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.in.MarshalJSON()
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tc.want {
				t.Fatalf("got %s, want %s", b, tc.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"post_type", "taxonomy", "options_page", "field"} {
		if k, err := ParseKind(s); err != nil || string(k) != s {
			t.Errorf("ParseKind(%q) = %q, %v", s, k, err)
		}
	}
	if _, err := ParseKind("widget"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
