package metadata

import "fmt"

// Kind identifies what a configuration entity registers with the host.
type Kind string

const (
	KindPostType    Kind = "post_type"
	KindTaxonomy    Kind = "taxonomy"
	KindOptionsPage Kind = "options_page"

	// KindField is persisted alongside configuration entities but is never
	// registered on its own.
	KindField Kind = "field"
)

// RegistrableKinds lists the kinds the pipeline registers, in run order.
var RegistrableKinds = []Kind{KindPostType, KindTaxonomy, KindOptionsPage}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPostType, KindTaxonomy, KindOptionsPage, KindField:
		return true
	}
	return false
}

// Prefix returns the attribute key prefix stored for entities of this kind.
func (k Kind) Prefix() string {
	switch k {
	case KindPostType:
		return "_wpx_cpt_"
	case KindTaxonomy:
		return "_wpx_taxonomy_"
	case KindOptionsPage:
		return "_wpx_options_"
	case KindField:
		return "_wpx_fields_"
	}
	return ""
}

// MetaboxesKey is the raw attribute key holding the comma-joined field
// references attached to entities of this kind.
func (k Kind) MetaboxesKey() string {
	switch k {
	case KindPostType:
		return "_wpx_cpt_metaboxes"
	case KindTaxonomy:
		return "_wpx_taxonomy_register_metaboxes"
	case KindOptionsPage:
		return "_wpx_options_register_metaboxes"
	}
	return ""
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}

// ConfigEntity is a stored record that defines a post type, taxonomy or
// options page. Name is the slug used for registration.
type ConfigEntity struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"kind"`
	Name          string            `json:"name"`
	Title         string            `json:"title,omitempty"`
	ParentID      string            `json:"parent_id,omitempty"`
	MenuOrder     int               `json:"menu_order"`
	RawAttributes map[string]string `json:"attributes,omitempty"`
}

// Attributes is the decoded form of an entity's raw attributes. Values are
// string, []string or bool.
type Attributes map[string]any

// String returns the attribute as a string, or "" when absent or not a string.
func (a Attributes) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// List returns the attribute as a list. A scalar string becomes a one
// element list; an empty string yields nil.
func (a Attributes) List(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Has reports whether key is present.
func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}
