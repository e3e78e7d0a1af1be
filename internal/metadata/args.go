package metadata

import "encoding/json"

// PostTypeRewrite holds the positional rewrite settings of a post type.
// Nil fields were not set.
type PostTypeRewrite struct {
	Slug      *string `json:"slug,omitempty"`
	WithFront *bool   `json:"with_front,omitempty"`
	Feeds     *bool   `json:"feeds,omitempty"`
	Pages     *bool   `json:"pages,omitempty"`
	EPMask    *int    `json:"ep_mask,omitempty"`
}

// TaxonomyRewrite holds the positional rewrite settings of a taxonomy.
type TaxonomyRewrite struct {
	Slug         *string `json:"slug,omitempty"`
	WithFront    *bool   `json:"with_front,omitempty"`
	Hierarchical *bool   `json:"hierarchical,omitempty"`
	EPMask       *int    `json:"ep_mask,omitempty"`
}

// Rewrite is either disabled or exactly one of the per-kind specs.
type Rewrite struct {
	Disabled bool
	PostType *PostTypeRewrite
	Taxonomy *TaxonomyRewrite
}

// DisabledRewrite turns URL rewriting off for an entity.
func DisabledRewrite() *Rewrite { return &Rewrite{Disabled: true} }

// MarshalJSON encodes a disabled rewrite as false and otherwise the
// populated rewrite options.
func (r Rewrite) MarshalJSON() ([]byte, error) {
	switch {
	case r.Disabled:
		return []byte("false"), nil
	case r.PostType != nil:
		return json.Marshal(r.PostType)
	case r.Taxonomy != nil:
		return json.Marshal(r.Taxonomy)
	}
	return []byte("true"), nil
}

// CapabilityMap maps capability names to the capability granted for them.
type CapabilityMap map[string]string

// ValidationRoutine pairs an options-page field with the expression that
// validates it.
type ValidationRoutine struct {
	Field      string `json:"field"`
	Expression string `json:"expression"`
}

// RegistrationArgs is the normalized argument set handed to the registrar.
// Args only holds string, []string, bool and int values.
type RegistrationArgs struct {
	Kind         Kind                `json:"kind"`
	Name         string              `json:"name"`
	Builtin      bool                `json:"builtin,omitempty"`
	ObjectTypes  []string            `json:"object_types,omitempty"`
	Labels       map[string]string   `json:"labels,omitempty"`
	Rewrite      *Rewrite            `json:"rewrite,omitempty"`
	Capabilities CapabilityMap       `json:"capabilities,omitempty"`
	Metaboxes    []MetaboxGroup      `json:"metaboxes,omitempty"`
	Validation   []ValidationRoutine `json:"validation,omitempty"`
	Args         map[string]any      `json:"args,omitempty"`
}

// Arg returns a single normalized argument.
func (a *RegistrationArgs) Arg(key string) (any, bool) {
	v, ok := a.Args[key]
	return v, ok
}

// SetArg stores a normalized argument, allocating the map on first use.
func (a *RegistrationArgs) SetArg(key string, v any) {
	if a.Args == nil {
		a.Args = make(map[string]any)
	}
	a.Args[key] = v
}
