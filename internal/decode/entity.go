package decode

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"wpx-extend/internal/metadata"
)

// PostTypeLabelKeys are the individual label attributes a post type may
// carry instead of label_singular/label_plural.
var PostTypeLabelKeys = []string{
	"name", "singular_name", "menu_name", "all_items", "add_new", "add_new_item",
	"edit_item", "new_item", "view_item", "search_items", "not_found",
	"not_found_in_trash", "parent_item_colon",
}

// TaxonomyLabelKeys are the individual label attributes of a taxonomy.
var TaxonomyLabelKeys = []string{
	"name", "singular_name", "menu_name", "all_items", "edit_item", "view_item",
	"update_item", "add_new_item", "new_item_name", "parent_item", "parent_item_colon",
	"search_items", "popular_items", "separate_items_with_commas",
	"add_or_remove_items", "choose_from_most_used", "not_found",
}

// Decoder builds registration arguments from stored entities.
type Decoder struct {
	log zerolog.Logger
}

func NewDecoder(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Decode converts e into registration arguments for its kind. Field
// entities and unknown kinds yield nil.
func (d *Decoder) Decode(e metadata.ConfigEntity) *metadata.RegistrationArgs {
	switch e.Kind {
	case metadata.KindPostType:
		return d.PostType(e)
	case metadata.KindTaxonomy:
		return d.Taxonomy(e)
	case metadata.KindOptionsPage:
		return d.OptionsPage(e)
	}
	return nil
}

// PostType decodes a post type entity.
func (d *Decoder) PostType(e metadata.ConfigEntity) *metadata.RegistrationArgs {
	attrs := Attributes(e.RawAttributes, metadata.KindPostType.Prefix())
	delete(attrs, "metaboxes")

	args := &metadata.RegistrationArgs{
		Kind:    metadata.KindPostType,
		Name:    e.Name,
		Builtin: metadata.IsBuiltin(metadata.KindPostType, e.Name),
	}

	// Booleans pass through: supports=false disables every feature.
	for _, key := range []string{"supports", "taxonomies"} {
		if _, isBool := attrs[key].(bool); attrs.Has(key) && !isBool {
			attrs[key] = nonNil(attrs.List(key))
		}
	}

	if !(attrs.Has("label_singular") && attrs.Has("label_plural")) {
		args.Labels = extractLabels(attrs, PostTypeLabelKeys)
	}

	if attrs.Has("menu_position") {
		if n, err := strconv.Atoi(attrs.String("menu_position")); err == nil {
			attrs["menu_position"] = n
		} else {
			delete(attrs, "menu_position")
		}
	}

	if attrs.Has("rewrite") {
		if rw, ok := DecodePostTypeRewrite(attrs["rewrite"]); ok {
			args.Rewrite = rw
		}
		delete(attrs, "rewrite")
	}

	if attrs.Has("capabilities") {
		args.Capabilities = d.capabilities(e, attrs["capabilities"], PostTypeCapabilities)
		delete(attrs, "capabilities")
	}

	args.Args = map[string]any(attrs)
	return args
}

// Taxonomy decodes a taxonomy entity.
func (d *Decoder) Taxonomy(e metadata.ConfigEntity) *metadata.RegistrationArgs {
	attrs := Attributes(e.RawAttributes, metadata.KindTaxonomy.Prefix())
	delete(attrs, "register_metaboxes")

	args := &metadata.RegistrationArgs{
		Kind:        metadata.KindTaxonomy,
		Name:        e.Name,
		Builtin:     metadata.IsBuiltin(metadata.KindTaxonomy, e.Name),
		ObjectTypes: attrs.List("object_type"),
	}
	delete(attrs, "object_type")

	if !(attrs.Has("label_singular") && attrs.Has("label_plural")) {
		args.Labels = extractLabels(attrs, TaxonomyLabelKeys)
	}

	if attrs.Has("rewrite") {
		if rw, ok := DecodeTaxonomyRewrite(attrs["rewrite"]); ok {
			args.Rewrite = rw
		}
		delete(attrs, "rewrite")
	}

	if attrs.Has("capabilities") {
		args.Capabilities = d.capabilities(e, attrs["capabilities"], TaxonomyCapabilities)
		delete(attrs, "capabilities")
	}

	args.Args = map[string]any(attrs)
	return args
}

// OptionsPage decodes an options page entity. Title and menu ancestry come
// from the entity record, not its attributes, and are filled in by callers.
func (d *Decoder) OptionsPage(e metadata.ConfigEntity) *metadata.RegistrationArgs {
	prefix := metadata.KindOptionsPage.Prefix()
	attrs := Attributes(e.RawAttributes, prefix)
	delete(attrs, "register_metaboxes")
	delete(attrs, "validation")

	return &metadata.RegistrationArgs{
		Kind:       metadata.KindOptionsPage,
		Name:       e.Name,
		Validation: ValidationRoutines(e.RawAttributes[prefix+"validation"]),
		Args:       map[string]any(attrs),
	}
}

func (d *Decoder) capabilities(e metadata.ConfigEntity, v any, names []string) metadata.CapabilityMap {
	caps, overflow := DecodeCapabilities(v, names)
	if overflow > 0 {
		d.log.Warn().
			Str("entity", e.Name).
			Str("kind", string(e.Kind)).
			Int("discarded", overflow).
			Msg("capability positions beyond the applied set were discarded")
	}
	return caps
}

// ValidationRoutines parses newline-separated "field,expression" pairs.
// Everything after the first separator belongs to the expression.
func ValidationRoutines(raw string) []metadata.ValidationRoutine {
	var out []metadata.ValidationRoutine
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		field, expression, ok := strings.Cut(line, Separator)
		field, expression = strings.TrimSpace(field), strings.TrimSpace(expression)
		if !ok || field == "" || expression == "" {
			continue
		}
		out = append(out, metadata.ValidationRoutine{Field: field, Expression: expression})
	}
	return out
}

// MetaboxRefs reads the comma-joined field references attached to e.
func MetaboxRefs(e metadata.ConfigEntity) []string {
	raw := e.RawAttributes[e.Kind.MetaboxesKey()]
	var refs []string
	for _, ref := range strings.Split(raw, Separator) {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

func extractLabels(attrs metadata.Attributes, keys []string) map[string]string {
	var labels map[string]string
	for _, key := range keys {
		if !attrs.Has(key) {
			continue
		}
		if s := labelString(attrs[key]); s != "" {
			if labels == nil {
				labels = make(map[string]string)
			}
			labels[key] = s
		}
		delete(attrs, key)
	}
	return labels
}

// labelString undoes list splitting for labels that contained commas.
func labelString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, Separator)
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
