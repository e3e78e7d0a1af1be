// Package registration turns decoded configuration into calls against the
// host registration API.
package registration

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"wpx-extend/internal/logger"
	"wpx-extend/internal/metadata"
	"wpx-extend/internal/metrics"
)

// Registrar is the host registration API.
type Registrar interface {
	RegisterPostType(name string, args *metadata.RegistrationArgs) error
	RegisterTaxonomy(name string, objectTypes []string, args *metadata.RegistrationArgs) error
	RegisterOptionsPage(name string, args *metadata.RegistrationArgs) error
}

// OptionsPagePrefix prefixes the menu slug of every options page.
const OptionsPagePrefix = "wpx_options_"

// Options page defaults applied when the entity does not set them.
const (
	DefaultScreenIcon = "options-general"
	DefaultCapability = "delete_others_pages"
)

// postTypeArgs are the arguments register_post_type accepts. Labels,
// rewrite and capabilities travel in their own fields.
var postTypeArgs = map[string]bool{
	"label": true, "exclude_from_search": true, "description": true, "can_export": true,
	"register_meta_box_cb": true, "permalink_epmask": true, "map_meta_cap": true,
	"capability_type": true, "query_var": true, "publicly_queryable": true, "public": true,
	"menu_icon": true, "menu_position": true, "show_in_admin_bar": true, "show_in_menu": true,
	"show_in_nav_menus": true, "show_ui": true, "has_archive": true, "taxonomies": true,
	"hierarchical": true, "supports": true,
}

var taxonomyArgs = map[string]bool{
	"label": true, "public": true, "show_ui": true, "show_in_nav_menus": true,
	"show_tagcloud": true, "meta_box_cb": true, "show_admin_column": true, "hierarchical": true,
	"update_count_callback": true, "query_var": true, "sort": true,
}

// Emitter hands normalized arguments to a Registrar.
type Emitter struct {
	registrar Registrar
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

func NewEmitter(r Registrar, log zerolog.Logger, m *metrics.Metrics) *Emitter {
	return &Emitter{registrar: r, log: logger.Component(log, "registration"), metrics: m}
}

// Skipped reports whether Emit would do nothing for args.
func Skipped(args *metadata.RegistrationArgs) bool {
	if args == nil || args.Name == "" {
		return true
	}
	return args.Kind == metadata.KindTaxonomy && !args.Builtin && len(args.ObjectTypes) == 0
}

// Emit performs exactly one registration call for args. Entities without a
// name, and non-builtin taxonomies without object types, are skipped. The
// registrar's error is returned as is.
func (e *Emitter) Emit(ctx context.Context, args *metadata.RegistrationArgs) error {
	if Skipped(args) {
		if args != nil {
			e.metrics.RecordRegistration(string(args.Kind), metrics.StatusSkipped)
			e.log.Debug().Str("kind", string(args.Kind)).Str("name", args.Name).Msg("registration skipped")
		}
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n := Normalize(args)
	var err error
	switch n.Kind {
	case metadata.KindPostType:
		err = e.registrar.RegisterPostType(n.Name, n)
	case metadata.KindTaxonomy:
		err = e.registrar.RegisterTaxonomy(n.Name, n.ObjectTypes, n)
	case metadata.KindOptionsPage:
		err = e.registrar.RegisterOptionsPage(n.Name, n)
	default:
		e.metrics.RecordRegistration(string(n.Kind), metrics.StatusSkipped)
		return nil
	}

	status := metrics.StatusRegistered
	if err != nil {
		status = metrics.StatusFailed
	}
	e.metrics.RecordRegistration(string(n.Kind), status)
	logger.LogRegistration(e.log, string(n.Kind), n.Name, err)
	return err
}

// Normalize returns the argument set the registrar receives for args. The
// input is not modified.
func Normalize(args *metadata.RegistrationArgs) *metadata.RegistrationArgs {
	if args.Builtin {
		return &metadata.RegistrationArgs{
			Kind:      args.Kind,
			Name:      args.Name,
			Builtin:   true,
			Metaboxes: args.Metaboxes,
		}
	}

	n := *args
	n.Labels = copyLabels(args.Labels)
	src := args.Args

	switch args.Kind {
	case metadata.KindPostType:
		if singular, plural := stringArg(src, "label_singular"), stringArg(src, "label_plural"); singular != "" && plural != "" {
			n.Labels = PostTypeLabels(singular, plural)
		}
		n.Args = filter(src, postTypeArgs)
		if d := stringArg(src, "label_description"); d != "" {
			n.Args["description"] = d
		}
		if _, ok := n.Args["label"]; !ok {
			n.Args["label"] = args.Name
		}
	case metadata.KindTaxonomy:
		if singular, plural := stringArg(src, "label_singular"), stringArg(src, "label_plural"); singular != "" && plural != "" {
			n.Labels = TaxonomyLabels(singular, plural)
		}
		n.Args = filter(src, taxonomyArgs)
		n.ObjectTypes = append([]string(nil), args.ObjectTypes...)
	case metadata.KindOptionsPage:
		n.Args = filter(src, nil)
		setDefault(n.Args, "title", args.Name)
		setDefault(n.Args, "menu_label", args.Name)
		setDefault(n.Args, "screen_icon", DefaultScreenIcon)
		setDefault(n.Args, "capability", DefaultCapability)
		n.Args["page_id"] = OptionsPagePrefix + SanitizeKey(args.Name)
	}
	return &n
}

// PostTypeLabels expands a singular/plural pair into the full label set.
func PostTypeLabels(singular, plural string) map[string]string {
	return map[string]string{
		"name":               plural,
		"singular_name":      singular,
		"menu_name":          plural,
		"all_items":          plural,
		"add_new":            "Add New",
		"add_new_item":       "Add New " + singular,
		"edit_item":          "Edit " + singular,
		"new_item":           "New " + singular,
		"view_item":          "View " + singular,
		"search_items":       "Search " + plural,
		"not_found":          "No " + plural + " found",
		"not_found_in_trash": "No " + plural + " found in Trash",
		"parent_item_colon":  "Parent " + singular,
	}
}

// TaxonomyLabels expands a singular/plural pair into taxonomy labels. The
// taxonomy name label uses the singular form.
func TaxonomyLabels(singular, plural string) map[string]string {
	return map[string]string{
		"name":                       singular,
		"singular_name":              singular,
		"menu_name":                  plural,
		"all_items":                  "All " + plural,
		"edit_item":                  "Edit " + singular,
		"update_item":                "Update " + singular,
		"add_new_item":               "Add New " + singular,
		"new_item_name":              "New " + singular,
		"search_items":               "Search " + plural,
		"popular_items":              "Popular " + plural,
		"parent_item":                "Parent " + singular,
		"parent_item_colon":          "Parent " + singular,
		"separate_items_with_commas": "Separate " + plural + " with commas.",
		"add_or_remove_items":        "Add or remove " + plural,
		"choose_from_most_used":      "Choose from the most used " + plural + ".",
		"not_found":                  "No " + plural + " found.",
	}
}

// SanitizeKey lowercases s and keeps only a-z, 0-9, '_' and '-'.
func SanitizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// filter copies src keeping only allowed keys. A nil allow list keeps
// everything.
func filter(src map[string]any, allowed map[string]bool) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if allowed == nil || allowed[k] {
			out[k] = v
		}
	}
	return out
}

func setDefault(args map[string]any, key, value string) {
	if stringArg(args, key) == "" {
		args[key] = value
	}
}

// stringArg reads a textual argument. Values split on commas are joined
// back together.
func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	}
	return ""
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
