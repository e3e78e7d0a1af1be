// Package metabox arranges an entity's fields into ordered metabox groups.
package metabox

import (
	"sort"

	"wpx-extend/internal/metadata"
)

// GroupLookup resolves the group a field belongs to. It returns nil for
// ungrouped fields.
type GroupLookup func(metadata.FieldEntity) *metadata.Group

// IDFunc derives the metabox id of a field.
type IDFunc func(metadata.FieldEntity) string

// SlugID uses the bare field slug, as taxonomies and options pages do.
func SlugID(f metadata.FieldEntity) string { return f.Slug }

// PostTypeID prefixes field slugs with the post type name.
func PostTypeID(postType string) IDFunc {
	return func(f metadata.FieldEntity) string {
		return "_" + postType + "_" + f.Slug
	}
}

// Sort groups fields by their resolved group. Groups come out in descending
// order with ties kept in first-encounter order; fields keep their input
// order inside each group. Fields without a group go to "Settings" with
// order 0. When a group is resolved several times with different orders,
// the highest order is kept.
func Sort(fields []metadata.FieldEntity, lookup GroupLookup, id IDFunc) []metadata.MetaboxGroup {
	if id == nil {
		id = SlugID
	}

	var groups []*metadata.MetaboxGroup
	index := make(map[string]int)

	for _, f := range fields {
		var g *metadata.Group
		if lookup != nil {
			g = lookup(f)
		}
		name := metadata.DefaultGroupName
		settings := metadata.GroupSettings{}
		if g != nil && g.Name != "" {
			name = g.Name
			settings = metadata.GroupSettings{Order: g.Order, Collapsed: g.Collapsed}
		}

		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, &metadata.MetaboxGroup{Name: name, Settings: settings})
		} else if settings.Order > groups[i].Settings.Order {
			groups[i].Settings = settings
		}

		groups[i].Fields = append(groups[i].Fields, metadata.Metabox{
			ID:          id(f),
			Label:       f.Label,
			Description: f.Description,
			Field:       f.Type,
			Required:    f.Required,
		})
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Settings.Order > groups[b].Settings.Order
	})

	out := make([]metadata.MetaboxGroup, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out
}
