// Package decode turns the flat string attributes stored for a configuration
// entity into typed registration arguments.
//
// Decoding is permissive: unknown keys pass through, missing keys are simply
// absent, and short positional strings leave their trailing fields unset.
package decode

import (
	"strings"

	"wpx-extend/internal/metadata"
)

// Separator joins list values and positional settings in stored attributes.
const Separator = ","

// housekeeping keys are written by the host for its own bookkeeping and never
// describe a registration argument.
var housekeeping = map[string]struct{}{
	"_edit_lock":            {},
	"_edit_last":            {},
	"_wp_old_slug":          {},
	"_wp_trash_meta_status": {},
	"_wp_trash_meta_time":   {},
	"_wp_desired_post_slug": {},
	"_thumbnail_id":         {},
}

// IsHousekeeping reports whether key is host bookkeeping.
func IsHousekeeping(key string) bool {
	_, ok := housekeeping[key]
	return ok
}

// Attributes decodes raw attributes, stripping prefix from every key.
// Values containing Separator become lists, the exact strings "true" and
// "false" become booleans, and everything else stays a string.
func Attributes(raw map[string]string, prefix string) metadata.Attributes {
	out := make(metadata.Attributes, len(raw))
	for key, value := range raw {
		if IsHousekeeping(key) {
			continue
		}
		out[strings.TrimPrefix(key, prefix)] = Value(value)
	}
	return out
}

// Value decodes a single raw attribute value.
func Value(raw string) any {
	if strings.Contains(raw, Separator) {
		return strings.Split(raw, Separator)
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

// positions returns the positional elements of a decoded value. A scalar
// string is a single position.
func positions(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case bool:
		if val {
			return []string{"true"}
		}
		return []string{"false"}
	}
	return nil
}
