package decode

import (
	"strconv"
	"strings"

	"wpx-extend/internal/metadata"
)

// Post type rewrite positions.
const (
	ptRewriteSlug = iota
	ptRewriteWithFront
	ptRewriteFeeds
	ptRewritePages
	ptRewriteEPMask
	ptRewriteDisabled
)

// Taxonomy rewrite positions.
const (
	taxRewriteSlug = iota
	taxRewriteWithFront
	taxRewriteHierarchical
	taxRewriteEPMask
	taxRewriteDisabled
)

// PostTypeCapabilities is the positional order of post type capabilities.
var PostTypeCapabilities = []string{
	"edit_post",
	"read_post",
	"delete_post",
	"edit_posts",
	"edit_others_posts",
	"publish_posts",
	"read_private_posts",
}

// TaxonomyCapabilities is the positional order of taxonomy capabilities.
var TaxonomyCapabilities = []string{
	"manage_terms",
	"edit_terms",
	"delete_terms",
	"assign_terms",
}

// Positional is a comma-joined setting read by index. Reads past the end
// are unset rather than empty.
type Positional []string

// ParsePositional splits a decoded attribute value into positions.
func ParsePositional(v any) Positional {
	return Positional(positions(v))
}

func (p Positional) at(i int) (string, bool) {
	if i >= len(p) {
		return "", false
	}
	s := strings.TrimSpace(p[i])
	return s, s != ""
}

func (p Positional) str(i int) *string {
	s, ok := p.at(i)
	if !ok {
		return nil
	}
	return &s
}

func (p Positional) boolean(i int) *bool {
	s, ok := p.at(i)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &b
}

func (p Positional) integer(i int) *int {
	s, ok := p.at(i)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func (p Positional) truthy(i int) bool {
	s, _ := p.at(i)
	return s == "1" || s == "true"
}

// DecodePostTypeRewrite reads [slug, with_front, feeds, pages, ep_mask,
// disabled]. A truthy disabled flag wins over every other position. The
// second result is false when nothing is set.
func DecodePostTypeRewrite(v any) (*metadata.Rewrite, bool) {
	p := ParsePositional(v)
	if p.truthy(ptRewriteDisabled) {
		return metadata.DisabledRewrite(), true
	}
	spec := &metadata.PostTypeRewrite{
		Slug:      p.str(ptRewriteSlug),
		WithFront: p.boolean(ptRewriteWithFront),
		Feeds:     p.boolean(ptRewriteFeeds),
		Pages:     p.boolean(ptRewritePages),
		EPMask:    p.integer(ptRewriteEPMask),
	}
	if *spec == (metadata.PostTypeRewrite{}) {
		return nil, false
	}
	return &metadata.Rewrite{PostType: spec}, true
}

// DecodeTaxonomyRewrite reads [slug, with_front, hierarchical, ep_mask,
// disabled].
func DecodeTaxonomyRewrite(v any) (*metadata.Rewrite, bool) {
	p := ParsePositional(v)
	if p.truthy(taxRewriteDisabled) {
		return metadata.DisabledRewrite(), true
	}
	spec := &metadata.TaxonomyRewrite{
		Slug:         p.str(taxRewriteSlug),
		WithFront:    p.boolean(taxRewriteWithFront),
		Hierarchical: p.boolean(taxRewriteHierarchical),
		EPMask:       p.integer(taxRewriteEPMask),
	}
	if *spec == (metadata.TaxonomyRewrite{}) {
		return nil, false
	}
	return &metadata.Rewrite{Taxonomy: spec}, true
}

// DecodeCapabilities maps positions onto names. Empty positions are left
// out. The map is nil when no position is set. overflow counts set
// positions beyond len(names), which are discarded.
func DecodeCapabilities(v any, names []string) (caps metadata.CapabilityMap, overflow int) {
	p := ParsePositional(v)
	for i := range p {
		s, ok := p.at(i)
		if !ok {
			continue
		}
		if i >= len(names) {
			overflow++
			continue
		}
		if caps == nil {
			caps = make(metadata.CapabilityMap)
		}
		caps[names[i]] = s
	}
	return caps, overflow
}
