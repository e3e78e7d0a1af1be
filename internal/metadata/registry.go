package metadata

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrRegistrationRejected is returned when the registry refuses an argument
// set, mirroring the host's own name checks.
var ErrRegistrationRejected = errors.New("registration rejected")

const (
	maxPostTypeNameLen = 20
	maxTaxonomyNameLen = 32
)

var builtinPostTypes = []string{"post", "page"}
var builtinTaxonomies = []string{"category", "post_tag"}

// Registry is the in-process registration target. It records every post
// type, taxonomy and options page registered during a pipeline run and is
// reset before each run.
type Registry struct {
	mu           sync.RWMutex
	postTypes    map[string]*RegistrationArgs
	taxonomies   map[string]*RegistrationArgs
	optionsPages map[string]*RegistrationArgs
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset drops everything except the builtin post types and taxonomies.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.postTypes = make(map[string]*RegistrationArgs)
	for _, name := range builtinPostTypes {
		r.postTypes[name] = &RegistrationArgs{Kind: KindPostType, Name: name, Builtin: true}
	}
	r.taxonomies = make(map[string]*RegistrationArgs)
	for _, name := range builtinTaxonomies {
		r.taxonomies[name] = &RegistrationArgs{Kind: KindTaxonomy, Name: name, Builtin: true}
	}
	r.optionsPages = make(map[string]*RegistrationArgs)
}

// IsBuiltin reports whether name is a host-provided post type or taxonomy.
func IsBuiltin(kind Kind, name string) bool {
	var names []string
	switch kind {
	case KindPostType:
		names = builtinPostTypes
	case KindTaxonomy:
		names = builtinTaxonomies
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// RegisterPostType records a post type. Builtins only receive metaboxes.
func (r *Registry) RegisterPostType(name string, args *RegistrationArgs) error {
	if name == "" || len(name) > maxPostTypeNameLen {
		return fmt.Errorf("%w: post type names must be between 1 and %d characters: %q",
			ErrRegistrationRejected, maxPostTypeNameLen, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postTypes[name] = mergeBuiltin(r.postTypes[name], args)
	return nil
}

// RegisterTaxonomy records a taxonomy attached to objectTypes.
func (r *Registry) RegisterTaxonomy(name string, objectTypes []string, args *RegistrationArgs) error {
	if name == "" || len(name) > maxTaxonomyNameLen {
		return fmt.Errorf("%w: taxonomy names must be between 1 and %d characters: %q",
			ErrRegistrationRejected, maxTaxonomyNameLen, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := mergeBuiltin(r.taxonomies[name], args)
	if !stored.Builtin {
		stored.ObjectTypes = append([]string(nil), objectTypes...)
	}
	r.taxonomies[name] = stored
	return nil
}

// RegisterOptionsPage records an options page.
func (r *Registry) RegisterOptionsPage(name string, args *RegistrationArgs) error {
	if name == "" {
		return fmt.Errorf("%w: options page needs a name", ErrRegistrationRejected)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.optionsPages[name] = args
	return nil
}

func mergeBuiltin(existing, args *RegistrationArgs) *RegistrationArgs {
	if existing == nil || !existing.Builtin {
		return args
	}
	merged := *existing
	merged.Metaboxes = args.Metaboxes
	return &merged
}

// PostType returns a registered post type, or nil.
func (r *Registry) PostType(name string) *RegistrationArgs {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.postTypes[name]
}

// Taxonomy returns a registered taxonomy, or nil.
func (r *Registry) Taxonomy(name string) *RegistrationArgs {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.taxonomies[name]
}

// OptionsPage returns a registered options page, or nil.
func (r *Registry) OptionsPage(name string) *RegistrationArgs {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.optionsPages[name]
}

// Lookup returns the registration of the given kind and name, or nil.
func (r *Registry) Lookup(kind Kind, name string) *RegistrationArgs {
	switch kind {
	case KindPostType:
		return r.PostType(name)
	case KindTaxonomy:
		return r.Taxonomy(name)
	case KindOptionsPage:
		return r.OptionsPage(name)
	}
	return nil
}

// All returns every registration of kind sorted by name.
func (r *Registry) All(kind Kind) []*RegistrationArgs {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var src map[string]*RegistrationArgs
	switch kind {
	case KindPostType:
		src = r.postTypes
	case KindTaxonomy:
		src = r.taxonomies
	case KindOptionsPage:
		src = r.optionsPages
	}
	out := make([]*RegistrationArgs, 0, len(src))
	for _, a := range src {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
