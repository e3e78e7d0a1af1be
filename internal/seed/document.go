// Package seed imports declarative YAML configuration into the store and
// keeps it in sync with the files on disk.
package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"wpx-extend/internal/metadata"
)

// Document is one seed file.
type Document struct {
	Groups       []GroupSpec  `yaml:"groups"`
	Fields       []FieldSpec  `yaml:"fields"`
	PostTypes    []EntitySpec `yaml:"post_types"`
	Taxonomies   []EntitySpec `yaml:"taxonomies"`
	OptionsPages []EntitySpec `yaml:"options_pages"`
}

type GroupSpec struct {
	Name      string `yaml:"name" json:"name"`
	Order     int    `yaml:"order" json:"order,omitempty"`
	Collapsed bool   `yaml:"collapsed" json:"collapsed,omitempty"`
}

type FieldSpec struct {
	Name        string `yaml:"name" json:"name"`
	Label       string `yaml:"label" json:"label,omitempty"`
	Type        string `yaml:"type" json:"type,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
	Required    bool   `yaml:"required" json:"required,omitempty"`
	Group       string `yaml:"group" json:"group,omitempty"`
	MenuOrder   int    `yaml:"menu_order" json:"menu_order,omitempty"`
}

// EntitySpec describes a post type, taxonomy or options page. Attribute
// keys are written without their kind prefix.
type EntitySpec struct {
	Name       string                       `yaml:"name" json:"name"`
	Title      string                       `yaml:"title" json:"title,omitempty"`
	Parent     string                       `yaml:"parent" json:"parent,omitempty"`
	MenuOrder  int                          `yaml:"menu_order" json:"menu_order,omitempty"`
	Attributes map[string]string            `yaml:"attributes" json:"attributes,omitempty"`
	Metaboxes  []string                     `yaml:"metaboxes" json:"metaboxes,omitempty"`
	Validation []metadata.ValidationRoutine `yaml:"validation" json:"validation,omitempty"`
}

// Parse decodes a seed document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &doc, nil
}

// Load reads path. A directory loads every .yaml and .yml file in it in
// name order and merges them.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return loadFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsSeedFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := &Document{}
	for _, name := range names {
		doc, err := loadFile(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		merged.merge(doc)
	}
	return merged, nil
}

// IsSeedFile reports whether name has a YAML extension.
func IsSeedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func loadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func (d *Document) merge(other *Document) {
	d.Groups = append(d.Groups, other.Groups...)
	d.Fields = append(d.Fields, other.Fields...)
	d.PostTypes = append(d.PostTypes, other.PostTypes...)
	d.Taxonomies = append(d.Taxonomies, other.Taxonomies...)
	d.OptionsPages = append(d.OptionsPages, other.OptionsPages...)
}

// Add appends spec to the list of kind.
func (d *Document) Add(kind metadata.Kind, spec EntitySpec) {
	switch kind {
	case metadata.KindPostType:
		d.PostTypes = append(d.PostTypes, spec)
	case metadata.KindTaxonomy:
		d.Taxonomies = append(d.Taxonomies, spec)
	case metadata.KindOptionsPage:
		d.OptionsPages = append(d.OptionsPages, spec)
	}
}
