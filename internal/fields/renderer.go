// Package fields renders metabox fields to HTML fragments. Renderers are
// looked up by field type; unknown types fall back to the text renderer.
package fields

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"wpx-extend/internal/metadata"
)

// Field is what a renderer receives: the metabox definition plus the
// stored value.
type Field struct {
	Metabox metadata.Metabox
	Value   string
}

// Renderer produces the input markup of one field type.
type Renderer interface {
	Render(f Field) (template.HTML, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(f Field) (template.HTML, error)

func (fn RendererFunc) Render(f Field) (template.HTML, error) { return fn(f) }

var (
	descriptionPolicyOnce sync.Once
	descriptionPolicy     *bluemonday.Policy
)

// SanitizeDescription strips unsafe markup from a field description.
func SanitizeDescription(raw string) template.HTML {
	descriptionPolicyOnce.Do(func() {
		descriptionPolicy = bluemonday.UGCPolicy()
	})
	return template.HTML(strings.TrimSpace(descriptionPolicy.Sanitize(raw)))
}

var inputTemplates = map[metadata.FieldType]string{
	metadata.FieldText:     `<input class="input textfield" type="text" name="{{.Metabox.ID}}" value="{{.Value}}" />`,
	metadata.FieldTextarea: `<textarea class="input textarea" rows="5" cols="50" name="{{.Metabox.ID}}">{{.Value}}</textarea>`,
	metadata.FieldCheckbox: `<input type="hidden" name="{{.Metabox.ID}}" value="0" />` +
		`<input type="checkbox" class="checkbox input" name="{{.Metabox.ID}}" value="1"{{if eq .Value "1"}} checked="checked"{{end}} />`,
	metadata.FieldFile:    `<input class="wpx-media input file" type="text" name="{{.Metabox.ID}}" value="{{.Value}}" />`,
	metadata.FieldImage:   `<input class="wpx-media input file" type="text" name="{{.Metabox.ID}}" value="{{.Value}}" />{{if .Value}}<img class="wpx-preview" src="{{.Value}}" alt="" />{{end}}`,
	metadata.FieldTinyMCE: `<textarea class="input tinymce wp-editor-area" rows="10" name="{{.Metabox.ID}}">{{.Value}}</textarea>`,
}

// templateRenderer renders a single html/template.
type templateRenderer struct {
	tmpl *template.Template
}

func newTemplateRenderer(name, text string) *templateRenderer {
	return &templateRenderer{tmpl: template.Must(template.New(name).Parse(text))}
}

func (r *templateRenderer) Render(f Field) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, f); err != nil {
		return "", fmt.Errorf("render %s: %w", f.Metabox.ID, err)
	}
	return template.HTML(buf.String()), nil
}

// Registry maps field types to renderers.
type Registry struct {
	mu        sync.RWMutex
	renderers map[metadata.FieldType]Renderer
}

// NewRegistry returns a registry with the bundled renderers.
func NewRegistry() *Registry {
	r := &Registry{renderers: make(map[metadata.FieldType]Renderer)}
	for t, text := range inputTemplates {
		r.renderers[t] = newTemplateRenderer(string(t), text)
	}
	return r
}

// Register adds a renderer for t. Registering a type twice is an error.
func (r *Registry) Register(t metadata.FieldType, renderer Renderer) error {
	if t == "" || renderer == nil {
		return fmt.Errorf("fields: type and renderer are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[t]; exists {
		return fmt.Errorf("fields: renderer for %q already registered", t)
	}
	r.renderers[t] = renderer
	return nil
}

// Resolve returns the renderer for t, or the text renderer.
func (r *Registry) Resolve(t metadata.FieldType) Renderer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if renderer, ok := r.renderers[t]; ok {
		return renderer
	}
	return r.renderers[metadata.FieldText]
}

// Has reports whether t has its own renderer.
func (r *Registry) Has(t metadata.FieldType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.renderers[t]
	return ok
}

// Types lists the registered field types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.renderers))
	for t := range r.renderers {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

var containerTmpl = template.Must(template.New("container").Parse(
	`<div class="meta-{{.ID}} wpx-fields {{.Type}}{{if .Required}} form-required{{end}} form-field">` +
		`<div class="column-left"><label for="{{.ID}}">{{.Label}}</label></div>` +
		`<div class="column-right">{{.Input}}{{if .Description}}<p class="description"><em>{{.Description}}</em></p>{{end}}</div>` +
		`</div>`))

var sectionTmpl = template.Must(template.New("section").Parse(
	`<div class="postbox wpx-group{{if .Collapsed}} closed{{end}}"><h3>{{.Name}}</h3>{{range .Fields}}{{.}}{{end}}</div>`))

// RenderField renders one field with its label and description.
func (r *Registry) RenderField(m metadata.Metabox, value string) (template.HTML, error) {
	input, err := r.Resolve(m.Field).Render(Field{Metabox: m, Value: value})
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = containerTmpl.Execute(&buf, map[string]any{
		"ID":          m.ID,
		"Type":        string(m.Field),
		"Required":    m.Required,
		"Label":       m.Label,
		"Input":       input,
		"Description": SanitizeDescription(m.Description),
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", m.ID, err)
	}
	return template.HTML(buf.String()), nil
}

// RenderGroups renders metabox groups in order. values holds stored values
// keyed by metabox id.
func (r *Registry) RenderGroups(groups []metadata.MetaboxGroup, values map[string]string) (template.HTML, error) {
	var buf bytes.Buffer
	for _, g := range groups {
		rendered := make([]template.HTML, 0, len(g.Fields))
		for _, m := range g.Fields {
			html, err := r.RenderField(m, values[m.ID])
			if err != nil {
				return "", err
			}
			rendered = append(rendered, html)
		}
		err := sectionTmpl.Execute(&buf, map[string]any{
			"Name":      g.Name,
			"Collapsed": g.Settings.Collapsed,
			"Fields":    rendered,
		})
		if err != nil {
			return "", fmt.Errorf("render group %s: %w", g.Name, err)
		}
	}
	return template.HTML(buf.String()), nil
}
