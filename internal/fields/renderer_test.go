package fields

import (
	"html/template"
	"strings"
	"testing"

	"wpx-extend/internal/metadata"
)

func TestResolve_FallsBackToText(t *testing.T) {
	r := NewRegistry()
	if r.Has("color_picker") {
		t.Fatal("unexpected renderer for an unregistered type")
	}
	out, err := r.Resolve("color_picker").Render(Field{Metabox: metadata.Metabox{ID: "accent"}, Value: "#fff"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `type="text"`) || !strings.Contains(string(out), `name="accent"`) {
		t.Fatalf("expected text input, got %s", out)
	}
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	custom := RendererFunc(func(f Field) (template.HTML, error) {
		return template.HTML("<input type=\"color\" />"), nil
	})
	if err := r.Register("color_picker", custom); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("color_picker", custom); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := r.Register(metadata.FieldText, custom); err == nil {
		t.Fatal("bundled renderers cannot be replaced")
	}
	out, _ := r.Resolve("color_picker").Render(Field{})
	if out != `<input type="color" />` {
		t.Fatalf("custom renderer not used: %s", out)
	}
}

func TestRenderField(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		metabox metadata.Metabox
		value   string
		want    []string
		notWant []string
	}{
		{
			name:    "escapes value",
			metabox: metadata.Metabox{ID: "_book_isbn", Label: "ISBN", Field: metadata.FieldText},
			value:   `"><script>alert(1)</script>`,
			want:    []string{`<label for="_book_isbn">ISBN</label>`, "&lt;script&gt;"},
			notWant: []string{"<script>"},
		},
		{
			name:    "checked checkbox",
			metabox: metadata.Metabox{ID: "featured", Field: metadata.FieldCheckbox, Required: true},
			value:   "1",
			want:    []string{`checked="checked"`, "form-required", `value="0"`},
		},
		{
			name:    "sanitized description",
			metabox: metadata.Metabox{ID: "bio", Field: metadata.FieldTextarea, Description: `Short <b>bio</b><script>x()</script>`},
			want:    []string{"<b>bio</b>", `<p class="description">`},
			notWant: []string{"<script>"},
		},
		{
			name:    "unsafe image url",
			metabox: metadata.Metabox{ID: "cover", Field: metadata.FieldImage},
			value:   "javascript:alert(1)",
			want:    []string{"#ZgotmplZ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.RenderField(tt.metabox, tt.value)
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(string(out), w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(string(out), nw) {
					t.Errorf("output contains %q:\n%s", nw, out)
				}
			}
		})
	}
}

func TestRenderGroups(t *testing.T) {
	r := NewRegistry()
	groups := []metadata.MetaboxGroup{
		{Name: "Media", Settings: metadata.GroupSettings{Order: 2, Collapsed: true}, Fields: []metadata.Metabox{{ID: "cover", Label: "Cover", Field: metadata.FieldImage}}},
		{Name: "Settings", Fields: []metadata.Metabox{{ID: "isbn", Label: "ISBN", Field: metadata.FieldText}}},
	}

	out, err := r.RenderGroups(groups, map[string]string{"isbn": "978"})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	media, settings := strings.Index(s, "<h3>Media</h3>"), strings.Index(s, "<h3>Settings</h3>")
	if media < 0 || settings < 0 || media > settings {
		t.Fatalf("groups not rendered in order:\n%s", s)
	}
	if !strings.Contains(s, "wpx-group closed") {
		t.Fatal("collapsed group should be closed")
	}
	if !strings.Contains(s, `value="978"`) {
		t.Fatal("stored value not rendered")
	}
}
