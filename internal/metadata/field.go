package metadata

// FieldType selects the renderer used for a field in the admin UI.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldCheckbox FieldType = "checkbox"
	FieldFile     FieldType = "file"
	FieldImage    FieldType = "image"
	FieldTinyMCE  FieldType = "tinymce"
	FieldUser     FieldType = "user"
	FieldPost     FieldType = "post"
	FieldTerm     FieldType = "term"
	FieldGallery  FieldType = "gallery"

	// Internal selectors used by the plugin's own configuration screens.
	FieldSelectUserRoles  FieldType = "wpx_select_user_roles"
	FieldSelectTypes      FieldType = "wpx_select_types"
	FieldSelectSupports   FieldType = "wpx_select_supports"
	FieldSelectTaxonomies FieldType = "wpx_select_taxonomies"
	FieldSelectFields     FieldType = "wpx_select_fields"
	FieldSelectObjectType FieldType = "wpx_select_object_type"
	FieldStates           FieldType = "wpx_states"
	FieldWPXText          FieldType = "wpx_text"
	FieldCPTRewrite       FieldType = "wpx_cpt_rewrite"
	FieldTaxonomyRewrite  FieldType = "wpx_taxonomy_rewrite"
	FieldCapabilities     FieldType = "wpx_capabilities"
)

// FieldEntity is a stored field definition referenced from a configuration
// entity's metaboxes attribute.
type FieldEntity struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	MenuOrder   int       `json:"menu_order"`
	GroupRef    string    `json:"group_ref,omitempty"`
}

// Group is a named bucket of fields with display settings.
type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
	Collapsed bool   `json:"collapsed"`
}

// DefaultGroupName holds fields that have no group.
const DefaultGroupName = "Settings"

// GroupSettings are the display settings carried with each metabox group.
type GroupSettings struct {
	Order     int  `json:"order"`
	Collapsed bool `json:"collapsed"`
}

// Metabox describes one field as attached to a registered entity.
type Metabox struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Field       FieldType `json:"field"`
	Required    bool      `json:"required"`
}

// MetaboxGroup is an ordered set of metaboxes under one group name.
type MetaboxGroup struct {
	Name     string        `json:"name"`
	Settings GroupSettings `json:"settings"`
	Fields   []Metabox     `json:"fields"`
}
