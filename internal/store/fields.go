package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wpx-extend/internal/metadata"
)

// Field attribute keys.
const (
	FieldTypeKey        = "_wpx_fields_type"
	FieldDescriptionKey = "_wpx_fields_description"
	FieldRequiredKey    = "_wpx_fields_required"
)

// FieldsByRefs returns the fields whose id or name appears in refs, ordered
// by menu order. Unknown refs are ignored.
func (s *Store) FieldsByRefs(ctx context.Context, refs []string) ([]metadata.FieldEntity, error) {
	if len(refs) == 0 {
		return []metadata.FieldEntity{}, nil
	}
	start := time.Now()

	pb := s.Dialect.NewParamBuilder()
	kind := pb.Add(string(metadata.KindField))
	byID := InList("e.id", pb, refs)
	byName := InList("e.name", pb, refs)
	query := fmt.Sprintf(`SELECT e.id, e.name, e.title, e.menu_order, COALESCE(g.name, '')
		FROM _config_entities e
		LEFT JOIN _field_groups fg ON fg.field_id = e.id
		LEFT JOIN _groups g ON g.id = fg.group_id
		WHERE e.kind = %s AND (%s OR %s)
		ORDER BY e.menu_order, e.name`, kind, byID, byName)

	rows, err := s.DB.QueryContext(ctx, query, pb.Params()...)
	if err != nil {
		s.observe("fields_by_refs", start, 0, err)
		return nil, fmt.Errorf("fields by refs: %w", err)
	}
	defer rows.Close()

	fields := []metadata.FieldEntity{}
	for rows.Next() {
		var f metadata.FieldEntity
		if err := rows.Scan(&f.ID, &f.Slug, &f.Label, &f.MenuOrder, &f.GroupRef); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range fields {
		attrs, err := s.GetRawAttributes(ctx, fields[i].ID)
		if err != nil {
			return nil, err
		}
		applyFieldAttributes(&fields[i], attrs)
	}
	s.observe("fields_by_refs", start, len(fields), nil)
	return fields, nil
}

func applyFieldAttributes(f *metadata.FieldEntity, attrs map[string]string) {
	f.Type = metadata.FieldType(attrs[FieldTypeKey])
	if f.Type == "" {
		f.Type = metadata.FieldText
	}
	f.Description = attrs[FieldDescriptionKey]
	f.Required = attrs[FieldRequiredKey] == "true" || attrs[FieldRequiredKey] == "1"
}

// ListFields returns every field ordered by menu order.
func (s *Store) ListFields(ctx context.Context) ([]metadata.FieldEntity, error) {
	entities, err := s.ListEntities(ctx, metadata.KindField)
	if err != nil {
		return nil, err
	}
	refs := make([]string, len(entities))
	for i, e := range entities {
		refs[i] = e.ID
	}
	return s.FieldsByRefs(ctx, refs)
}

const groupColumns = "g.id, g.name, g.sort_order, g.collapsed"

func scanGroup(row interface{ Scan(...any) error }) (*metadata.Group, error) {
	var g metadata.Group
	if err := row.Scan(&g.ID, &g.Name, &g.Order, &g.Collapsed); err != nil {
		return nil, err
	}
	return &g, nil
}

// GroupForField returns the group a field is assigned to, or nil.
func (s *Store) GroupForField(ctx context.Context, fieldID string) (*metadata.Group, error) {
	row := s.DB.QueryRowContext(ctx, s.q(
		`SELECT `+groupColumns+` FROM _groups g
		 JOIN _field_groups fg ON fg.group_id = g.id
		 WHERE fg.field_id = $1`), fieldID)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("group for field %s: %w", fieldID, err)
	}
	return g, nil
}

// ListGroups returns every group by descending order then name.
func (s *Store) ListGroups(ctx context.Context) ([]metadata.Group, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+groupColumns+` FROM _groups g ORDER BY g.sort_order DESC, g.name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	out := []metadata.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// GetGroupByName returns the named group.
func (s *Store) GetGroupByName(ctx context.Context, name string) (*metadata.Group, error) {
	g, err := scanGroup(s.DB.QueryRowContext(ctx, s.q(`SELECT `+groupColumns+` FROM _groups g WHERE g.name = $1`), name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", name, err)
	}
	return g, nil
}

// SaveGroup inserts g or updates it by name. The stored id is written back.
func (s *Store) SaveGroup(ctx context.Context, g *metadata.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	_, err := s.DB.ExecContext(ctx, s.q(
		`INSERT INTO _groups (id, name, sort_order, collapsed) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET sort_order = excluded.sort_order, collapsed = excluded.collapsed`),
		g.ID, g.Name, g.Order, g.Collapsed)
	if err != nil {
		return fmt.Errorf("save group %s: %w", g.Name, s.Dialect.MapError(err))
	}
	stored, err := s.GetGroupByName(ctx, g.Name)
	if err != nil {
		return err
	}
	g.ID = stored.ID
	return nil
}

// DeleteGroup removes a group; its fields become ungrouped.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	n, err := Exec(ctx, s.DB, s.q(`DELETE FROM _groups WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignGroup puts a field into a group. An empty groupID ungroups it.
func (s *Store) AssignGroup(ctx context.Context, fieldID, groupID string) error {
	if groupID == "" {
		_, err := s.DB.ExecContext(ctx, s.q(`DELETE FROM _field_groups WHERE field_id = $1`), fieldID)
		if err != nil {
			return fmt.Errorf("ungroup field %s: %w", fieldID, err)
		}
		return nil
	}
	_, err := s.DB.ExecContext(ctx, s.q(
		`INSERT INTO _field_groups (field_id, group_id) VALUES ($1, $2)
		 ON CONFLICT (field_id) DO UPDATE SET group_id = excluded.group_id`),
		fieldID, groupID)
	if err != nil {
		return fmt.Errorf("assign field %s to group %s: %w", fieldID, groupID, err)
	}
	return nil
}
