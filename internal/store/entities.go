package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"wpx-extend/internal/metadata"
)

// maxAncestorDepth bounds parent walks so a cycle cannot loop forever.
const maxAncestorDepth = 32

const entityColumns = "id, kind, name, title, COALESCE(parent_id, ''), menu_order"

func scanEntity(row interface{ Scan(...any) error }) (metadata.ConfigEntity, error) {
	var e metadata.ConfigEntity
	var kind string
	err := row.Scan(&e.ID, &kind, &e.Name, &e.Title, &e.ParentID, &e.MenuOrder)
	e.Kind = metadata.Kind(kind)
	return e, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateEntity inserts e with its raw attributes. An empty ID is generated.
func (s *Store) CreateEntity(ctx context.Context, e *metadata.ConfigEntity) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	start := time.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO _config_entities (id, kind, name, title, parent_id, menu_order)
			 VALUES ($1, $2, $3, $4, $5, $6)`),
			e.ID, string(e.Kind), e.Name, e.Title, nullable(e.ParentID), e.MenuOrder)
		if err != nil {
			return fmt.Errorf("insert entity %s: %w", e.Name, s.Dialect.MapError(err))
		}
		return s.replaceMeta(ctx, tx, e.ID, e.RawAttributes)
	})
	s.observe("create_entity", start, 1, err)
	return err
}

// UpdateEntity rewrites the record and replaces all of its attributes.
func (s *Store) UpdateEntity(ctx context.Context, e *metadata.ConfigEntity) error {
	start := time.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := Exec(ctx, tx, s.q(
			`UPDATE _config_entities
			 SET name = $2, title = $3, parent_id = $4, menu_order = $5, updated_at = CURRENT_TIMESTAMP
			 WHERE id = $1`),
			e.ID, e.Name, e.Title, nullable(e.ParentID), e.MenuOrder)
		if err != nil {
			return fmt.Errorf("update entity %s: %w", e.ID, s.Dialect.MapError(err))
		}
		if n == 0 {
			return ErrNotFound
		}
		return s.replaceMeta(ctx, tx, e.ID, e.RawAttributes)
	})
	s.observe("update_entity", start, 1, err)
	return err
}

func (s *Store) replaceMeta(ctx context.Context, tx *sql.Tx, id string, attrs map[string]string) error {
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM _entity_meta WHERE entity_id = $1`), id); err != nil {
		return fmt.Errorf("clear meta: %w", err)
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.setMeta(ctx, tx, id, k, attrs[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) setMeta(ctx context.Context, q Querier, id, key, value string) error {
	_, err := q.ExecContext(ctx, s.q(
		`INSERT INTO _entity_meta (entity_id, meta_key, meta_value) VALUES ($1, $2, $3)
		 ON CONFLICT (entity_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`),
		id, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// SetMeta writes a single attribute.
func (s *Store) SetMeta(ctx context.Context, id, key, value string) error {
	return s.setMeta(ctx, s.DB, id, key, value)
}

// DeleteEntity removes an entity and its attributes.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	start := time.Now()
	n, err := Exec(ctx, s.DB, s.q(`DELETE FROM _config_entities WHERE id = $1`), id)
	s.observe("delete_entity", start, int(n), err)
	if err != nil {
		return fmt.Errorf("delete entity %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEntity loads an entity with its raw attributes.
func (s *Store) GetEntity(ctx context.Context, id string) (*metadata.ConfigEntity, error) {
	row := s.DB.QueryRowContext(ctx, s.q(`SELECT `+entityColumns+` FROM _config_entities WHERE id = $1`), id)
	return s.loadEntity(ctx, row)
}

// GetEntityByName loads the entity of kind with the given name.
func (s *Store) GetEntityByName(ctx context.Context, kind metadata.Kind, name string) (*metadata.ConfigEntity, error) {
	row := s.DB.QueryRowContext(ctx, s.q(
		`SELECT `+entityColumns+` FROM _config_entities WHERE kind = $1 AND name = $2`), string(kind), name)
	return s.loadEntity(ctx, row)
}

func (s *Store) loadEntity(ctx context.Context, row *sql.Row) (*metadata.ConfigEntity, error) {
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	attrs, err := s.GetRawAttributes(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.RawAttributes = attrs
	return &e, nil
}

// ListEntities returns the entities of kind without attributes, ordered by
// menu order then name.
func (s *Store) ListEntities(ctx context.Context, kind metadata.Kind) ([]metadata.ConfigEntity, error) {
	start := time.Now()
	rows, err := s.DB.QueryContext(ctx, s.q(
		`SELECT `+entityColumns+` FROM _config_entities WHERE kind = $1 ORDER BY menu_order, name`), string(kind))
	if err != nil {
		s.observe("list_entities", start, 0, err)
		return nil, fmt.Errorf("list %s entities: %w", kind, err)
	}
	defer rows.Close()

	out := []metadata.ConfigEntity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	err = rows.Err()
	s.observe("list_entities", start, len(out), err)
	return out, err
}

// GetRawAttributes returns every stored attribute of an entity.
func (s *Store) GetRawAttributes(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.DB.QueryContext(ctx, s.q(
		`SELECT meta_key, meta_value FROM _entity_meta WHERE entity_id = $1`), id)
	if err != nil {
		return nil, fmt.Errorf("get attributes %s: %w", id, err)
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs[k] = v
	}
	return attrs, rows.Err()
}

// Ancestor returns the id of the top-most ancestor of id, or "" when the
// entity has no parent.
func (s *Store) Ancestor(ctx context.Context, id string) (string, error) {
	top := ""
	current := id
	for depth := 0; depth < maxAncestorDepth; depth++ {
		var parent string
		err := s.DB.QueryRowContext(ctx, s.q(
			`SELECT COALESCE(parent_id, '') FROM _config_entities WHERE id = $1`), current).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("ancestor of %s: %w", id, err)
		}
		if parent == "" {
			break
		}
		top, current = parent, parent
	}
	return top, nil
}

// DeleteAllConfiguration removes every entity, attribute and group.
func (s *Store) DeleteAllConfiguration(ctx context.Context) error {
	start := time.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM _field_groups`,
			`DELETE FROM _entity_meta`,
			`UPDATE _config_entities SET parent_id = NULL`,
			`DELETE FROM _config_entities`,
			`DELETE FROM _groups`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	})
	s.observe("delete_all_configuration", start, 0, err)
	return err
}
