package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"wpx-extend/internal/cache"
	"wpx-extend/internal/logger"
	"wpx-extend/internal/metadata"
	"wpx-extend/internal/metrics"
	"wpx-extend/internal/store"
	"wpx-extend/internal/validation"
)

// ErrInvalid marks documents that reference unknown records or carry
// unusable values. Store failures are not wrapped with it.
var ErrInvalid = errors.New("invalid seed document")

// Result counts what an import wrote.
type Result struct {
	Groups   int `json:"groups"`
	Fields   int `json:"fields"`
	Entities int `json:"entities"`
}

// Importer upserts seed documents. After every import the cache is flushed
// and the reload hook runs.
type Importer struct {
	store     *store.Store
	cache     *cache.Cache
	evaluator *validation.Evaluator
	reload    func(context.Context) error
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

func NewImporter(s *store.Store, c *cache.Cache, reload func(context.Context) error, log zerolog.Logger, m *metrics.Metrics) *Importer {
	return &Importer{
		store:     s,
		cache:     c,
		evaluator: validation.NewEvaluator(),
		reload:    reload,
		log:       logger.Component(log, "seed"),
		metrics:   m,
	}
}

// ImportFile loads path and imports it.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	doc, err := Load(path)
	if err != nil {
		im.metrics.RecordSeedImport(err)
		return nil, err
	}
	return im.Import(ctx, doc)
}

// Import writes doc to the store. Entities are matched by kind and name,
// groups by name; existing records are updated in place. Writes are not
// atomic, so the cache is flushed and the reload hook runs even when the
// document fails partway.
func (im *Importer) Import(ctx context.Context, doc *Document) (*Result, error) {
	res, err := im.write(ctx, doc)
	im.metrics.RecordSeedImport(err)

	if _, ferr := im.cache.Flush(ctx); ferr != nil {
		return res, errors.Join(err, fmt.Errorf("flush cache: %w", ferr))
	}
	if im.reload != nil {
		if rerr := im.reload(ctx); rerr != nil {
			im.log.Warn().Err(rerr).Msg("reload after import reported errors")
		}
	}
	if err != nil {
		return res, err
	}
	im.log.Info().
		Int("groups", res.Groups).
		Int("fields", res.Fields).
		Int("entities", res.Entities).
		Msg("seed imported")
	return res, nil
}

func (im *Importer) write(ctx context.Context, doc *Document) (*Result, error) {
	res := &Result{}

	groupIDs := make(map[string]string)
	for _, g := range doc.Groups {
		if g.Name == "" {
			return res, fmt.Errorf("%w: group without a name", ErrInvalid)
		}
		group := &metadata.Group{Name: g.Name, Order: g.Order, Collapsed: g.Collapsed}
		if err := im.store.SaveGroup(ctx, group); err != nil {
			return res, err
		}
		groupIDs[g.Name] = group.ID
		res.Groups++
	}

	fieldIDs := make(map[string]string)
	for _, f := range doc.Fields {
		if f.Name == "" {
			return res, fmt.Errorf("%w: field without a name", ErrInvalid)
		}
		attrs := map[string]string{store.FieldTypeKey: f.Type}
		if f.Type == "" {
			attrs[store.FieldTypeKey] = string(metadata.FieldText)
		}
		if f.Description != "" {
			attrs[store.FieldDescriptionKey] = f.Description
		}
		if f.Required {
			attrs[store.FieldRequiredKey] = "true"
		}
		e := &metadata.ConfigEntity{Kind: metadata.KindField, Name: f.Name, Title: f.Label, MenuOrder: f.MenuOrder, RawAttributes: attrs}
		if err := im.upsert(ctx, e); err != nil {
			return res, err
		}
		fieldIDs[f.Name] = e.ID

		groupID := ""
		if f.Group != "" {
			var ok bool
			if groupID, ok = groupIDs[f.Group]; !ok {
				g, err := im.store.GetGroupByName(ctx, f.Group)
				if err != nil {
					return res, fmt.Errorf("%w: field %s: group %s: %w", ErrInvalid, f.Name, f.Group, err)
				}
				groupID = g.ID
			}
		}
		if err := im.store.AssignGroup(ctx, e.ID, groupID); err != nil {
			return res, err
		}
		res.Fields++
	}

	for _, set := range []struct {
		kind  metadata.Kind
		specs []EntitySpec
	}{
		{metadata.KindPostType, doc.PostTypes},
		{metadata.KindTaxonomy, doc.Taxonomies},
		{metadata.KindOptionsPage, doc.OptionsPages},
	} {
		for _, spec := range set.specs {
			e, err := im.entity(ctx, set.kind, spec, fieldIDs)
			if err != nil {
				return res, fmt.Errorf("%s %s: %w", set.kind, spec.Name, err)
			}
			if err := im.upsert(ctx, e); err != nil {
				return res, err
			}
			res.Entities++
		}
	}
	return res, nil
}

func (im *Importer) entity(ctx context.Context, kind metadata.Kind, spec EntitySpec, fieldIDs map[string]string) (*metadata.ConfigEntity, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalid)
	}
	e := &metadata.ConfigEntity{
		Kind:          kind,
		Name:          spec.Name,
		Title:         spec.Title,
		MenuOrder:     spec.MenuOrder,
		RawAttributes: make(map[string]string, len(spec.Attributes)+2),
	}
	for k, v := range spec.Attributes {
		e.RawAttributes[kind.Prefix()+k] = v
	}

	if len(spec.Metaboxes) > 0 {
		refs := make([]string, 0, len(spec.Metaboxes))
		for _, name := range spec.Metaboxes {
			if id, ok := fieldIDs[name]; ok {
				refs = append(refs, id)
			} else {
				refs = append(refs, name)
			}
		}
		e.RawAttributes[kind.MetaboxesKey()] = strings.Join(refs, ",")
	}

	if len(spec.Validation) > 0 {
		if kind != metadata.KindOptionsPage {
			return nil, fmt.Errorf("%w: validation routines are only supported on options pages", ErrInvalid)
		}
		if err := im.evaluator.Compile(spec.Validation); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		lines := make([]string, len(spec.Validation))
		for i, r := range spec.Validation {
			lines[i] = r.Field + "," + r.Expression
		}
		e.RawAttributes[kind.Prefix()+"validation"] = strings.Join(lines, "\n")
	}

	if spec.Parent != "" {
		parent, err := im.store.GetEntityByName(ctx, kind, spec.Parent)
		if err != nil {
			return nil, fmt.Errorf("%w: parent %s: %w", ErrInvalid, spec.Parent, err)
		}
		e.ParentID = parent.ID
	}
	return e, nil
}

func (im *Importer) upsert(ctx context.Context, e *metadata.ConfigEntity) error {
	existing, err := im.store.GetEntityByName(ctx, e.Kind, e.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return im.store.CreateEntity(ctx, e)
	case err != nil:
		return err
	}
	e.ID = existing.ID
	return im.store.UpdateEntity(ctx, e)
}
