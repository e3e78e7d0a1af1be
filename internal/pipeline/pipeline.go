// Package pipeline runs the configuration-to-registration flow: every
// configured post type, taxonomy and options page is read from the store
// (through the cache), decoded, given its sorted metaboxes and emitted to
// the registrar.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wpx-extend/internal/cache"
	"wpx-extend/internal/decode"
	"wpx-extend/internal/logger"
	"wpx-extend/internal/metabox"
	"wpx-extend/internal/metadata"
	"wpx-extend/internal/metrics"
	"wpx-extend/internal/registration"
)

// ConfigStore is the read side of the configuration store.
type ConfigStore interface {
	ListEntities(ctx context.Context, kind metadata.Kind) ([]metadata.ConfigEntity, error)
	GetRawAttributes(ctx context.Context, id string) (map[string]string, error)
	FieldsByRefs(ctx context.Context, refs []string) ([]metadata.FieldEntity, error)
	GroupForField(ctx context.Context, fieldID string) (*metadata.Group, error)
	Ancestor(ctx context.Context, id string) (string, error)
}

// Cache key stems per kind.
var listKeys = map[metadata.Kind]string{
	metadata.KindPostType:    "wpx_cpts",
	metadata.KindTaxonomy:    "wpx_taxonomies",
	metadata.KindOptionsPage: "wpx_options",
}

// ListKey is the cache key of the entity list of kind.
func ListKey(kind metadata.Kind) string { return listKeys[kind] }

// AttributesKey is the cache key of an entity's raw attributes.
func AttributesKey(kind metadata.Kind, id string) string {
	return listKeys[kind] + "_attributes_" + id
}

func fieldsKey(id string) string { return "wpx_fields_" + id }
func groupKey(fieldID string) string { return "wpx_groups_" + fieldID }
func titleKey(id string) string { return "wpx_args_title_" + id }
func parentKey(id string) string { return "wpx_options_parent_" + id }

// Outcome is the result of one entity in a run.
type Outcome struct {
	Kind   metadata.Kind `json:"kind"`
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Status string        `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Outcomes  []Outcome     `json:"outcomes"`
}

// Count returns how many outcomes have status.
func (r *Report) Count(status string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

type Option func(*Pipeline)

// WithMetaboxes turns metabox attachment on or off. It is on by default.
func WithMetaboxes(on bool) Option {
	return func(p *Pipeline) { p.metaboxes = on }
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = logger.Component(l, "pipeline") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithReset runs fn at the start of every run, before anything is emitted.
// It is used to clear the registration target.
func WithReset(fn func()) Option {
	return func(p *Pipeline) { p.reset = fn }
}

// Pipeline is safe for concurrent use; runs are serialized.
type Pipeline struct {
	store     ConfigStore
	cache     *cache.Cache
	emitter   *registration.Emitter
	decoder   *decode.Decoder
	metaboxes bool
	reset     func()
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu sync.Mutex
}

func New(store ConfigStore, c *cache.Cache, e *registration.Emitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		cache:     c,
		emitter:   e,
		metaboxes: true,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.decoder = decode.NewDecoder(p.log)
	return p
}

// Run registers every configured entity. Failures of one entity do not stop
// the run; they are joined into the returned error and listed in the report.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := &Report{StartedAt: time.Now()}
	if p.reset != nil {
		p.reset()
	}

	defs := p.cache.Definitions()
	var errs []error
	for _, kind := range metadata.RegistrableKinds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		entities, err := cache.GetOrCompute(ctx, defs, ListKey(kind), func(ctx context.Context) ([]metadata.ConfigEntity, error) {
			return p.store.ListEntities(ctx, kind)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s entities: %w", kind, err))
			continue
		}

		byID := make(map[string]metadata.ConfigEntity, len(entities))
		for _, e := range entities {
			byID[e.ID] = e
		}

		for _, e := range entities {
			outcome := Outcome{Kind: kind, ID: e.ID, Name: e.Name}
			status, err := p.runEntity(ctx, defs, e, byID)
			outcome.Status = status
			if err != nil {
				outcome.Error = err.Error()
				errs = append(errs, fmt.Errorf("%s %q: %w", kind, e.Name, err))
			}
			report.Outcomes = append(report.Outcomes, outcome)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	err := errors.Join(errs...)
	p.metrics.RecordPipelineRun(report.Duration, err)

	ev := p.log.Info()
	if err != nil {
		ev = p.log.Warn().Err(err)
	}
	ev.Int("registered", report.Count(metrics.StatusRegistered)).
		Int("skipped", report.Count(metrics.StatusSkipped)).
		Int("failed", report.Count(metrics.StatusFailed)).
		Dur("duration_ms", report.Duration).
		Msg("pipeline run finished")

	return report, err
}

func (p *Pipeline) runEntity(ctx context.Context, c *cache.Cache, e metadata.ConfigEntity, byID map[string]metadata.ConfigEntity) (string, error) {
	attrs, err := cache.GetOrCompute(ctx, c, AttributesKey(e.Kind, e.ID), func(ctx context.Context) (map[string]string, error) {
		return p.store.GetRawAttributes(ctx, e.ID)
	})
	if err != nil {
		return metrics.StatusFailed, fmt.Errorf("attributes: %w", err)
	}
	e.RawAttributes = attrs

	args := p.decoder.Decode(e)
	if args == nil {
		return metrics.StatusSkipped, nil
	}

	if p.metaboxes {
		boxes, err := p.metaboxGroups(ctx, c, e)
		if err != nil {
			return metrics.StatusFailed, err
		}
		args.Metaboxes = boxes
	}

	if e.Kind == metadata.KindOptionsPage {
		if err := p.optionsPageArgs(ctx, c, e, byID, args); err != nil {
			return metrics.StatusFailed, err
		}
	}

	if registration.Skipped(args) {
		return metrics.StatusSkipped, p.emitter.Emit(ctx, args)
	}
	if err := p.emitter.Emit(ctx, args); err != nil {
		return metrics.StatusFailed, err
	}
	return metrics.StatusRegistered, nil
}

func (p *Pipeline) metaboxGroups(ctx context.Context, c *cache.Cache, e metadata.ConfigEntity) ([]metadata.MetaboxGroup, error) {
	refs := decode.MetaboxRefs(e)
	if len(refs) == 0 {
		return nil, nil
	}

	fields, err := cache.GetOrCompute(ctx, c, fieldsKey(e.ID), func(ctx context.Context) ([]metadata.FieldEntity, error) {
		return p.store.FieldsByRefs(ctx, refs)
	})
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}

	groups := make(map[string]*metadata.Group, len(fields))
	for _, f := range fields {
		g, err := cache.GetOrCompute(ctx, c, groupKey(f.ID), func(ctx context.Context) (*metadata.Group, error) {
			return p.store.GroupForField(ctx, f.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("group of field %s: %w", f.Slug, err)
		}
		groups[f.ID] = g
	}

	id := metabox.SlugID
	if e.Kind == metadata.KindPostType {
		id = metabox.PostTypeID(e.Name)
	}
	return metabox.Sort(fields, func(f metadata.FieldEntity) *metadata.Group { return groups[f.ID] }, id), nil
}

// optionsPageArgs sets the title and menu ancestry of an options page. A
// parent recorded on the entity overrides any menu setting in attributes.
func (p *Pipeline) optionsPageArgs(ctx context.Context, c *cache.Cache, e metadata.ConfigEntity, byID map[string]metadata.ConfigEntity, args *metadata.RegistrationArgs) error {
	if e.ParentID != "" {
		ancestor, err := cache.GetOrCompute(ctx, c, parentKey(e.ID), func(ctx context.Context) (string, error) {
			return p.store.Ancestor(ctx, e.ID)
		})
		if err != nil {
			return fmt.Errorf("ancestor: %w", err)
		}
		if ancestor != "" && ancestor != e.ID {
			args.SetArg("menu_ancestor", ancestor)
			if parent, ok := byID[ancestor]; ok {
				args.SetArg("parent_page", registration.OptionsPagePrefix+registration.SanitizeKey(parent.Name))
			}
		}
	}

	title, err := cache.GetOrCompute(ctx, c, titleKey(e.ID), func(context.Context) (string, error) {
		return e.Title, nil
	})
	if err != nil {
		return err
	}
	if title != "" {
		args.SetArg("title", title)
	}
	return nil
}
