package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"wpx-extend/internal/apperr"
	"wpx-extend/internal/auth"
	"wpx-extend/internal/cache"
	"wpx-extend/internal/decode"
	"wpx-extend/internal/fields"
	"wpx-extend/internal/lifecycle"
	"wpx-extend/internal/logger"
	"wpx-extend/internal/metadata"
	"wpx-extend/internal/pipeline"
	"wpx-extend/internal/seed"
	"wpx-extend/internal/store"
	"wpx-extend/internal/validation"
)

type Handler struct {
	store     *store.Store
	cache     *cache.Cache
	registry  *metadata.Registry
	pipeline  *pipeline.Pipeline
	importer  *seed.Importer
	evaluator *validation.Evaluator
	renderers *fields.Registry
	log       zerolog.Logger
}

// NewHandler wires the admin API. The importer's reload hook is expected to
// run p, so writes made through it are registered immediately.
func NewHandler(s *store.Store, c *cache.Cache, reg *metadata.Registry, p *pipeline.Pipeline, im *seed.Importer, renderers *fields.Registry, log zerolog.Logger) *Handler {
	return &Handler{
		store:     s,
		cache:     c,
		registry:  reg,
		pipeline:  p,
		importer:  im,
		evaluator: validation.NewEvaluator(),
		renderers: renderers,
		log:       logger.Component(log, "admin"),
	}
}

func kindParam(c *fiber.Ctx) metadata.Kind { return metadata.Kind(c.Params("kind")) }

func optionsPageKind(*fiber.Ctx) metadata.Kind { return metadata.KindOptionsPage }

// RegisterAdminRoutes mounts the admin API. Every route requires a valid
// token; editors may only touch options pages.
func RegisterAdminRoutes(app *fiber.App, h *Handler, authMW fiber.Handler) {
	admin := app.Group("/api/_admin", authMW)
	adminOnly := auth.RequireManager(nil)
	byKind := auth.RequireManager(kindParam)
	options := auth.RequireManager(optionsPageKind)

	admin.Get("/entities/:kind", byKind, h.ListEntities)
	admin.Get("/entities/:kind/:name", byKind, h.GetEntity)
	admin.Post("/entities/:kind", byKind, h.CreateEntity)
	admin.Put("/entities/:kind/:name", byKind, h.UpdateEntity)
	admin.Delete("/entities/:kind/:name", byKind, h.DeleteEntity)

	admin.Get("/fields", adminOnly, h.ListFields)
	admin.Post("/fields", adminOnly, h.CreateField)
	admin.Put("/fields/:name", adminOnly, h.UpdateField)
	admin.Delete("/fields/:name", adminOnly, h.DeleteField)

	admin.Get("/groups", adminOnly, h.ListGroups)
	admin.Put("/groups/:name", adminOnly, h.SaveGroup)
	admin.Delete("/groups/:name", adminOnly, h.DeleteGroup)

	admin.Get("/registrations/:kind", byKind, h.ListRegistrations)
	admin.Post("/reload", adminOnly, h.Reload)
	admin.Post("/cache/flush", adminOnly, h.FlushCache)

	admin.Get("/options/:name/values", options, h.GetOptionValues)
	admin.Put("/options/:name/values", options, h.SaveOptionValues)
	admin.Post("/options/:name/validate", options, h.ValidateOptions)

	admin.Get("/preview/:kind/:name", byKind, h.Preview)
}

// --- Entity Endpoints ---

func registrableKind(c *fiber.Ctx) (metadata.Kind, error) {
	kind, err := metadata.ParseKind(c.Params("kind"))
	if err != nil || kind == metadata.KindField {
		return "", apperr.NotFoundError("kind", c.Params("kind"))
	}
	return kind, nil
}

func (h *Handler) ListEntities(c *fiber.Ctx) error {
	kind, err := registrableKind(c)
	if err != nil {
		return err
	}
	list, err := h.store.ListEntities(c.UserContext(), kind)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": list})
}

func (h *Handler) GetEntity(c *fiber.Ctx) error {
	kind, err := registrableKind(c)
	if err != nil {
		return err
	}
	name := c.Params("name")
	e, err := h.store.GetEntityByName(c.UserContext(), kind, name)
	if err != nil {
		return apperr.FromStore(err, string(kind), name)
	}
	return c.JSON(fiber.Map{"data": e})
}

func (h *Handler) CreateEntity(c *fiber.Ctx) error {
	kind, err := registrableKind(c)
	if err != nil {
		return err
	}
	var spec seed.EntitySpec
	if err := c.BodyParser(&spec); err != nil {
		return apperr.InvalidPayloadError("Invalid JSON body")
	}
	if spec.Name == "" {
		return apperr.ValidationError([]apperr.ErrorDetail{{Field: "name", Rule: "required", Message: "name is required"}})
	}

	ctx := c.UserContext()
	if _, err := h.store.GetEntityByName(ctx, kind, spec.Name); err == nil {
		return apperr.ConflictError(fmt.Sprintf("%s %s already exists", kind, spec.Name))
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return h.writeEntity(c, kind, spec, fiber.StatusCreated)
}

func (h *Handler) UpdateEntity(c *fiber.Ctx) error {
	kind, err := registrableKind(c)
	if err != nil {
		return err
	}
	name := c.Params("name")
	if _, err := h.store.GetEntityByName(c.UserContext(), kind, name); err != nil {
		return apperr.FromStore(err, string(kind), name)
	}

	var spec seed.EntitySpec
	if err := c.BodyParser(&spec); err != nil {
		return apperr.InvalidPayloadError("Invalid JSON body")
	}
	spec.Name = name // ensure name matches URL
	return h.writeEntity(c, kind, spec, fiber.StatusOK)
}

func (h *Handler) writeEntity(c *fiber.Ctx, kind metadata.Kind, spec seed.EntitySpec, status int) error {
	doc := &seed.Document{}
	doc.Add(kind, spec)
	if err := h.importDocument(c.UserContext(), doc); err != nil {
		return err
	}
	e, err := h.store.GetEntityByName(c.UserContext(), kind, spec.Name)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": e})
}

func (h *Handler) DeleteEntity(c *fiber.Ctx) error {
	kind, err := registrableKind(c)
	if err != nil {
		return err
	}
	name := c.Params("name")
	ctx := c.UserContext()

	e, err := h.store.GetEntityByName(ctx, kind, name)
	if err != nil {
		return apperr.FromStore(err, string(kind), name)
	}
	if err := h.store.DeleteEntity(ctx, e.ID); err != nil {
		return apperr.FromStore(err, string(kind), name)
	}
	var optErr error
	if kind == metadata.KindOptionsPage {
		optErr = h.store.DeleteOption(ctx, lifecycle.OptionName(name))
	}
	if err := errors.Join(h.refresh(ctx), optErr); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": name}})
}

// --- Field Endpoints ---

func (h *Handler) ListFields(c *fiber.Ctx) error {
	list, err := h.store.ListFields(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": list})
}

func (h *Handler) CreateField(c *fiber.Ctx) error {
	var spec seed.FieldSpec
	if err := c.BodyParser(&spec); err != nil {
		return apperr.InvalidPayloadError("Invalid JSON body")
	}
	if spec.Name == "" {
		return apperr.ValidationError([]apperr.ErrorDetail{{Field: "name", Rule: "required", Message: "name is required"}})
	}
	if _, err := h.store.GetEntityByName(c.UserContext(), metadata.KindField, spec.Name); err == nil {
		return apperr.ConflictError("field " + spec.Name + " already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return h.writeField(c, spec, fiber.StatusCreated)
}

func (h *Handler) UpdateField(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, err := h.store.GetEntityByName(c.UserContext(), metadata.KindField, name); err != nil {
		return apperr.FromStore(err, "field", name)
	}
	var spec seed.FieldSpec
	if err := c.BodyParser(&spec); err != nil {
		return apperr.InvalidPayloadError("Invalid JSON body")
	}
	spec.Name = name
	return h.writeField(c, spec, fiber.StatusOK)
}

func (h *Handler) writeField(c *fiber.Ctx, spec seed.FieldSpec, status int) error {
	if spec.Type != "" && !h.renderers.Has(metadata.FieldType(spec.Type)) {
		return apperr.ValidationError([]apperr.ErrorDetail{{
			Field:   "type",
			Rule:    "renderer",
			Message: "no renderer registered for field type " + spec.Type,
		}})
	}
	if err := h.importDocument(c.UserContext(), &seed.Document{Fields: []seed.FieldSpec{spec}}); err != nil {
		return err
	}
	e, err := h.store.GetEntityByName(c.UserContext(), metadata.KindField, spec.Name)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": e})
}

func (h *Handler) DeleteField(c *fiber.Ctx) error {
	name := c.Params("name")
	ctx := c.UserContext()
	e, err := h.store.GetEntityByName(ctx, metadata.KindField, name)
	if err != nil {
		return apperr.FromStore(err, "field", name)
	}
	if err := h.store.DeleteEntity(ctx, e.ID); err != nil {
		return apperr.FromStore(err, "field", name)
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": name}})
}

// --- Group Endpoints ---

func (h *Handler) ListGroups(c *fiber.Ctx) error {
	groups, err := h.store.ListGroups(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": groups})
}

// SaveGroup creates or updates the named group.
func (h *Handler) SaveGroup(c *fiber.Ctx) error {
	var spec seed.GroupSpec
	if err := c.BodyParser(&spec); err != nil {
		return apperr.InvalidPayloadError("Invalid JSON body")
	}
	spec.Name = c.Params("name")
	if err := h.importDocument(c.UserContext(), &seed.Document{Groups: []seed.GroupSpec{spec}}); err != nil {
		return err
	}
	g, err := h.store.GetGroupByName(c.UserContext(), spec.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": g})
}

func (h *Handler) DeleteGroup(c *fiber.Ctx) error {
	name := c.Params("name")
	ctx := c.UserContext()
	g, err := h.store.GetGroupByName(ctx, name)
	if err != nil {
		return apperr.FromStore(err, "group", name)
	}
	if err := h.store.DeleteGroup(ctx, g.ID); err != nil {
		return apperr.FromStore(err, "group", name)
	}
	if err := h.refresh(ctx); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": name}})
}

// --- Registration Endpoints ---

func (h *Handler) ListRegistrations(c *fiber.Ctx) error {
	kind, err := registrableKind(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.registry.All(kind)})
}

// Reload reruns the pipeline. Entity failures are reported in the outcome
// list rather than as an error response.
func (h *Handler) Reload(c *fiber.Ctx) error {
	report, err := h.pipeline.Run(c.UserContext())
	if report == nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func (h *Handler) FlushCache(c *fiber.Ctx) error {
	n, err := h.cache.Flush(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"flushed": n}})
}

// --- Options Page Endpoints ---

func (h *Handler) optionsPage(ctx context.Context, name string) (*metadata.ConfigEntity, error) {
	e, err := h.store.GetEntityByName(ctx, metadata.KindOptionsPage, name)
	if err != nil {
		return nil, apperr.FromStore(err, string(metadata.KindOptionsPage), name)
	}
	return e, nil
}

func (h *Handler) routines(e *metadata.ConfigEntity) []metadata.ValidationRoutine {
	return decode.ValidationRoutines(e.RawAttributes[metadata.KindOptionsPage.Prefix()+"validation"])
}

func (h *Handler) storedValues(ctx context.Context, name string) (map[string]any, error) {
	raw, err := h.store.GetOption(ctx, lifecycle.OptionName(name))
	if errors.Is(err, store.ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	values := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode %s values: %w", name, err)
	}
	return values, nil
}

func (h *Handler) GetOptionValues(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, err := h.optionsPage(c.UserContext(), name); err != nil {
		return err
	}
	values, err := h.storedValues(c.UserContext(), name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": values})
}

// SaveOptionValues validates the submitted values against the page's
// routines and stores them when every routine passes.
func (h *Handler) SaveOptionValues(c *fiber.Ctx) error {
	name := c.Params("name")
	ctx := c.UserContext()
	e, err := h.optionsPage(ctx, name)
	if err != nil {
		return err
	}

	values := map[string]any{}
	if err := c.BodyParser(&values); err != nil {
		return apperr.InvalidPayloadError("Invalid JSON body")
	}
	if failures := h.evaluator.Validate(h.routines(e), values); len(failures) > 0 {
		return validationFailed(failures)
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if err := h.store.SetOption(ctx, lifecycle.OptionName(name), string(raw)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": values})
}

func (h *Handler) ValidateOptions(c *fiber.Ctx) error {
	e, err := h.optionsPage(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	values := map[string]any{}
	if err := c.BodyParser(&values); err != nil {
		return apperr.InvalidPayloadError("Invalid JSON body")
	}
	if failures := h.evaluator.Validate(h.routines(e), values); len(failures) > 0 {
		return validationFailed(failures)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"valid": true}})
}

func validationFailed(failures []validation.Failure) error {
	details := make([]apperr.ErrorDetail, len(failures))
	for i, f := range failures {
		details[i] = apperr.ErrorDetail{Field: f.Field, Rule: f.Expression, Message: f.Message}
	}
	return apperr.ValidationError(details)
}

// Preview renders the metabox groups of a registered entity. Options pages
// are filled with their stored values.
func (h *Handler) Preview(c *fiber.Ctx) error {
	kind, err := registrableKind(c)
	if err != nil {
		return err
	}
	name := c.Params("name")
	args := h.registry.Lookup(kind, name)
	if args == nil {
		return apperr.NotFoundError("registration", string(kind)+"/"+name)
	}

	values := map[string]string{}
	if kind == metadata.KindOptionsPage {
		stored, err := h.storedValues(c.UserContext(), name)
		if err != nil {
			return err
		}
		for k, v := range stored {
			values[k] = fmt.Sprint(v)
		}
	}

	html, err := h.renderers.RenderGroups(args.Metaboxes, values)
	if err != nil {
		return err
	}
	c.Type("html")
	return c.SendString(string(html))
}

// --- helpers ---

func (h *Handler) importDocument(ctx context.Context, doc *seed.Document) error {
	_, err := h.importer.Import(ctx, doc)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, seed.ErrInvalid):
		return apperr.ValidationError([]apperr.ErrorDetail{{Message: err.Error()}})
	case errors.Is(err, store.ErrUniqueViolation):
		return apperr.ConflictError(err.Error())
	}
	return err
}

// refresh flushes the cache and re-registers everything after a delete.
func (h *Handler) refresh(ctx context.Context) error {
	if _, err := h.cache.Flush(ctx); err != nil {
		return err
	}
	if _, err := h.pipeline.Run(ctx); err != nil {
		h.log.Warn().Err(err).Msg("reload after delete reported errors")
	}
	return nil
}
