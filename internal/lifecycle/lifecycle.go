// Package lifecycle implements the activate, deactivate and uninstall
// hooks.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"wpx-extend/internal/cache"
	"wpx-extend/internal/logger"
	"wpx-extend/internal/metadata"
	"wpx-extend/internal/registration"
	"wpx-extend/internal/store"
)

// AdminOptionsName is the option holding the admin settings.
const AdminOptionsName = "wpx_admin_options"

// DefaultAdminOptions are written on activation.
var DefaultAdminOptions = map[string]int{
	"right_now_widget_extended": 1,
	"logo_homepage":             1,
	"excerpt_metabox_on":        1,
	"recent_comments_styles":    1,
	"html5":                     1,
	"activate_sidebars":         0,
	"styles_login":              1,
	"styles_dashboard":          1,
}

// OptionName is the option an options page stores its values under.
func OptionName(page string) string {
	return registration.OptionsPagePrefix + registration.SanitizeKey(page)
}

type Hooks struct {
	store    *store.Store
	cache    *cache.Cache
	registry *metadata.Registry
	log      zerolog.Logger
}

func New(s *store.Store, c *cache.Cache, r *metadata.Registry, log zerolog.Logger) *Hooks {
	return &Hooks{store: s, cache: c, registry: r, log: logger.Component(log, "lifecycle")}
}

// Activate creates the system tables and writes the default admin options,
// replacing any stored ones.
func (h *Hooks) Activate(ctx context.Context) error {
	if err := h.store.Bootstrap(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(DefaultAdminOptions)
	if err != nil {
		return err
	}
	if err := h.store.SetOption(ctx, AdminOptionsName, string(raw)); err != nil {
		return err
	}
	h.log.Info().Msg("activated")
	return nil
}

// Deactivate clears every recorded cache entry.
func (h *Hooks) Deactivate(ctx context.Context) error {
	n, err := h.cache.Flush(ctx)
	if err != nil {
		return err
	}
	h.log.Info().Int("keys", n).Msg("deactivated")
	return nil
}

// Uninstall removes everything the extension stored: admin options, the
// values of every options page, all configuration and groups. The cache is
// flushed and the registry reset afterwards.
func (h *Hooks) Uninstall(ctx context.Context) error {
	if err := h.store.DeleteOption(ctx, AdminOptionsName); err != nil {
		return err
	}

	pages, err := h.store.ListEntities(ctx, metadata.KindOptionsPage)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if err := h.store.DeleteOption(ctx, OptionName(p.Name)); err != nil {
			return err
		}
	}

	if err := h.store.DeleteAllConfiguration(ctx); err != nil {
		return fmt.Errorf("delete configuration: %w", err)
	}
	if _, err := h.cache.Flush(ctx); err != nil {
		return err
	}
	if h.registry != nil {
		h.registry.Reset()
	}
	h.log.Warn().Int("options_pages", len(pages)).Msg("uninstalled")
	return nil
}
