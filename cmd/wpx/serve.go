package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"wpx-extend/internal/admin"
	"wpx-extend/internal/apperr"
	"wpx-extend/internal/auth"
	"wpx-extend/internal/fields"
	"wpx-extend/internal/seed"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registration pipeline and the admin API",
	Long: "Registers every configured entity, then serves the admin API.\n\n" +
		"When seed.path is set the seed is imported first; with seed.watch it is\n" +
		"re-imported whenever the files change.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to bind the HTTP server to (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.startSeed(ctx); err != nil {
		return err
	}
	if _, err := a.pipeline.Run(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial registration reported errors")
	}

	server := fiber.New(fiber.Config{
		ErrorHandler:          apperr.Handler(a.log),
		DisableStartupMessage: true,
	})
	server.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	server.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{})))

	// Auth routes are public.
	auth.RegisterAuthRoutes(server, auth.NewAuthHandler(a.store, a.cfg.JWTSecret, a.log))

	adminHandler := admin.NewHandler(a.store, a.cache, a.registry, a.pipeline, a.importer, fields.NewRegistry(), a.log)
	admin.RegisterAdminRoutes(server, adminHandler, auth.AuthMiddleware(a.cfg.JWTSecret))

	port := a.cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	addr := fmt.Sprintf(":%d", port)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", addr).Msg("starting server")
		errCh <- server.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

// startSeed imports the configured seed once, or starts a watcher that
// keeps importing it. The watcher stops when ctx is cancelled.
func (a *app) startSeed(ctx context.Context) error {
	path := a.cfg.Seed.Path
	if path == "" {
		return nil
	}
	if !a.cfg.Seed.Watch {
		_, err := a.importer.ImportFile(ctx, path)
		return err
	}

	w := seed.NewWatcher(path, a.importer, a.log)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start seed watcher: %w", err)
	}
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}
