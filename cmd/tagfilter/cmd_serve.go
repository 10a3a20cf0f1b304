// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/tagfilter/cmd/tagfilter/config"
	"github.com/AleutianAI/tagfilter/pkg/extensions"
	"github.com/AleutianAI/tagfilter/services/tagfilter/api"
	"github.com/AleutianAI/tagfilter/services/tagfilter/store"
	"github.com/AleutianAI/tagfilter/services/tagfilter/telemetry"
)

type serveOptions struct {
	addr        string
	watchDir    string
	traceStdout bool
	debug       bool
}

func newServeCmd(app *App) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the filter editing API over HTTP",
		Long: `Serve exposes stored filters for interactive editing under
/v1/tagfilter, streams change events over WebSocket and serves
Prometheus metrics at /v1/tagfilter/metrics.

With --watch (or server.watch_dir) every YAML document in the directory
is imported on start and re-imported whenever it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return classify("serve", runServe(ctx, app, opts))
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", "", "listen address (default server.addr)")
	f.StringVar(&opts.watchDir, "watch", "", "directory of YAML filter documents to import")
	f.BoolVar(&opts.traceStdout, "trace-stdout", false, "print spans to stdout")
	f.BoolVar(&opts.debug, "debug", false, "gin debug mode and request logging")
	return cmd
}

// runServe runs the HTTP server, and the directory watcher when configured,
// until ctx is done or one of them fails.
func runServe(ctx context.Context, app *App, opts serveOptions) error {
	cfg := app.cfg
	logger := app.logger.Slog()

	telCfg := cfg.Telemetry
	telCfg.ServiceVersion = api.ServiceVersion
	if opts.traceStdout {
		telCfg.TraceExporter = "stdout"
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	st, err := app.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := api.NewService(st,
		api.WithLogger(logger),
		api.WithEventBuffer(cfg.Server.EventBuffer),
	)

	ext := accessOptions(cfg.Server.Auth, logger)
	defer func() {
		if err := ext.AuditLogger.Flush(context.Background()); err != nil {
			logger.Warn("audit flush failed", "error", err)
		}
	}()

	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(svc, telCfg.ServiceName, opts.debug, ext),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving tag filters", "addr", addr, "storage", cfg.Storage.Dir)
		app.out.Success("listening on http://%s/v1/tagfilter", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	watchDir := cfg.Server.WatchDir
	if opts.watchDir != "" {
		watchDir = opts.watchDir
	}
	if watchDir != "" {
		w, err := store.NewDirWatcher(expandHome(watchDir), st, &store.DirWatcherOptions{
			DebounceWindow: cfg.Server.WatchDebounce,
			OnSync:         reloadOnSync(gctx, svc, cfg.Server.ReloadOnImport),
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	return g.Wait()
}

// newRouter builds the gin engine serving the API under /v1.
func newRouter(svc *api.Service, serviceName string, debug bool, ext extensions.Options) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	if debug {
		router.Use(gin.Logger())
	}
	api.RegisterRoutes(router.Group("/v1"), api.NewHandlers(svc, api.WithExtensions(ext)))
	return router
}

// accessOptions turns the auth configuration into API extensions. Without
// tokens the API stays open to the local user.
func accessOptions(cfg config.AuthConfig, logger *slog.Logger) extensions.Options {
	opts := extensions.DefaultOptions()
	if len(cfg.Tokens) > 0 {
		tokens := make(map[string]extensions.AuthInfo, len(cfg.Tokens))
		for _, t := range cfg.Tokens {
			tokens[t.Token] = extensions.AuthInfo{UserID: t.User, Roles: t.Roles}
		}
		opts = opts.WithAuth(extensions.NewTokenAuthProvider(tokens)).
			WithAuthz(extensions.RoleAuthzProvider{})
	}
	if cfg.Audit {
		opts = opts.WithAudit(extensions.NewSlogAuditLogger(logger.With("component", "audit")))
	}
	return opts
}

// reloadOnSync returns the watcher callback that refreshes an open, clean
// session after its document was imported.
func reloadOnSync(ctx context.Context, svc *api.Service, enabled bool) func(name string, err error) {
	return func(name string, err error) {
		if err != nil || !enabled {
			return
		}
		if _, err := svc.Reload(ctx, name, false); err != nil && !errors.Is(err, store.ErrNotFound) {
			svc.Logger().Warn("reload after import failed", "filter", name, "error", err)
		}
	}
}
