package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"webllmd/internal/bridge"
	"webllmd/internal/catalog"
	"webllmd/internal/config"
	"webllmd/internal/httpapi"
	"webllmd/internal/manager"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	configPath  string
	addr        string
	model       string
	catalogPath string
	catalogURL  string
	allowReload bool
	loadOnInit  bool
	fakeEngine  bool
	logLevel    string
}

// resolveConfig merges the config file with the flags the user set.
func resolveConfig(cmd *cobra.Command, o *serveOptions) (config.Config, error) {
	cfg, err := openConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr = o.addr
	}
	if f.Changed("model") {
		cfg.DefaultModel = o.model
	}
	if f.Changed("catalog") {
		cfg.CatalogPath = o.catalogPath
	}
	if f.Changed("catalog-url") || cfg.CatalogURL == "" {
		cfg.CatalogURL = o.catalogURL
	}
	if f.Changed("allow-reload") {
		v := o.allowReload
		cfg.AllowReload = &v
	}
	if f.Changed("load-on-init") {
		cfg.LoadOnInit = o.loadOnInit
	}
	if f.Changed("fake-engine") {
		cfg.FakeEngine = o.fakeEngine
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

// loadCatalog returns the startup catalog: the configured file or the
// built-in list.
func loadCatalog(cfg config.Config, log zerolog.Logger) (catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	for _, id := range catalog.Inconsistent(c) {
		log.Warn().Str("model_slug", id).Msg("catalog entry does not match its coordinates")
	}
	return c, nil
}

func runServe(cmd *cobra.Command, o *serveOptions) error {
	cfg, err := resolveConfig(cmd, o)
	if err != nil {
		return err
	}
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	cat, err := loadCatalog(cfg, log)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if cat.Len() == 0 {
		return errors.New("catalog is empty")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = cat.IDs()[0]
	} else if !cat.Contains(model) {
		return catalog.ErrIDNotFound(model)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	events := manager.NewBroadcaster()
	mcfg := manager.ManagerConfig{
		Catalog:      catalog.NewStore(cat),
		DefaultModel: model,
		AllowReload:  *cfg.AllowReload,
		PollInterval: cfg.PollInterval(),
		LoadTimeout:  cfg.LoadTimeout(),
		ChunkTimeout: cfg.ChunkTimeout(),
		Temperature:  cfg.Temperature,
		Logger:       &log,
		Publisher:    manager.MultiPublisher{events, httpapi.MetricsPublisher{}},
	}

	var (
		hub  *bridge.WSHub
		mgr  *manager.Manager
		opts = httpapi.Options{Events: events, CatalogSource: catalog.HTMLSource{URL: cfg.CatalogURL}}
	)
	if cfg.FakeEngine {
		p := bridge.NewPipe(0)
		fake := bridge.NewFakeEngine(p)
		fake.StepDelay = 50 * time.Millisecond
		mcfg.Channel = p
		g.Go(func() error { return ignoreCanceled(fake.Run(ctx)) })
		httpapi.SetBridgeConnected(true)
	} else {
		hub = bridge.NewWSHub(log.With().Str("component", "bridge").Logger(), 0)
		mcfg.Channel = hub
		opts.Bridge = hub
	}
	mgr = manager.NewWithConfig(mcfg)

	if hub != nil {
		hub.OnConnection(func(connected bool) {
			httpapi.SetBridgeConnected(connected)
			mgr.HostConnection(connected)
			if connected && cfg.LoadOnInit {
				go loadOnAttach(ctx, mgr, log)
			}
		})
	} else if cfg.LoadOnInit {
		g.Go(func() error {
			loadOnAttach(ctx, mgr, log)
			return nil
		})
	}

	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(requestLevel(cfg.LogLevel))
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCompletionTimeoutSeconds(int64(cfg.CompletionTimeoutSec))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	httpapi.SetCatalogSize(cat.Len())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr, opts),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error { return ignoreCanceled(mgr.Run(ctx)) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("model", model).Int("models", cat.Len()).
			Bool("fake_engine", cfg.FakeEngine).Msg("webllmd listening; open the address in a WebGPU browser")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	// Graceful shutdown (Ctrl+C / SIGTERM)
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if hub != nil {
			hub.Close()
		}
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	err = g.Wait()
	log.Info().Msg("webllmd stopped")
	return err
}

func loadOnAttach(ctx context.Context, mgr *manager.Manager, log zerolog.Logger) {
	if err := mgr.LoadAndWait(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("model", mgr.Selection()).Msg("load on init failed")
	}
}

// requestLevel maps the process log level onto per-request logging.
func requestLevel(level string) string {
	switch level {
	case "debug", "trace":
		return "debug"
	case "warn", "error":
		return "error"
	case "off":
		return "off"
	}
	return "info"
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
