package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/km-arc/go-magnet/framework/config"
	"github.com/km-arc/go-magnet/framework/container"
	"github.com/km-arc/go-magnet/framework/metrics"
	"github.com/km-arc/go-magnet/framework/providers"
	"github.com/km-arc/go-magnet/framework/routing"
)

// Application owns one Manager and the root scope built from it.
//
//	application := app.New()
//	application.Register(pages.Provider())
//	if err := application.Run(ctx); err != nil { ... }
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Manager   *container.Manager
	Providers *container.ProviderRegistry

	// Metrics is nil when METRICS_ENABLED=false.
	Metrics *metrics.Observer
}

// New loads configuration from envFiles and creates the application.
func New(envFiles ...string) *Application {
	return NewWithConfig(config.Load(envFiles...))
}

// NewWithConfig creates the application and registers the framework
// providers: config, logger, metrics and router.
func NewWithConfig(cfg *config.Config) *Application {
	logger := NewLogger(cfg.Log, os.Stderr)
	opts := []container.Option{container.WithLogger(logger)}

	var obs *metrics.Observer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		obs = metrics.New(reg)
		opts = append(opts, container.WithObserver(obs))
	}

	m := container.NewManager(opts...)
	a := &Application{
		Config:    cfg,
		Logger:    logger,
		Manager:   m,
		Providers: container.NewProviderRegistry(m),
		Metrics:   obs,
	}

	// Fresh manager: only a programming error fails here.
	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LogServiceProvider{Logger: logger},
		&providers.MetricsServiceProvider{Observer: obs},
		&providers.RoutingServiceProvider{},
	} {
		if err := a.Providers.Register(p); err != nil {
			panic(err)
		}
	}
	return a
}

// Register adds a ServiceProvider. It fails once the application is booted.
func (a *Application) Register(p container.ServiceProvider) error {
	return a.Providers.Register(p)
}

// Boot seals the manager, creates the root scope and boots every provider.
// Calling Boot again returns the same root.
func (a *Application) Boot() (*container.Scope, error) {
	return a.Providers.Boot()
}

// Router resolves the router from the root scope, booting if needed.
func (a *Application) Router() (*routing.Router, error) {
	root, err := a.Boot()
	if err != nil {
		return nil, err
	}
	return container.Single[*routing.Router](root, providers.RouterType, container.None)
}

// Run boots the application and serves HTTP on APP_PORT until ctx is done,
// then shuts the server down gracefully and releases the root scope.
func (a *Application) Run(ctx context.Context) error {
	root, err := a.Boot()
	if err != nil {
		return err
	}
	defer root.Release()

	router, err := a.Router()
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: a.Config.App.Addr(), Handler: router}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server starting",
			slog.String("app", a.Config.App.Name),
			slog.String("addr", srv.Addr),
			slog.String("env", a.Config.App.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.App.ShutdownTimeout)
	defer cancel()
	a.Logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}
