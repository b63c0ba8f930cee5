package providers

import (
	"log/slog"
	"net/http"

	"github.com/km-arc/go-magnet/framework/config"
	"github.com/km-arc/go-magnet/framework/container"
	gohttp "github.com/km-arc/go-magnet/framework/http"
	"github.com/km-arc/go-magnet/framework/metrics"
	"github.com/km-arc/go-magnet/framework/routing"
)

// Contract types of the framework values every application root carries.
var (
	ConfigType  = container.TypeName((*config.Config)(nil))
	LoggerType  = container.TypeName((*slog.Logger)(nil))
	MetricsType = container.TypeName((*metrics.Observer)(nil))
	RouterType  = container.TypeName((*routing.Router)(nil))
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the loaded configuration into the root scope.
//
// Bound contracts:
//   - ConfigType → *config.Config
type ConfigServiceProvider struct {
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(*container.Manager) error { return nil }

func (p *ConfigServiceProvider) Boot(root *container.Scope) error {
	return root.Bind(ConfigType, container.None, p.Config)
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider binds the application logger into the root scope.
//
// Bound contracts:
//   - LoggerType → *slog.Logger
type LogServiceProvider struct {
	Logger *slog.Logger
}

func (p *LogServiceProvider) Register(*container.Manager) error { return nil }

func (p *LogServiceProvider) Boot(root *container.Scope) error {
	return root.Bind(LoggerType, container.None, p.Logger)
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider binds the Prometheus observer, when metrics are
// enabled, so the router can expose it.
//
// Bound contracts:
//   - MetricsType → *metrics.Observer
type MetricsServiceProvider struct {
	Observer *metrics.Observer
}

func (p *MetricsServiceProvider) Register(*container.Manager) error { return nil }

func (p *MetricsServiceProvider) Boot(root *container.Scope) error {
	if p.Observer == nil {
		return nil
	}
	return root.Bind(MetricsType, container.None, p.Observer)
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router as a topmost singleton and
// mounts the framework endpoints on boot:
//
//	GET /debug/scopes   scope tree as JSON, ?format=text for a dump (APP_DEBUG only)
//	GET /metrics        Prometheus exposition (when MetricsType is bound)
//
// Bound contracts:
//   - RouterType → *routing.Router
type RoutingServiceProvider struct{}

func (p *RoutingServiceProvider) Register(m *container.Manager) error {
	return m.Register(nil, container.Index{
		RouterType: container.SingleBinding(container.NewFactory("framework.router", container.Topmost,
			func(*container.Resolver) (any, error) {
				return routing.New(), nil
			})),
	})
}

func (p *RoutingServiceProvider) Boot(root *container.Scope) error {
	router, err := container.Single[*routing.Router](root, RouterType, container.None)
	if err != nil {
		return err
	}
	cfg, err := container.Single[*config.Config](root, ConfigType, container.None)
	if err != nil {
		return err
	}
	if cfg.App.Debug {
		router.Get("/debug/scopes", scopesHandler(root))
	}
	obs, ok, err := container.Optional[*metrics.Observer](root, MetricsType, container.None)
	if err != nil {
		return err
	}
	if ok {
		router.Handle("/metrics", obs.Handler())
	}
	return nil
}

func scopesHandler(root *container.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_ = container.Dump(w, root)
			return
		}
		gohttp.NewResponse(w).Success(root.Snapshot())
	}
}
