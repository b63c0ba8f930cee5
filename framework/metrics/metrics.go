// Package metrics exports container activity to Prometheus.
//
// Observer implements container.Observer. Install it with
// container.WithObserver and mount Handler at /metrics:
//
//	obs := metrics.New(prometheus.NewRegistry())
//	m := container.NewManager(container.WithObserver(obs))
//	router.Handle("/metrics", obs.Handler())
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-magnet/framework/container"
)

const namespace = "magnet"

// Observer holds the container metrics. Safe for concurrent use.
type Observer struct {
	// InstancesCreated counts successful factory constructions.
	// Labels: type, scoping
	InstancesCreated *prometheus.CounterVec

	// CreateDuration measures factory construction time, nested
	// dependency construction included.
	// Labels: scoping
	CreateDuration *prometheus.HistogramVec

	// ResolveErrors counts failed top-level resolutions.
	// Labels: kind (not_found, ambiguous, cycle, duplicate, released, panic, nil_instance, other)
	ResolveErrors *prometheus.CounterVec

	// ScopesActive tracks scopes created and not yet released.
	ScopesActive prometheus.Gauge

	gatherer prometheus.Gatherer
}

var _ container.Observer = (*Observer)(nil)

// New registers the container metrics on reg.
func New(reg *prometheus.Registry) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		InstancesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_created_total",
				Help:      "Instances constructed by factories, by contract type and scoping",
			},
			[]string{"type", "scoping"},
		),
		CreateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "instance_create_duration_seconds",
				Help:      "Factory construction time in seconds",
				Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
			},
			[]string{"scoping"},
		),
		ResolveErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolve_errors_total",
				Help:      "Failed resolutions by error kind",
			},
			[]string{"kind"},
		),
		ScopesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scopes_active",
				Help:      "Scopes created and not yet released",
			},
		),
		gatherer: reg,
	}
}

func (o *Observer) InstanceCreated(t container.Type, scoping container.Scoping, elapsed time.Duration) {
	o.InstancesCreated.WithLabelValues(string(t), scoping.String()).Inc()
	o.CreateDuration.WithLabelValues(scoping.String()).Observe(elapsed.Seconds())
}

func (o *Observer) ResolveFailed(_ container.Type, err error) {
	o.ResolveErrors.WithLabelValues(Kind(err)).Inc()
}

func (o *Observer) ScopeOpened()   { o.ScopesActive.Inc() }
func (o *Observer) ScopeReleased() { o.ScopesActive.Dec() }

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})
}

var kinds = []struct {
	err  error
	name string
}{
	{container.ErrCyclicResolution, "cycle"},
	{container.ErrAmbiguousBinding, "ambiguous"},
	{container.ErrDuplicateBinding, "duplicate"},
	{container.ErrScopeReleased, "released"},
	{container.ErrFactoryPanic, "panic"},
	{container.ErrNilInstance, "nil_instance"},
	{container.ErrBindingNotFound, "not_found"},
}

// Kind names the label value err is counted under: the first sentinel in
// kinds that err wraps.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
