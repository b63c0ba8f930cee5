package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-magnet/framework/app"
	"github.com/km-arc/go-magnet/framework/config"
	"github.com/km-arc/go-magnet/framework/container"
	"github.com/km-arc/go-magnet/framework/providers"
)

func testConfig(debug, metrics bool) *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "test", Env: "testing", Debug: debug, Port: "0", ShutdownTimeout: time.Second},
		Log:     config.LogConfig{Level: "error", Format: "text"},
		Metrics: config.MetricsConfig{Enabled: metrics},
	}
}

const greetingType container.Type = "app_test.Greeting"

func greetings() *container.Table {
	return &container.Table{
		Factories: []container.Factory{
			container.NewFactory("greeting", container.Topmost, func(r *container.Resolver) (any, error) {
				cfg, err := container.Single[*config.Config](r, providers.ConfigType, container.None)
				if err != nil {
					return nil, err
				}
				return "hello from " + cfg.App.Name, nil
			}),
		},
		Index: container.Index{greetingType: container.RangedBinding(0, 1)},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestApplication_BootBindsFrameworkValues(t *testing.T) {
	a := app.NewWithConfig(testConfig(true, true))
	require.NoError(t, a.Register(greetings()))

	root, err := a.Boot()
	require.NoError(t, err)
	defer root.Release()

	cfg, err := container.Single[*config.Config](root, providers.ConfigType, container.None)
	require.NoError(t, err)
	assert.Same(t, a.Config, cfg)

	greeting, err := container.Single[string](root.CreateChild(), greetingType, container.None)
	require.NoError(t, err)
	assert.Equal(t, "hello from test", greeting)

	again, err := a.Boot()
	require.NoError(t, err)
	assert.Same(t, root, again)

	err = a.Register(greetings())
	assert.ErrorIs(t, err, container.ErrManagerSealed)
}

func TestApplication_DebugScopesEndpoint(t *testing.T) {
	a := app.NewWithConfig(testConfig(true, false))
	router, err := a.Router()
	require.NoError(t, err)

	rr := get(t, router, "/debug/scopes")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data container.ScopeSnapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, 0, body.Data.Depth)
	assert.NotEmpty(t, body.Data.Instances)

	rr = get(t, router, "/debug/scopes?format=text")
	assert.Contains(t, rr.Body.String(), "[0] scope#")

	assert.Equal(t, http.StatusNotFound, get(t, router, "/metrics").Code, "metrics disabled")
}

func TestApplication_MetricsEndpoint(t *testing.T) {
	a := app.NewWithConfig(testConfig(false, true))
	require.NotNil(t, a.Metrics)
	router, err := a.Router()
	require.NoError(t, err)

	rr := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "magnet_scopes_active 1")
	assert.Contains(t, rr.Body.String(), `magnet_instances_created_total{scoping="topmost",type="github.com/km-arc/go-magnet/framework/routing.Router"} 1`)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/debug/scopes").Code, "debug disabled")
}

func TestApplication_RunStopsOnCancel(t *testing.T) {
	a := app.NewWithConfig(testConfig(false, false))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	root, err := a.Boot()
	require.NoError(t, err)
	assert.True(t, root.Released())
}
