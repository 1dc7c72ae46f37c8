// pkg/bridgefx/bridgefx.go
package bridgefx

import (
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nanobridge/nanobridge/pkg/config"
	"github.com/nanobridge/nanobridge/pkg/correlation"
	"github.com/nanobridge/nanobridge/pkg/dispatch"
	"github.com/nanobridge/nanobridge/pkg/endpoint"
	"github.com/nanobridge/nanobridge/pkg/events"
	"github.com/nanobridge/nanobridge/pkg/middleware/auth"
	"github.com/nanobridge/nanobridge/pkg/middleware/logger"
	"github.com/nanobridge/nanobridge/pkg/middleware/metrics"
	"github.com/nanobridge/nanobridge/pkg/server"
	"github.com/nanobridge/nanobridge/pkg/transport/httpx"
)

// ConfigEnv names the env var pointing at the settings file.
const (
	ConfigEnv     = "NANOBRIDGE_CONFIG"
	DefaultConfig = "nanobridge.toml"
)

func provideConfig() (config.Config, error) {
	path := os.Getenv(ConfigEnv)
	if path == "" {
		path = DefaultConfig
	}
	return config.LoadOrDefault(path)
}

func provideClient(cfg config.Config, log *zap.Logger) *dispatch.Client {
	return dispatch.NewClient(&http.Client{}, cfg.ProbeTimeoutDuration(), log)
}

func provideDispatcher(
	cfg config.Config,
	table *correlation.Table,
	registry *endpoint.Registry,
	client *dispatch.Client,
	relay events.Relay,
	log *zap.Logger,
) *dispatch.Dispatcher {
	agentID := "nanobridge_" + cfg.WebhookID + "_agent"
	return dispatch.NewDispatcher(table, registry, client, relay, agentID, cfg.RequestTimeoutDuration(), log)
}

// Module assembles one bridge instance: registry, correlation table,
// dispatcher, middleware, router, and the server lifecycle.
var Module = fx.Options(
	fx.Provide(provideConfig),

	// Middleware modules
	logger.Module,
	metrics.Module,
	auth.Module,

	// Outcome event relay
	events.Module,

	// Instance-owned state
	fx.Provide(endpoint.NewRegistry),
	fx.Provide(correlation.New),

	// Dispatch path
	fx.Provide(provideClient),
	fx.Provide(provideDispatcher),

	// HTTP surface
	fx.Provide(httpx.NewChi),
	fx.Provide(server.NewHandlers),
	fx.Provide(fx.Annotate(
		server.BuildRouter,
		fx.ParamTags(``, ``, `name:"metrics"`, ``, ``),
		fx.ResultTags(`name:"app"`),
	)),

	// Lifecycle
	fx.Invoke(server.RegisterHooks),
)
