// pkg/server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nanobridge/nanobridge/pkg/config"
	"github.com/nanobridge/nanobridge/pkg/correlation"
)

// TLS material is optional and env-driven; plaintext when absent.
const (
	tlsCertEnv = "SSL_SERVER_CERTIFICATE"
	tlsKeyEnv  = "SSL_SERVER_KEY"
)

type serverDeps struct {
	fx.In

	Cfg      config.Config
	Logger   *zap.Logger
	App      http.Handler `name:"app"`
	Handlers *Handlers
	Table    *correlation.Table
}

// RegisterHooks starts the HTTP server on instance start and tears the
// instance down cleanly on stop: no new registrations, every in-flight
// waiter unblocked, listener drained.
func RegisterHooks(lc fx.Lifecycle, d serverDeps) {
	addr := d.Cfg.ListenAddress
	cert := os.Getenv(tlsCertEnv)
	key := os.Getenv(tlsKeyEnv)

	srv := &http.Server{
		Addr:         addr,
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(cert) && fileExists(key)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Handlers.SetReady(true)
			if useTLS {
				d.Logger.Info("server starting (TLS)",
					zap.String("agent", d.Cfg.AgentName),
					zap.String("addr", addr),
					zap.String("webhookPath", "/api/webhook/"+d.Cfg.WebhookID),
				)
				go func() {
					if err := srv.ListenAndServeTLS(cert, key); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("server starting (PLAINTEXT)",
					zap.String("agent", d.Cfg.AgentName),
					zap.String("addr", addr),
					zap.String("webhookPath", "/api/webhook/"+d.Cfg.WebhookID),
				)
				go func() {
					srv.TLSConfig = nil
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping")
			d.Handlers.SetReady(false)
			// Fail in-flight waiters now instead of letting them ride out
			// their full deadlines during shutdown.
			d.Table.Close()
			return srv.Shutdown(ctx)
		},
	})
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
