// pkg/events/relay.go
package events

// Publish-only outcome relay built on Electrician builder primitives.
// When ELECTRICIAN_TARGET is unset the relay is a noop so the bridge runs
// standalone. Internals are hidden: no builder.* types on the struct.

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeydtaylor/electrician/pkg/builder"
	"go.uber.org/fx"
)

// Event is one dispatch terminal state, published for downstream consumers.
type Event struct {
	ConversationID string    `json:"conversation_id"`
	Outcome        string    `json:"outcome"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	At             time.Time `json:"at"`
}

// Relay is the minimal publish surface the dispatcher needs.
type Relay interface {
	Publish(ctx context.Context, e Event) error
}

// noopRelay accepts events and discards them.
type noopRelay struct{}

func (noopRelay) Publish(context.Context, Event) error { return nil }

// NewNoop returns a relay that drops everything. Used in tests.
func NewNoop() Relay { return noopRelay{} }

type builderRelay struct {
	submit func(context.Context, []byte) error
}

func (r *builderRelay) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	return r.submit(ctx, b)
}

// NewRelayFromEnv returns a publish-capable Relay powered by Electrician's
// ForwardRelay[[]byte]. It expects:
//
//	ELECTRICIAN_TARGET       = "host:port[,host2:port2]"  (required; noop when absent)
//
// Optional (off by default):
//
//	ELECTRICIAN_TLS_ENABLE     = "true" | "false"
//	ELECTRICIAN_TLS_CLIENT_CRT = path (default: keys/tls/client.crt)
//	ELECTRICIAN_TLS_CLIENT_KEY = path (default: keys/tls/client.key)
//	ELECTRICIAN_TLS_CA         = path (default: keys/tls/ca.crt)
//	ELECTRICIAN_COMPRESS       = "snappy" | ""
func NewRelayFromEnv() (Relay, error) {
	raw := strings.TrimSpace(os.Getenv("ELECTRICIAN_TARGET"))
	if raw == "" {
		return noopRelay{}, nil
	}
	targets := splitCSV(raw)

	useTLS := strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_ENABLE"), "true")
	tlsCrt := envOr("ELECTRICIAN_TLS_CLIENT_CRT", "keys/tls/client.crt")
	tlsKey := envOr("ELECTRICIAN_TLS_CLIENT_KEY", "keys/tls/client.key")
	tlsCA := envOr("ELECTRICIAN_TLS_CA", "keys/tls/ca.crt")
	useSnappy := strings.EqualFold(os.Getenv("ELECTRICIAN_COMPRESS"), "snappy")

	logger := builder.NewLogger(builder.LoggerWithDevelopment(true))

	ctx := context.Background()
	wire := builder.NewWire[[]byte](ctx, builder.WireWithLogger[[]byte](logger))

	perf := builder.NewPerformanceOptions(useSnappy, builder.COMPRESS_SNAPPY)
	sec := builder.NewSecurityOptions(false, builder.ENCRYPTION_AES_GCM)
	tlsCfg := builder.NewTlsClientConfig(
		useTLS,
		tlsCrt, tlsKey, tlsCA,
		tls.VersionTLS13, tls.VersionTLS13,
	)

	relay := builder.NewForwardRelay[[]byte](
		ctx,
		builder.ForwardRelayWithLogger[[]byte](logger),
		builder.ForwardRelayWithTarget[[]byte](targets...),
		builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
		builder.ForwardRelayWithSecurityOptions[[]byte](sec, ""),
		builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
		builder.ForwardRelayWithInput(wire),
	)

	if err := wire.Start(ctx); err != nil {
		return nil, fmt.Errorf("events: wire start: %w", err)
	}
	if err := relay.Start(ctx); err != nil {
		return nil, fmt.Errorf("events: relay start: %w", err)
	}

	return &builderRelay{
		submit: func(ctx context.Context, b []byte) error { return wire.Submit(ctx, b) },
	}, nil
}

// Module provides the Relay to fx.
var Module = fx.Options(
	fx.Provide(NewRelayFromEnv),
)

// --- small helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
