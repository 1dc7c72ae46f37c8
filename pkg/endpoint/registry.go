// pkg/endpoint/registry.go
package endpoint

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrEmptyURL rejects registration calls that carry no callback URL.
var ErrEmptyURL = errors.New("endpoint: callback_url is required")

// Registry holds the single callback endpoint the agent last registered.
// No reachability check happens here; the agent pushed the value unprompted
// and the dispatcher probes it per request. Nothing survives a restart.
type Registry struct {
	log *zap.Logger

	mu           sync.RWMutex
	url          string
	registeredAt time.Time
}

// NewRegistry returns a registry with no endpoint set.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log}
}

// Register overwrites the current endpoint unconditionally. The most recent
// registration wins; no history is kept.
func (r *Registry) Register(url string) error {
	if url == "" {
		return ErrEmptyURL
	}
	r.mu.Lock()
	prev := r.url
	r.url = url
	r.registeredAt = time.Now()
	r.mu.Unlock()

	if prev != "" && prev != url {
		r.log.Info("callback endpoint replaced",
			zap.String("previous", prev),
			zap.String("current", url),
		)
	} else {
		r.log.Info("callback endpoint registered", zap.String("url", url))
	}
	return nil
}

// Current returns the active endpoint, or false if none was ever registered.
func (r *Registry) Current() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.url, r.url != ""
}

// RegisteredAt reports when the active endpoint was set. Diagnostics only.
func (r *Registry) RegisteredAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registeredAt
}
