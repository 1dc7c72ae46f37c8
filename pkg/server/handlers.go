// pkg/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nanobridge/nanobridge/pkg/config"
	"github.com/nanobridge/nanobridge/pkg/correlation"
	"github.com/nanobridge/nanobridge/pkg/dispatch"
	"github.com/nanobridge/nanobridge/pkg/endpoint"
)

// Handlers owns the HTTP surface of one bridge instance: the caller-facing
// converse endpoint, the agent's registration call, and the asynchronous
// delivery webhook.
type Handlers struct {
	registry   *endpoint.Registry
	table      *correlation.Table
	dispatcher *dispatch.Dispatcher
	webhookID  string
	log        *zap.Logger

	ready atomic.Bool
}

// NewHandlers wires the HTTP surface. The instance starts not-ready;
// the server lifecycle flips it on start and off on stop.
func NewHandlers(
	cfg config.Config,
	registry *endpoint.Registry,
	table *correlation.Table,
	dispatcher *dispatch.Dispatcher,
	log *zap.Logger,
) *Handlers {
	return &Handlers{
		registry:   registry,
		table:      table,
		dispatcher: dispatcher,
		webhookID:  cfg.WebhookID,
		log:        log,
	}
}

// SetReady marks the instance loaded/unloaded.
func (h *Handlers) SetReady(v bool) { h.ready.Store(v) }

// Register stores the callback endpoint the agent wants outbound requests
// sent to. POST {"callback_url": "..."}.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, jsonMessage("integration not loaded"), http.StatusServiceUnavailable)
		return
	}

	var body struct {
		CallbackURL string `json:"callback_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Error("registration body is not valid JSON", zap.Error(err))
		writeJSON(w, jsonMessage("invalid JSON"), http.StatusBadRequest)
		return
	}
	if err := h.registry.Register(strings.TrimSpace(body.CallbackURL)); err != nil {
		h.log.Error("registration missing callback_url", zap.String("remoteAddr", r.RemoteAddr))
		writeJSON(w, jsonMessage("callback_url is required"), http.StatusBadRequest)
		return
	}
	writeJSON(w, []byte(`{"status":"ok"}`), http.StatusOK)
}

// Webhook receives the agent's asynchronous answer and resolves the waiting
// conversation. Correlation outcome is never surfaced to the sender: a stale
// conversation and a lost race look identical from their side, so anything
// past basic validation is acknowledged with 200 and only logged.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request, webhookID string) {
	if webhookID != h.webhookID {
		h.log.Warn("delivery for unknown webhook id", zap.String("webhookId", webhookID))
		http.NotFound(w, r)
		return
	}

	var body struct {
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Warn("delivery body is not valid JSON; dropping", zap.Error(err))
		writeJSON(w, jsonMessage("invalid JSON"), http.StatusBadRequest)
		return
	}

	id := strings.TrimSpace(body.ConversationID)
	text := strings.TrimSpace(body.Text)
	if id == "" || text == "" {
		h.log.Warn("delivery missing conversation_id or text; dropping",
			zap.String("conversationId", id),
		)
		writeJSON(w, jsonMessage("conversation_id and text are required"), http.StatusBadRequest)
		return
	}

	if !h.ready.Load() {
		// Instance torn down between delivery and processing; nothing to resolve.
		h.log.Error("delivery for unloaded instance", zap.String("conversationId", id))
		writeJSON(w, []byte(`{"status":"ok"}`), http.StatusOK)
		return
	}

	switch h.table.Resolve(id, text) {
	case correlation.Resolved:
		h.log.Info("delivery resolved waiting conversation", zap.String("conversationId", id))
	case correlation.AlreadyResolved:
		h.log.Warn("duplicate delivery ignored", zap.String("conversationId", id))
	case correlation.NotFound:
		h.log.Warn("delivery for unknown or expired conversation",
			zap.String("conversationId", id),
		)
	}
	writeJSON(w, []byte(`{"status":"ok"}`), http.StatusOK)
}

// Converse forwards an utterance to the agent and blocks until the answer
// comes back through the webhook, or a clean failure. The caller sees the
// short human-readable phrase for each failure kind, never the raw error.
func (h *Handlers) Converse(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, jsonMessage("integration not loaded"), http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Sender         string `json:"sender"`
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
		Language       string `json:"language"`
		DeviceID       string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, jsonMessage("invalid JSON"), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeJSON(w, jsonMessage("text is required"), http.StatusBadRequest)
		return
	}

	res, err := h.dispatcher.Submit(r.Context(), dispatch.Request{
		Sender:         body.Sender,
		ConversationID: strings.TrimSpace(body.ConversationID),
		Text:           body.Text,
		Language:       body.Language,
		DeviceID:       body.DeviceID,
	})
	if err != nil {
		writeJSON(w, jsonMessage(dispatch.UserMessage(err)), submitStatus(err))
		return
	}

	out, _ := json.Marshal(map[string]string{
		"conversation_id": res.ConversationID,
		"text":            res.Text,
	})
	writeJSON(w, out, http.StatusOK)
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrNoEndpoint):
		return http.StatusServiceUnavailable
	case errors.Is(err, dispatch.ErrEndpointUnreachable), errors.Is(err, dispatch.ErrSendFailed):
		return http.StatusBadGateway
	case errors.Is(err, dispatch.ErrResponseTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Health is a plain liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, jsonMessage("not ready"), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, []byte(`{"status":"ok"}`), http.StatusOK)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, payload []byte, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func jsonMessage(msg string) []byte {
	b, _ := json.Marshal(map[string]string{"message": msg})
	return b
}
