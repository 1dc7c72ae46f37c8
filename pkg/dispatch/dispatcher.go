// pkg/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nanobridge/nanobridge/pkg/correlation"
	"github.com/nanobridge/nanobridge/pkg/endpoint"
	"github.com/nanobridge/nanobridge/pkg/events"
)

// Request is one utterance on its way to the agent. ConversationID is
// optional; a fresh id is synthesized when the caller does not supply one.
type Request struct {
	Sender         string
	ConversationID string
	Text           string
	Language       string
	DeviceID       string
}

// Result carries the agent's answer back to the original caller.
type Result struct {
	ConversationID string
	Text           string
}

// Dispatcher runs one request/response cycle: register a pending slot, send
// the outbound request, suspend until the slot resolves or the deadline
// elapses, and remove the slot on every exit path.
type Dispatcher struct {
	table     *correlation.Table
	endpoints *endpoint.Registry
	client    *Client
	relay     events.Relay
	log       *zap.Logger

	agentID string
	timeout time.Duration
}

// NewDispatcher wires the dispatcher. timeout guards the wait for the
// asynchronous answer; it defaults to 30s when non-positive.
func NewDispatcher(
	table *correlation.Table,
	endpoints *endpoint.Registry,
	client *Client,
	relay events.Relay,
	agentID string,
	timeout time.Duration,
	log *zap.Logger,
) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		table:     table,
		endpoints: endpoints,
		client:    client,
		relay:     relay,
		log:       log,
		agentID:   agentID,
		timeout:   timeout,
	}
}

// Submit forwards req to the registered endpoint and blocks until the
// agent's answer is delivered through the webhook, or fails with one of
// ErrNoEndpoint, ErrEndpointUnreachable, ErrSendFailed, ErrResponseTimeout.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	id := req.ConversationID
	if id == "" {
		id = uuid.NewString()
	}

	url, ok := d.endpoints.Current()
	if !ok {
		d.log.Error("no callback endpoint registered; agent must call the register endpoint first")
		return Result{}, d.finish(id, start, ErrNoEndpoint)
	}

	if !d.client.Probe(ctx, url) {
		d.log.Warn("callback endpoint did not answer the probe",
			zap.String("conversationId", id),
			zap.String("url", url),
		)
		return Result{}, d.finish(id, start, ErrEndpointUnreachable)
	}

	pending, err := d.table.Begin(id)
	if err != nil {
		return Result{}, d.finish(id, start, fmt.Errorf("begin %s: %w", id, err))
	}
	defer d.table.End(id)

	payload := Payload{
		SenderID:       senderOr(req.Sender),
		ConversationID: id,
		Text:           req.Text,
		Language:       req.Language,
		Metadata: Metadata{
			DeviceID: req.DeviceID,
			AgentID:  d.agentID,
		},
	}

	d.log.Info("forwarding to agent",
		zap.String("conversationId", id),
		zap.String("url", url),
	)
	if err := d.client.Send(ctx, url, payload); err != nil {
		d.log.Error("outbound send failed",
			zap.String("conversationId", id),
			zap.Error(err),
		)
		return Result{}, d.finish(id, start, fmt.Errorf("%w: %v", ErrSendFailed, err))
	}

	wctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	text, err := pending.Wait(wctx)
	if err != nil {
		d.log.Warn("no response before deadline",
			zap.String("conversationId", id),
			zap.Duration("deadline", d.timeout),
		)
		return Result{}, d.finish(id, start, fmt.Errorf("%w: %v", ErrResponseTimeout, err))
	}

	d.log.Info("response received",
		zap.String("conversationId", id),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Result{ConversationID: id, Text: text}, d.finish(id, start, nil)
}

// finish records the terminal state once: metrics, outcome event, and the
// error handed back to the caller.
func (d *Dispatcher) finish(id string, start time.Time, err error) error {
	elapsed := time.Since(start)
	outcome := kind(err)

	submitOutcomes.WithLabelValues(outcome).Inc()
	submitDuration.Observe(elapsed.Seconds())

	if pubErr := d.relay.Publish(context.Background(), events.Event{
		ConversationID: id,
		Outcome:        outcome,
		ElapsedMS:      elapsed.Milliseconds(),
		At:             time.Now().UTC(),
	}); pubErr != nil {
		d.log.Warn("outcome event publish failed", zap.Error(pubErr))
	}
	return err
}

func senderOr(s string) string {
	if s == "" {
		return "bridge_user"
	}
	return s
}
