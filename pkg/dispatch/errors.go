// pkg/dispatch/errors.go
package dispatch

import "errors"

var (
	// ErrNoEndpoint: the agent never registered a callback endpoint.
	ErrNoEndpoint = errors.New("dispatch: no callback endpoint registered")

	// ErrEndpointUnreachable: the reachability probe failed.
	ErrEndpointUnreachable = errors.New("dispatch: callback endpoint not reachable")

	// ErrSendFailed: outbound transport error or non-success status.
	ErrSendFailed = errors.New("dispatch: outbound send failed")

	// ErrResponseTimeout: no answer arrived before the deadline.
	ErrResponseTimeout = errors.New("dispatch: agent did not respond before the deadline")
)

// Failure kinds for logs and metrics labels.
func kind(err error) string {
	switch {
	case errors.Is(err, ErrNoEndpoint):
		return "no_endpoint"
	case errors.Is(err, ErrEndpointUnreachable):
		return "endpoint_unreachable"
	case errors.Is(err, ErrSendFailed):
		return "send_failed"
	case errors.Is(err, ErrResponseTimeout):
		return "response_timeout"
	case err == nil:
		return "resolved"
	default:
		return "internal"
	}
}

// UserMessage maps a Submit failure to the short phrase shown to the person
// who asked the question. Raw error kinds never reach them.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoEndpoint):
		return "The agent is not connected."
	case errors.Is(err, ErrEndpointUnreachable):
		return "The agent service is not reachable."
	case errors.Is(err, ErrSendFailed):
		return "Could not reach the agent."
	case errors.Is(err, ErrResponseTimeout):
		return "The agent did not respond in time."
	default:
		return "Something went wrong talking to the agent."
	}
}
