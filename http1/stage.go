// Package http1 implements the per-connection HTTP/1.1 protocol engine:
// request-line and header parsing, chunked and fixed-length body framing,
// 100-continue, response framing, and keep-alive negotiation (spec.md §1,
// §4.1). It is deliberately transport-agnostic — the conn package drives it
// over a real socket; tests drive it over an in-memory Protocol.
package http1

// Stage tracks where a connection sits in one request/response cycle. The
// connection driver's watchdog reads it to decide which timeout applies and
// which exception to raise on expiry (spec.md §4.2).
type Stage int

const (
	// StageIdle: between requests, waiting for the first byte of a new
	// request line. The keep-alive timeout applies here.
	StageIdle Stage = iota
	// StageRequest: request line and headers are being read. The request
	// timeout applies. A body the handler left unread is drained after the
	// response completes, in StageIdle.
	StageRequest
	// StageHandler: the handler is running. The response timeout applies.
	StageHandler
	// StageResponse: headers or body are being written back. The response
	// timeout still applies.
	StageResponse
	// StageFailed: the connection is being torn down after an error.
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageRequest:
		return "request"
	case StageHandler:
		return "handler"
	case StageResponse:
		return "response"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}
