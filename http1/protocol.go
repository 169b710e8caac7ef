package http1

import (
	"context"

	"github.com/xkungfu/sanic/buffer"
	"github.com/xkungfu/sanic/request"
	"github.com/xkungfu/sanic/response"
)

// Protocol is the engine's view of its connection driver: everything it
// needs to move bytes and report on what happened, without knowing the
// driver owns a net.Conn, a watchdog, or backpressure gates (spec.md §4,
// §5 — the engine is transport-agnostic by design).
type Protocol interface {
	// Send writes data to the wire, blocking for backpressure. It returns
	// ctx.Err() if ctx is done before the write completes.
	Send(ctx context.Context, data []byte) error

	// ReceiveMore asks the driver to read more bytes into Buffer() and
	// blocks until some arrive, the peer closes, or ctx is done. A nil
	// return means Buffer() grew by at least one byte.
	ReceiveMore(ctx context.Context) error

	// Buffer is the shared receive buffer. The engine only ever reads a
	// prefix and trims it; the driver only ever appends.
	Buffer() *buffer.Buffer

	// RequestMaxSize bounds header block size and Content-Length.
	RequestMaxSize() int64

	// AccessLog reports whether completed responses should be logged.
	AccessLog() bool

	// LogResponse is called once per completed response when AccessLog()
	// is true.
	LogResponse(rec AccessLogRecord)

	// IncRequestsCount tallies one parsed request line, for the
	// connection's lifetime metrics.
	IncRequestsCount()

	// RemoteAddr reports the peer's address for request/access-log
	// purposes. Port is 0 and ip is "" if unknown.
	RemoteAddr() (ip string, port int)
}

// AccessLogRecord is handed to Protocol.LogResponse once a response
// completes, matching the {status, byte, host, request} shape of spec.md
// §6.
type AccessLogRecord struct {
	Status         int
	ResponseBytes  int64
	Host           string
	RequestSummary string
}

// HandlerFunc is application code invoked once a request's headers (and,
// for HEAD/short bodies, sometimes the whole request) are parsed. It reads
// the body through req.Stream and produces a response via h.Respond and
// h.Send. Returning a non-nil error is equivalent to an uncaught exception
// in the original: the engine renders it through the ExceptionHandler.
type HandlerFunc func(h *Http, req *request.Request) error

// ExceptionHandler renders an error (from a handler, from parsing, or from
// a cancelled watchdog) into a response. Rendering itself is an external
// collaborator's job (spec.md §1); errorwriter provides a default.
type ExceptionHandler interface {
	HandleException(req *request.Request, err error) *response.Response
}
