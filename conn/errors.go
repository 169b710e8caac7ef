package conn

import "github.com/xkungfu/sanic/httperr"

// requestTimeoutErr and responseTimeoutErr are the fixed exceptions a
// watchdog expiry attaches to the engine before cancelling its current
// I/O, per spec.md §4.2's per-stage timeout table.
var (
	requestTimeoutErr  = httperr.RequestTimeout("Request header/body not received in time")
	responseTimeoutErr = httperr.ServiceUnavailable("Handler or response not completed in time")
)
