package http1

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xkungfu/sanic/httperr"
	"github.com/xkungfu/sanic/response"
)

// Respond registers resp as the response for the current request. Calling
// it again while still in the handler stage replaces the registered
// response; no bytes reach the wire until Send or the one-shot Body below
// triggers the header flush. A resp carrying a Body is a convenience for
// handlers with no streaming body: it flushes headers (with a
// Content-Length) and the body in one call and ends the response. As with
// Send, the body is discarded for a HEAD request or a no-body status.
func (h *Http) Respond(resp *response.Response) error {
	if h.stage != StageHandler {
		return httperr.ServerError("Respond called outside the handler stage")
	}
	h.response = resp
	if len(resp.Body) == 0 {
		return nil
	}
	if err := h.flushHeaders(resp); err != nil {
		return err
	}
	if h.respKind != respHeadIgnored {
		if err := h.proto.Send(h.ctx, resp.Body); err != nil {
			return err
		}
		h.responseBytes += int64(len(resp.Body))
	} else if statusHasNoBody(resp.Status) {
		h.logger.Warn("discarding body sent for a status that has no body")
	}
	h.finishResponse()
	return nil
}

// Send streams one more piece of a response body that was started by
// Respond without a one-shot Body. For a fixed-length response the sum of
// all Send calls must equal the Content-Length Respond framed; for a
// no-body status or a HEAD request, Send discards the data without
// returning an error (a no-body status also logs a warning), mirroring the
// original's decision to discard rather than raise (see SPEC_FULL.md §12).
func (h *Http) Send(data []byte) error {
	if h.stage == StageHandler {
		if h.response == nil {
			return httperr.ServerError("Send called before Respond")
		}
		if err := h.flushHeaders(h.response); err != nil {
			return err
		}
	}
	if h.stage != StageResponse {
		return httperr.ServerError("Send called before Respond")
	}
	switch h.respKind {
	case respHeadIgnored:
		if len(data) > 0 && statusHasNoBody(h.response.Status) {
			h.logger.Warn("discarding body sent for a status that has no body")
		}
		return nil
	case respFixedLength:
		if int64(len(data)) > h.respBytesLeft {
			return httperr.ServerError("response body exceeded its Content-Length")
		}
		if len(data) == 0 {
			return nil
		}
		if err := h.proto.Send(h.ctx, data); err != nil {
			return err
		}
		h.respBytesLeft -= int64(len(data))
		h.responseBytes += int64(len(data))
		return nil
	case respChunked:
		if len(data) == 0 {
			return nil
		}
		if err := h.proto.Send(h.ctx, writeChunk(nil, data)); err != nil {
			return err
		}
		h.responseBytes += int64(len(data))
		return nil
	default:
		return httperr.ServerError("Send called before headers were framed")
	}
}

// EndResponse finalizes the current response: it writes the
// chunked-encoding terminator if framing is chunked, or confirms a
// fixed-length body was fully sent. Run calls this automatically once a
// handler returns with the response still open.
func (h *Http) EndResponse() error {
	if h.stage != StageResponse {
		return nil
	}
	switch h.respKind {
	case respChunked:
		if err := h.proto.Send(h.ctx, []byte("0\r\n\r\n")); err != nil {
			return err
		}
	case respFixedLength:
		if h.respBytesLeft != 0 {
			return httperr.ServerError("response ended before its Content-Length was satisfied")
		}
	}
	h.finishResponse()
	return nil
}

func (h *Http) finishResponse() {
	h.stage = StageIdle
	if h.proto.AccessLog() && h.response != nil {
		h.proto.LogResponse(AccessLogRecord{
			Status:         h.response.Status,
			ResponseBytes:  h.responseBytes,
			Host:           h.request.HostPort(),
			RequestSummary: h.request.Summary(),
		})
	}
}

// flushHeaders frames resp's status line and headers, deciding between
// fixed-length, chunked, and no-body framing (spec.md §4.1.4), and sends
// them. It is the one place headers reach the wire: called lazily from the
// first Send of a streaming response, from Respond's one-shot Body
// convenience, and from the error-rendering path. The caller is expected to
// have already set h.response.
func (h *Http) flushHeaders(resp *response.Response) error {
	headers := resp.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	noBody := h.headOnly || statusHasNoBody(resp.Status)
	if noBody {
		stripEntityFraming(headers)
	}

	var head []byte
	head = writeStatusLine(head, resp.Status)
	if resp.ContentType != "" && !hasHeader(headers, "content-type") {
		head = writeHeaderLine(head, "Content-Type", resp.ContentType)
	}

	switch {
	case noBody:
		h.respKind = respHeadIgnored
		h.respBytesLeft = 0
	case len(resp.Body) > 0:
		head = writeHeaderLine(head, "Content-Length", strconv.Itoa(len(resp.Body)))
		h.respKind = respFixedLength
		h.respBytesLeft = 0
	case hasHeader(headers, "content-length"):
		n, _ := strconv.ParseInt(headerValue(headers, "content-length"), 10, 64)
		h.respKind = respFixedLength
		h.respBytesLeft = n
	default:
		head = writeHeaderLine(head, "Transfer-Encoding", "chunked")
		h.respKind = respChunked
	}

	if h.keepAlive {
		head = writeHeaderLine(head, "Connection", "keep-alive")
	} else {
		head = writeHeaderLine(head, "Connection", "close")
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		if strings.EqualFold(name, "content-type") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		head = writeHeaderLine(head, name, headers[name])
	}
	head = append(head, '\r', '\n')

	// A handler that responds without ever reading the body (e.g. rejecting
	// an Expect: 100-continue request outright) still owes the client its
	// interim response; Read's own prepend only fires if the handler reads.
	if h.expectingContinue && !h.continueSent {
		h.continueSent = true
		head = append([]byte("HTTP/1.1 100 Continue\r\n\r\n"), head...)
	}

	h.response = resp
	h.stage = StageResponse
	return h.proto.Send(h.ctx, head)
}

func hasHeader(headers map[string]string, name string) bool {
	_, ok := headerLookup(headers, name)
	return ok
}

func headerValue(headers map[string]string, name string) string {
	v, _ := headerLookup(headers, name)
	return v
}

func headerLookup(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// sendErrorResponse renders err through the configured ExceptionHandler
// (falling back to a plain text body) and sends it, closing the
// connection afterward: every error path in Run ends keep-alive. An error
// response can only be emitted while the stage is still HANDLER (a
// header-parse failure in REQUEST is promoted there first); in RESPONSE or
// FAILED a prior response's headers or body may already be on the wire, so
// writing a second one would corrupt the stream — the connection is closed
// silently instead (spec.md §4.1.6).
func (h *Http) sendErrorResponse(err error) {
	h.keepAlive = false

	if h.stage == StageRequest {
		h.stage = StageHandler
	}
	if h.stage != StageHandler {
		h.stage = StageFailed
		return
	}

	var resp *response.Response
	if h.exceptionHandler != nil {
		resp = h.exceptionHandler.HandleException(h.request, err)
	}
	if resp == nil {
		resp = defaultExceptionResponse(err)
	}

	h.response = resp
	if writeErr := h.flushHeaders(resp); writeErr != nil {
		h.stage = StageFailed
		return
	}
	if len(resp.Body) > 0 {
		if writeErr := h.proto.Send(h.ctx, resp.Body); writeErr != nil {
			h.stage = StageFailed
			return
		}
		h.responseBytes += int64(len(resp.Body))
	}
	if endErr := h.EndResponse(); endErr != nil {
		h.stage = StageFailed
	}
}

func defaultExceptionResponse(err error) *response.Response {
	resp := response.New(httperr.StatusCode(err)).WithContentType("text/plain; charset=utf-8")
	resp.Body = []byte(err.Error())
	return resp
}
