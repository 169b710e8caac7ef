package http1

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/uber-go/zap"
	"github.com/xkungfu/sanic/httperr"
	"github.com/xkungfu/sanic/logger"
	"github.com/xkungfu/sanic/request"
	"github.com/xkungfu/sanic/response"
)

type respKind int

const (
	respNone respKind = iota
	respFixedLength
	respChunked
	respHeadIgnored
)

// Http drives one request/response cycle at a time over a Protocol. A
// fresh connection creates one Http and calls Run once; Run loops over
// as many requests as keep-alive allows (spec.md §4.1).
type Http struct {
	proto            Protocol
	logger           logger.Logger
	handler          HandlerFunc
	exceptionHandler ExceptionHandler

	ctx   context.Context
	stage Stage

	request  *request.Request
	response *response.Response

	keepAlive         bool
	headOnly          bool
	expectingContinue bool
	continueSent      bool
	requestChunked    bool
	requestBytesLeft  int64
	chunkBytesLeft    int64
	chunkDone         bool
	totalRequestSize  int64

	respKind      respKind
	respBytesLeft int64
	responseBytes int64

	exception error
}

// NewEngine builds an Http ready to drive requests over proto.
func NewEngine(proto Protocol, log logger.Logger, handler HandlerFunc, exceptionHandler ExceptionHandler) *Http {
	return &Http{
		proto:            proto,
		logger:           log,
		handler:          handler,
		exceptionHandler: exceptionHandler,
		keepAlive:        true,
	}
}

// Stage reports where the connection currently sits, for the driver's
// watchdog to pick the right timeout and exception (spec.md §4.2).
func (h *Http) Stage() Stage { return h.stage }

// SetPendingException records the error the watchdog wants surfaced as
// this cycle's failure once its cancellation (via ctx) is observed.
func (h *Http) SetPendingException(err error) {
	h.exception = err
}

func (h *Http) resetForRequest() {
	h.request = nil
	h.response = nil
	h.headOnly = false
	h.expectingContinue = false
	h.continueSent = false
	h.requestChunked = false
	h.requestBytesLeft = 0
	h.chunkBytesLeft = 0
	h.chunkDone = false
	h.totalRequestSize = 0
	h.respKind = respNone
	h.respBytesLeft = 0
	h.responseBytes = 0
}

// Run drives request/response cycles until keep-alive ends, an
// unrecoverable error occurs, or ctx is cancelled out from under a
// blocking read/write. It returns once the connection should close; the
// driver is responsible for tearing down the transport.
func (h *Http) Run(ctx context.Context) {
	for {
		h.ctx = ctx
		h.resetForRequest()
		h.stage = StageRequest

		err := h.readRequestHeader(ctx)
		if err == nil {
			h.stage = StageHandler
			err = h.invokeHandler()
		}
		if err == nil && h.stage == StageHandler {
			err = httperr.ServerError("Handler returned without sending a response")
		}
		if err == nil && h.stage == StageResponse {
			err = h.EndResponse()
		}

		switch {
		case err == nil:
			if h.requestBytesLeft > 0 || (h.requestChunked && !h.chunkDone) {
				h.logger.Warn("request body not fully consumed by handler",
					zap.String("request", h.request.Summary()))
				if drainErr := h.drainBody(); drainErr != nil {
					h.sendErrorResponse(drainErr)
				}
			}
		case isCancelled(err):
			e := h.exception
			if e == nil {
				e = httperr.ServiceUnavailable("Connection closed before response was ready")
			}
			h.exception = nil
			h.sendErrorResponse(e)
		default:
			h.sendErrorResponse(err)
		}

		if h.stage == StageFailed || !h.keepAlive {
			return
		}
		if h.proto.Buffer().Len() == 0 {
			if err := h.proto.ReceiveMore(ctx); err != nil {
				return
			}
		}
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (h *Http) invokeHandler() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = httperr.Errorf("handler panic: %v", r)
		}
	}()
	return h.handler(h, h.request)
}

// readRequestHeader scans the shared receive buffer for a full header
// block, asking for more bytes as needed, then parses it. One CRLF of the
// terminating blank line is deliberately left in the buffer when the body
// turns out to be chunked, so the chunk-header scanner sees the same
// leading-CRLF shape before every chunk, including the first.
func (h *Http) readRequestHeader(ctx context.Context) error {
	pos := 0
	for {
		buf := h.proto.Buffer()
		from := pos - 3
		if from < 0 {
			from = 0
		}
		idx := buf.Index([]byte("\r\n\r\n"), from)
		if idx == -1 {
			pos = buf.Len()
			if int64(buf.Len()) > h.proto.RequestMaxSize() {
				return httperr.PayloadTooLarge("Request header exceeds request_max_size")
			}
			if err := h.proto.ReceiveMore(ctx); err != nil {
				return err
			}
			continue
		}

		raw := append([]byte(nil), buf.Bytes()[:idx]...)
		chunked, err := h.parseRequestHeader(raw)
		if err != nil {
			return err
		}
		h.totalRequestSize = int64(idx + 4)
		if chunked {
			buf.TrimPrefix(idx + 2)
		} else {
			buf.TrimPrefix(idx + 4)
		}
		h.proto.IncRequestsCount()
		return nil
	}
}

func (h *Http) parseRequestHeader(raw []byte) (chunked bool, err error) {
	lines := bytes.Split(raw, []byte("\r\n"))
	if len(lines) == 0 || len(lines[0]) == 0 {
		return false, httperr.InvalidUsage("Empty request line")
	}

	parts := bytes.Fields(lines[0])
	if len(parts) != 3 {
		return false, httperr.InvalidUsage("Malformed request line")
	}
	method := string(parts[0])
	url := string(parts[1])
	proto := string(parts[2])
	if !strings.HasPrefix(proto, "HTTP/") {
		return false, httperr.InvalidUsage("Malformed request line")
	}
	version := strings.TrimPrefix(proto, "HTTP/")
	if version != "1.1" && version != "1.0" {
		return false, httperr.InvalidUsage("Unsupported HTTP version")
	}

	var headers request.Header
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		i := bytes.IndexByte(line, ':')
		if i < 0 {
			return false, httperr.InvalidUsage("Malformed header line")
		}
		name := strings.ToLower(strings.TrimSpace(string(line[:i])))
		value := strings.TrimSpace(string(line[i+1:]))
		headers = append(headers, [2]string{name, value})
	}

	te := headers.Get("transfer-encoding")
	cl := headers.Get("content-length")
	switch {
	case strings.EqualFold(te, "chunked"):
		chunked = true
	case cl != "":
		n, convErr := strconv.ParseInt(cl, 10, 64)
		if convErr != nil || n < 0 {
			return false, httperr.InvalidUsage("Malformed Content-Length")
		}
		if n > h.proto.RequestMaxSize() {
			return false, httperr.PayloadTooLarge("Content-Length exceeds request_max_size")
		}
		h.requestBytesLeft = n
	}

	if expect := headers.Get("expect"); expect != "" {
		if !strings.EqualFold(expect, "100-continue") {
			return chunked, httperr.HeaderExpectationFailed("Unsupported Expect header")
		}
		h.expectingContinue = true
	}

	conn := headers.Get("connection")
	if version == "1.1" {
		h.keepAlive = !strings.EqualFold(conn, "close")
	} else {
		h.keepAlive = strings.EqualFold(conn, "keep-alive")
	}
	h.headOnly = method == "HEAD"
	h.requestChunked = chunked

	ip, port := h.proto.RemoteAddr()
	h.request = &request.Request{
		Method:   method,
		URL:      url,
		Version:  version,
		Headers:  headers,
		RemoteIP: ip,
		Port:     port,
		Stream:   h,
	}
	return chunked, nil
}

// Read implements request.Stream, pulling the next chunk of body bytes. A
// nil slice with a nil error marks end-of-body.
func (h *Http) Read() ([]byte, error) {
	if h.expectingContinue && !h.continueSent {
		h.continueSent = true
		if err := h.proto.Send(h.ctx, []byte("HTTP/1.1 100 Continue\r\n\r\n")); err != nil {
			return nil, err
		}
	}
	if h.requestChunked {
		return h.readChunkedBody()
	}
	return h.readFixedBody()
}

// accountBodyBytes adds n body-data bytes to the running total of bytes
// consumed for the current request (header block plus every byte actually
// delivered via Read) and enforces it against RequestMaxSize independent of
// any per-field limit (e.g. Content-Length) already checked elsewhere.
func (h *Http) accountBodyBytes(n int64) error {
	h.totalRequestSize += n
	if h.totalRequestSize > h.proto.RequestMaxSize() {
		return httperr.PayloadTooLarge("Request exceeds request_max_size")
	}
	return nil
}

func (h *Http) readFixedBody() ([]byte, error) {
	if h.requestBytesLeft <= 0 {
		return nil, nil
	}
	buf := h.proto.Buffer()
	for buf.Len() == 0 {
		if err := h.proto.ReceiveMore(h.ctx); err != nil {
			return nil, err
		}
	}
	n := int64(buf.Len())
	if n > h.requestBytesLeft {
		n = h.requestBytesLeft
	}
	data := buf.Take(int(n))
	h.requestBytesLeft -= int64(len(data))
	if err := h.accountBodyBytes(int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

func (h *Http) readChunkedBody() ([]byte, error) {
	if h.chunkDone {
		return nil, nil
	}
	if h.chunkBytesLeft == 0 {
		for {
			buf := h.proto.Buffer()
			size, headerLen, needMore, err := parseChunkHeader(buf.Bytes())
			if err != nil {
				return nil, err
			}
			if needMore {
				if err := h.proto.ReceiveMore(h.ctx); err != nil {
					return nil, err
				}
				continue
			}
			buf.TrimPrefix(headerLen)
			if size == 0 {
				h.chunkDone = true
				if err := h.consumeChunkTrailer(); err != nil {
					return nil, err
				}
				return nil, nil
			}
			h.chunkBytesLeft = size
			break
		}
	}

	buf := h.proto.Buffer()
	for buf.Len() == 0 {
		if err := h.proto.ReceiveMore(h.ctx); err != nil {
			return nil, err
		}
	}
	n := int64(buf.Len())
	if n > h.chunkBytesLeft {
		n = h.chunkBytesLeft
	}
	data := buf.Take(int(n))
	h.chunkBytesLeft -= int64(len(data))
	if err := h.accountBodyBytes(int64(len(data))); err != nil {
		return nil, err
	}
	// The CRLF following this chunk's data is deliberately left in the
	// buffer: the next call's parseChunkHeader expects that same
	// leading-CRLF shape, whether it's reading the next chunk or the
	// final "\r\n" before the zero-length terminator.
	return data, nil
}

// consumeChunkTrailer discards the CRLF that ends the zero-length terminal
// chunk. Chunk trailers are not supported: any bytes other than that CRLF
// are rejected as bad chunked encoding.
func (h *Http) consumeChunkTrailer() error {
	buf := h.proto.Buffer()
	for buf.Len() < 2 {
		if err := h.proto.ReceiveMore(h.ctx); err != nil {
			return err
		}
	}
	if buf.Bytes()[0] != '\r' || buf.Bytes()[1] != '\n' {
		return httperr.InvalidUsage("Bad chunked encoding")
	}
	buf.TrimPrefix(2)
	return nil
}

func (h *Http) drainBody() error {
	for {
		data, err := h.Read()
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
	}
}
