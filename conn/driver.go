package conn

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/nu7hatch/gouuid"
	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/buffer"
	"github.com/xkungfu/sanic/http1"
	"github.com/xkungfu/sanic/httperr"
	"github.com/xkungfu/sanic/logger"
)

// recvChunkSize is how much we ask the kernel for per Read call. Go's
// blocking net.Conn.Read/Write already apply the backpressure the
// original got from asyncio's pause_reading/_can_write machinery: a Write
// blocks until the kernel accepts the bytes, and a Read simply waits for
// more, so the driver doesn't need to replicate that signalling by hand
// (SPEC_FULL.md §12).
const recvChunkSize = 64 * 1024

// AccessLogger receives one record per completed response when access
// logging is enabled (spec.md §6).
type AccessLogger interface {
	LogResponse(rec http1.AccessLogRecord)
}

// Options configures a Driver beyond the bare net.Conn.
type Options struct {
	RequestMaxSize int64
	Timeouts       Timeouts
	AccessLog      bool
	AccessLogger   AccessLogger
	Clock          clock.Clock
}

// Driver owns one accepted connection: its socket, receive buffer,
// watchdog, and the http1.Http engine driving it. One Driver runs entirely
// on the goroutine that calls Serve — one goroutine per connection,
// replacing the original's per-connection asyncio Task (spec.md §5).
type Driver struct {
	conn   net.Conn
	opts   Options
	recv   *buffer.Buffer
	log    logger.Logger
	id     string
	engine *http1.Http
	wd     *Watchdog

	cancel context.CancelFunc

	requests int64
}

// NewDriver wires a Driver around an accepted connection. handler and
// exceptionHandler are forwarded to the http1 engine unchanged.
func NewDriver(c net.Conn, log logger.Logger, handler http1.HandlerFunc, exceptionHandler http1.ExceptionHandler, opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = clock.NewClock()
	}
	id := "unknown"
	if u, err := uuid.NewV4(); err == nil {
		id = u.String()
	}

	d := &Driver{
		conn: c,
		opts: opts,
		recv: buffer.New(),
		log:  log.Session("conn").With(zap.String("conn_id", id)),
		id:   id,
	}
	d.engine = http1.NewEngine(d, d.log, handler, exceptionHandler)
	d.wd = NewWatchdog(opts.Clock, opts.Timeouts, d.engine, d.onExpire)
	return d
}

// ID is the connection's generated identifier, used in logs.
func (d *Driver) ID() string { return d.id }

// Close forcibly closes the underlying connection. Safe to call
// concurrently with Serve; Serve's own deferred close is idempotent with
// it since net.Conn.Close tolerates a second call returning an error we
// don't need to act on.
func (d *Driver) Close() error { return d.conn.Close() }

// CloseIfIdle closes the connection only if it is currently between
// requests (StageIdle), leaving an in-flight request/response cycle alone.
// A drain calls this over every live connection so keep-alive connections
// sitting idle are dropped immediately rather than held open for the whole
// graceful-shutdown window (spec.md §4.3).
func (d *Driver) CloseIfIdle() bool {
	if d.engine.Stage() != http1.StageIdle {
		return false
	}
	d.conn.Close()
	return true
}

// RequestsCount is the number of requests parsed on this connection so far.
func (d *Driver) RequestsCount() int64 { return atomic.LoadInt64(&d.requests) }

// Serve drives the connection to completion: it runs the http1 engine
// under a watchdog until keep-alive ends, the peer disconnects, or parent
// is cancelled, then closes the socket.
func (d *Driver) Serve(parent context.Context) {
	defer d.conn.Close()

	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	defer cancel()

	d.wd.Start()
	defer d.wd.Stop()

	d.engine.Run(ctx)
}

// onExpire is the Watchdog's callback: it attaches the exception the
// expired stage should fail with (nil for StageIdle — a plain close, per
// the original's close_if_idle), then unblocks whatever Read/Write is
// currently in flight by cancelling ctx and kicking the socket deadline.
func (d *Driver) onExpire(stage http1.Stage, err error) {
	if err != nil {
		d.log.Warn("stage timed out", zap.String("stage", stage.String()), zap.String("conn_id", d.id))
		d.engine.SetPendingException(err)
	}
	d.cancel()
	d.conn.SetDeadline(time.Now())
}

// Send implements http1.Protocol.
func (d *Driver) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.conn.Write(data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return httperr.Errorf("connection write failed: %v", err)
	}
	return nil
}

// ReceiveMore implements http1.Protocol.
func (d *Driver) ReceiveMore(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chunk := make([]byte, recvChunkSize)
	n, err := d.conn.Read(chunk)
	if n > 0 {
		d.recv.Append(chunk[:n])
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// Buffer implements http1.Protocol.
func (d *Driver) Buffer() *buffer.Buffer { return d.recv }

// RequestMaxSize implements http1.Protocol.
func (d *Driver) RequestMaxSize() int64 { return d.opts.RequestMaxSize }

// AccessLog implements http1.Protocol.
func (d *Driver) AccessLog() bool { return d.opts.AccessLog }

// LogResponse implements http1.Protocol.
func (d *Driver) LogResponse(rec http1.AccessLogRecord) {
	if d.opts.AccessLogger != nil {
		d.opts.AccessLogger.LogResponse(rec)
	}
}

// IncRequestsCount implements http1.Protocol.
func (d *Driver) IncRequestsCount() { atomic.AddInt64(&d.requests, 1) }

// RemoteAddr implements http1.Protocol.
func (d *Driver) RemoteAddr() (string, int) {
	addr, ok := d.conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return "", 0
	}
	return addr.IP.String(), addr.Port
}
