// Package supervisor owns process-level concerns: a Worker accepts
// connections and drains them on shutdown (one OS process's share of the
// work), and a Supervisor re-execs and supervises N Worker processes
// sharing one listening socket, replacing the original's
// multiprocessing.get_context("fork") prefork model (SPEC_FULL.md §12).
package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/armon/go-proxyproto"
	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/conn"
	"github.com/xkungfu/sanic/http1"
	"github.com/xkungfu/sanic/logger"
	"github.com/xkungfu/sanic/metrics"
)

// WorkerFDEnv names the environment variable a re-exec'd worker reads to
// find its inherited listening socket, passed by the parent Supervisor
// via os/exec's ExtraFiles (fd 3, the first file after stdin/stdout/stderr).
const WorkerFDEnv = "SANIC_WORKER_FD"

// proxyProtocolHeaderTimeout bounds how long the PROXY protocol listener
// waits for the header line before giving up on a connection, matching
// router/router.go's use of the same armon/go-proxyproto knob.
const proxyProtocolHeaderTimeout = 5 * time.Second

// WorkerConfig is the subset of config.Config a Worker needs, kept
// separate from the config package so this package doesn't import it.
type WorkerConfig struct {
	Host                string
	Port                uint16
	EnablePROXYProtocol bool

	RequestMaxSize   int64
	RequestTimeout   time.Duration
	ResponseTimeout  time.Duration
	KeepAliveTimeout time.Duration

	AccessLog               bool
	GracefulShutdownTimeout time.Duration
}

// Worker owns one process's accept loop: bind or inherit a listener,
// hand every accepted connection to a conn.Driver, and track the
// in-flight set so a drain can wait for it to empty. It implements
// ifrit.Runner, grounded on router/router.go's Run(signals, ready) shape.
type Worker struct {
	Config           WorkerConfig
	Logger           logger.Logger
	Handler          http1.HandlerFunc
	ExceptionHandler http1.ExceptionHandler
	AccessLogger     conn.AccessLogger
	Metrics          metrics.Reporter
	Health           *conn.Health

	listener net.Listener

	mu     sync.Mutex
	active map[*conn.Driver]struct{}
}

// ListenAddr returns the bound listener's address once Run has started
// it, or "" before that; useful for tests that bind an ephemeral port.
func (w *Worker) ListenAddr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return ""
	}
	return w.listener.Addr().String()
}

// Run implements ifrit.Runner.
func (w *Worker) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	listener, err := w.bindOrInherit()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.listener = listener
	w.active = map[*conn.Driver]struct{}{}
	w.mu.Unlock()

	if w.Health != nil {
		w.Health.Set(conn.StatusHealthy)
	}
	w.Logger.Info("worker listening", zap.String("addr", listener.Addr().String()))

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- w.acceptLoop() }()

	close(ready)

	select {
	case err := <-acceptErr:
		return err
	case sig := <-signals:
		w.Logger.Info("worker draining", zap.String("signal", sig.String()))
		return w.drain()
	}
}

// bindOrInherit binds a fresh listener, unless WorkerFDEnv says to adopt
// one handed down by a Supervisor parent.
func (w *Worker) bindOrInherit() (net.Listener, error) {
	var listener net.Listener
	var err error

	if os.Getenv(WorkerFDEnv) != "" {
		listener, err = net.FileListener(os.NewFile(3, "sanic-listener"))
	} else {
		listener, err = net.Listen("tcp", fmt.Sprintf("%s:%d", w.Config.Host, w.Config.Port))
	}
	if err != nil {
		return nil, err
	}

	if w.Config.EnablePROXYProtocol {
		listener = &proxyproto.Listener{Listener: listener, ProxyHeaderTimeout: proxyProtocolHeaderTimeout}
	}
	return listener, nil
}

func (w *Worker) acceptLoop() error {
	for {
		c, err := w.listener.Accept()
		if err != nil {
			return err
		}
		w.serveOne(c)
	}
}

func (w *Worker) serveOne(c net.Conn) {
	if w.Metrics != nil {
		w.Metrics.ConnectionOpened()
	}

	d := conn.NewDriver(c, w.Logger, w.Handler, w.ExceptionHandler, conn.Options{
		RequestMaxSize: w.Config.RequestMaxSize,
		Timeouts: conn.Timeouts{
			KeepAlive: w.Config.KeepAliveTimeout,
			Request:   w.Config.RequestTimeout,
			Response:  w.Config.ResponseTimeout,
		},
		AccessLog:    w.Config.AccessLog,
		AccessLogger: w.AccessLogger,
	})

	w.mu.Lock()
	w.active[d] = struct{}{}
	w.mu.Unlock()

	go func() {
		d.Serve(context.Background())

		w.mu.Lock()
		delete(w.active, d)
		w.mu.Unlock()

		if w.Metrics != nil {
			w.Metrics.ConnectionClosed()
		}
	}()
}

// drain stops accepting new connections immediately, then waits up to
// GracefulShutdownTimeout for the in-flight set to empty on its own
// before force-closing whatever remains, mirroring router.go's
// Drain/DrainAndStop pair collapsed into one step (this worker has no
// separate "stop accepting but keep serving" phase to offer operators,
// since spec.md's scope ends at the connection driver).
func (w *Worker) drain() error {
	if w.Health != nil {
		w.Health.Set(conn.StatusDraining)
	}
	w.listener.Close()
	w.closeIdleActive()

	deadline := time.NewTimer(w.Config.GracefulShutdownTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			w.closeActive()
			return nil
		case <-ticker.C:
			if w.activeCount() == 0 {
				return nil
			}
		}
	}
}

func (w *Worker) activeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

func (w *Worker) closeActive() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for d := range w.active {
		d.Close()
	}
}

// closeIdleActive drops every connection currently sitting between
// requests, so keep-alive connections don't hold the drain open for the
// full GracefulShutdownTimeout waiting for a next request that would just
// be refused anyway.
func (w *Worker) closeIdleActive() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for d := range w.active {
		d.CloseIfIdle()
	}
}
