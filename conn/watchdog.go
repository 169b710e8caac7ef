// Package conn owns the per-connection lifecycle around an http1.Http
// engine: the receive buffer, backpressure, the idle/request/response
// watchdog, and graceful teardown (spec.md §4.2, §5).
package conn

import (
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/xkungfu/sanic/http1"
)

// Timeouts bundles the three duration knobs the watchdog enforces, one per
// http1.Stage bucket (spec.md §4.2).
type Timeouts struct {
	KeepAlive time.Duration
	Request   time.Duration
	Response  time.Duration
}

// Stager is the part of *http1.Http the Watchdog needs: just enough to
// read which stage a connection currently sits in.
type Stager interface {
	Stage() http1.Stage
}

// Watchdog polls an engine's Stage on a self-rescheduling timer and fires
// onExpire once the current stage has run longer than its budget. It keeps
// rescheduling until Stop is called or until it has fired onExpire, which
// it does at most once — ported from
// healthchecker/watchdog's call_later-equivalent loop, generalized from a
// single health poll to per-stage timeout tracking (spec.md §4.2).
type Watchdog struct {
	clk      clock.Clock
	timeouts Timeouts
	engine   Stager
	onExpire func(stage http1.Stage, err error)

	lastStage  http1.Stage
	stageSince time.Time
	stopped    bool
}

// NewWatchdog builds a Watchdog for engine. onExpire is called with the
// stage that overran its budget and the exception (nil for StageIdle) the
// driver should attach before cancelling whatever I/O is in flight.
func NewWatchdog(clk clock.Clock, timeouts Timeouts, engine Stager, onExpire func(stage http1.Stage, err error)) *Watchdog {
	return &Watchdog{
		clk:        clk,
		timeouts:   timeouts,
		engine:     engine,
		onExpire:   onExpire,
		lastStage:  engine.Stage(),
		stageSince: clk.Now(),
	}
}

// Start begins the self-rescheduling check loop.
func (w *Watchdog) Start() {
	w.scheduleNext(w.nextInterval())
}

// Stop ends the loop; any already-fired timer's callback still runs but
// exits immediately upon observing stopped.
func (w *Watchdog) Stop() {
	w.stopped = true
}

func (w *Watchdog) scheduleNext(d time.Duration) {
	w.clk.AfterFunc(d, w.check)
}

func (w *Watchdog) check() {
	if w.stopped {
		return
	}

	stage := w.engine.Stage()
	if stage != w.lastStage {
		w.lastStage = stage
		w.stageSince = w.clk.Now()
		w.scheduleNext(w.nextInterval())
		return
	}

	elapsed := w.clk.Since(w.stageSince)
	limit := w.limitFor(stage)

	if limit > 0 && elapsed > limit {
		w.onExpire(stage, exceptionFor(stage))
		return
	}
	w.scheduleNext(w.nextInterval())
}

func (w *Watchdog) limitFor(stage http1.Stage) time.Duration {
	switch stage {
	case http1.StageIdle:
		return w.timeouts.KeepAlive
	case http1.StageRequest:
		return w.timeouts.Request
	default:
		return w.timeouts.Response
	}
}

// exceptionFor reports the error a stage's expiry should fail the cycle
// with. StageIdle has none: the connection simply closes, matching the
// original's plain close_if_idle with no exception raised (SPEC_FULL.md
// §12).
func exceptionFor(stage http1.Stage) error {
	switch stage {
	case http1.StageIdle:
		return nil
	case http1.StageRequest:
		return requestTimeoutErr
	default:
		return responseTimeoutErr
	}
}

// nextInterval mirrors the original watchdog's own rescheduling rule: wake
// at half the shortest configured timeout, floored at 100ms, so no timeout
// can expire more than ~50% late.
func (w *Watchdog) nextInterval() time.Duration {
	shortest := time.Duration(0)
	for _, d := range []time.Duration{w.timeouts.KeepAlive, w.timeouts.Request, w.timeouts.Response} {
		if d <= 0 {
			continue
		}
		if shortest == 0 || d < shortest {
			shortest = d
		}
	}
	interval := shortest / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return interval
}
