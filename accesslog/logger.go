// Package accesslog writes one line per completed HTTP response, in the
// {status, byte, host, request} shape of spec.md §6. It implements
// conn.AccessLogger and is grounded on gorouter's
// access_log/access_log_record.go (WriteTo an io.Writer) and
// access_log/create_running_access_logger.go (a dedicated goroutine
// draining a channel so a slow sink never stalls request handling).
package accesslog

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xkungfu/sanic/http1"
)

// Logger serializes http1.AccessLogRecord values onto an io.Writer from
// its own goroutine.
type Logger struct {
	records chan http1.AccessLogRecord
	out     io.Writer
	done    chan struct{}
}

// NewLogger starts a Logger writing to out. queueSize bounds how many
// records can be buffered before new ones are dropped rather than block
// the connection that produced them.
func NewLogger(out io.Writer, queueSize int) *Logger {
	if queueSize <= 0 {
		queueSize = 1024
	}
	l := &Logger{
		records: make(chan http1.AccessLogRecord, queueSize),
		out:     out,
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// LogResponse implements conn.AccessLogger. It never blocks.
func (l *Logger) LogResponse(rec http1.AccessLogRecord) {
	select {
	case l.records <- rec:
	default:
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for rec := range l.records {
		writeRecord(l.out, rec)
	}
}

// Close stops accepting new records and blocks until the queue drains.
func (l *Logger) Close() {
	close(l.records)
	<-l.done
}

// writeRecord renders one record as
// `host - "request" status byte` followed by a newline.
func writeRecord(w io.Writer, rec http1.AccessLogRecord) (int64, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s - %q %d %d\n", rec.Host, rec.RequestSummary, rec.Status, rec.ResponseBytes)
	return b.WriteTo(w)
}
