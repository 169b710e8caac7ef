package http1_test

import (
	"bytes"
	"context"
	"io"

	"github.com/xkungfu/sanic/buffer"
	"github.com/xkungfu/sanic/http1"
)

// fakeProtocol is an in-memory http1.Protocol used by the engine tests. It
// feeds ReceiveMore from a queue of pre-scripted chunks rather than a real
// socket, so tests can assert exact wire bytes without networking.
type fakeProtocol struct {
	buf       *buffer.Buffer
	incoming  [][]byte
	idx       int
	out       bytes.Buffer
	maxSize   int64
	accessLog bool
	records   []http1.AccessLogRecord
	requests  int
}

func newFakeProtocol(requestBytes []byte, more ...[]byte) *fakeProtocol {
	b := buffer.New()
	b.Append(requestBytes)
	return &fakeProtocol{
		buf:       b,
		incoming:  more,
		maxSize:   1 << 20,
		accessLog: true,
	}
}

func (p *fakeProtocol) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.out.Write(data)
	return nil
}

func (p *fakeProtocol) ReceiveMore(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.idx >= len(p.incoming) {
		return io.EOF
	}
	p.buf.Append(p.incoming[p.idx])
	p.idx++
	return nil
}

func (p *fakeProtocol) Buffer() *buffer.Buffer       { return p.buf }
func (p *fakeProtocol) RequestMaxSize() int64        { return p.maxSize }
func (p *fakeProtocol) AccessLog() bool              { return p.accessLog }
func (p *fakeProtocol) IncRequestsCount()            { p.requests++ }
func (p *fakeProtocol) RemoteAddr() (string, int)    { return "127.0.0.1", 5555 }
func (p *fakeProtocol) LogResponse(rec http1.AccessLogRecord) {
	p.records = append(p.records, rec)
}
