package http1_test

import (
	"context"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/http1"
	"github.com/xkungfu/sanic/logger"
	"github.com/xkungfu/sanic/request"
	"github.com/xkungfu/sanic/response"
)

func testLogger() logger.Logger {
	return logger.New("test", zap.Output(zap.AddSync(io.Discard)))
}

var _ = Describe("Http engine", func() {
	It("frames a one-shot body response and keeps the connection idle after draining input", func() {
		proto := newFakeProtocol([]byte("GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n"))
		handler := func(h *http1.Http, req *request.Request) error {
			Expect(req.Method).To(Equal("GET"))
			Expect(req.URL).To(Equal("/hello"))
			return h.Respond(response.New(200).WithContentType("text/plain").WithBody([]byte("hi")))
		}
		eng := http1.NewEngine(proto, testLogger(), handler, nil)
		eng.Run(context.Background())

		out := proto.out.String()
		Expect(out).To(HavePrefix("HTTP/1.1 200 OK\r\n"))
		Expect(out).To(ContainSubstring("Content-Type: text/plain\r\n"))
		Expect(out).To(ContainSubstring("Content-Length: 2\r\n"))
		Expect(out).To(HaveSuffix("\r\n\r\nhi"))
		Expect(proto.records).To(HaveLen(1))
		Expect(proto.records[0].Status).To(Equal(200))
		Expect(proto.records[0].ResponseBytes).To(Equal(int64(2)))
		Expect(proto.records[0].RequestSummary).To(Equal("GET /hello"))
	})

	It("streams a chunked response across multiple Send calls", func() {
		proto := newFakeProtocol([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		handler := func(h *http1.Http, req *request.Request) error {
			if err := h.Respond(response.New(200)); err != nil {
				return err
			}
			if err := h.Send([]byte("ab")); err != nil {
				return err
			}
			return h.Send([]byte("cde"))
		}
		eng := http1.NewEngine(proto, testLogger(), handler, nil)
		eng.Run(context.Background())

		out := proto.out.String()
		Expect(out).To(ContainSubstring("Transfer-Encoding: chunked\r\n"))
		Expect(out).To(HaveSuffix("\r\n\r\n2\r\nab\r\n3\r\ncde\r\n0\r\n\r\n"))
	})

	It("parses a chunked request body", func() {
		raw := "PUT /up HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
			"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
		proto := newFakeProtocol([]byte(raw))
		var body []byte
		handler := func(h *http1.Http, req *request.Request) error {
			for {
				chunk, err := req.Stream.Read()
				if err != nil {
					return err
				}
				if chunk == nil {
					break
				}
				body = append(body, chunk...)
			}
			return h.Respond(response.New(200).WithBody([]byte("ok")))
		}
		eng := http1.NewEngine(proto, testLogger(), handler, nil)
		eng.Run(context.Background())

		Expect(string(body)).To(Equal("Wikipedia"))
	})

	It("discards a no-body status's Send payload silently", func() {
		proto := newFakeProtocol([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		handler := func(h *http1.Http, req *request.Request) error {
			if err := h.Respond(response.New(204)); err != nil {
				return err
			}
			return h.Send([]byte("ignored"))
		}
		eng := http1.NewEngine(proto, testLogger(), handler, nil)
		eng.Run(context.Background())

		out := proto.out.String()
		Expect(out).To(HavePrefix("HTTP/1.1 204 No Content\r\n"))
		Expect(out).NotTo(ContainSubstring("ignored"))
	})

	It("closes the connection when the client sends Connection: close", func() {
		proto := newFakeProtocol([]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
		handler := func(h *http1.Http, req *request.Request) error {
			return h.Respond(response.New(200).WithBody([]byte("bye")))
		}
		eng := http1.NewEngine(proto, testLogger(), handler, nil)
		eng.Run(context.Background())

		Expect(proto.out.String()).To(ContainSubstring("Connection: close\r\n"))
	})

	It("renders a malformed request line as a 400 and closes", func() {
		proto := newFakeProtocol([]byte("NOT A REQUEST\r\n\r\n"))
		handler := func(h *http1.Http, req *request.Request) error {
			Fail("handler should not run for a malformed request")
			return nil
		}
		eng := http1.NewEngine(proto, testLogger(), handler, nil)
		eng.Run(context.Background())

		Expect(proto.out.String()).To(HavePrefix("HTTP/1.1 400 Bad Request\r\n"))
	})
})
