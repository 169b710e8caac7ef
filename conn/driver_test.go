package conn_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/conn"
	"github.com/xkungfu/sanic/http1"
	"github.com/xkungfu/sanic/logger"
	"github.com/xkungfu/sanic/request"
	"github.com/xkungfu/sanic/response"
)

// pipeConn overrides RemoteAddr for the net.Pipe endpoints used below,
// whose own RemoteAddr is not a *net.TCPAddr.
type pipeConn struct{ net.Conn }

func (pipeConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9} }

var _ = Describe("Driver", func() {
	It("serves one request/response cycle over a real net.Conn", func() {
		server, client := net.Pipe()
		defer client.Close()

		log := logger.New("test", zap.Output(zap.AddSync(io.Discard)))
		handler := func(h *http1.Http, req *request.Request) error {
			return h.Respond(response.New(200).WithBody([]byte("pong")))
		}

		d := conn.NewDriver(pipeConn{server}, log, handler, nil, conn.Options{
			RequestMaxSize: 1 << 20,
		})

		done := make(chan struct{})
		go func() {
			d.Serve(context.Background())
			close(done)
		}()

		_, err := client.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())

		reader := bufio.NewReader(client)
		line, err := reader.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 200 OK\r\n"))

		// net.Pipe writes block until read, so the rest of the response
		// must be consumed for the driver's body write to complete.
		go io.Copy(io.Discard, reader)

		Eventually(done, time.Second).Should(BeClosed())
	})
})
