package supervisor_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/conn"
	"github.com/xkungfu/sanic/http1"
	"github.com/xkungfu/sanic/logger"
	"github.com/xkungfu/sanic/request"
	"github.com/xkungfu/sanic/response"
	"github.com/xkungfu/sanic/supervisor"
)

func testLogger() logger.Logger {
	return logger.New("test", zap.Output(zap.AddSync(io.Discard)))
}

func echoHandler(h *http1.Http, req *request.Request) error {
	resp := response.New(200).WithBody([]byte(req.Method + " " + req.URL))
	return h.Respond(resp)
}

var _ = Describe("Worker", func() {
	It("accepts connections, serves them, and drains on signal", func() {
		w := &supervisor.Worker{
			Config: supervisor.WorkerConfig{
				Host:                    "127.0.0.1",
				Port:                    0,
				RequestMaxSize:          1 << 20,
				RequestTimeout:          2 * time.Second,
				ResponseTimeout:         2 * time.Second,
				KeepAliveTimeout:        2 * time.Second,
				GracefulShutdownTimeout: time.Second,
			},
			Logger:  testLogger(),
			Handler: echoHandler,
			Health:  conn.NewHealth(),
		}

		signals := make(chan os.Signal, 1)
		ready := make(chan struct{})

		// Worker binds port 0, which the real supervisor never does (it
		// binds once and hands the fd down); here we only exercise the
		// accept/drain lifecycle, so bindOrInherit's fallback branch
		// picking an ephemeral port is fine for the test.
		runErr := make(chan error, 1)
		go func() { runErr <- w.Run(signals, ready) }()

		Eventually(ready).Should(BeClosed())
		Expect(w.Health.Get()).To(Equal(conn.StatusHealthy))

		addr := dialableAddr(w)
		c, err := net.Dial("tcp", addr)
		Expect(err).NotTo(HaveOccurred())
		defer c.Close()

		fmt.Fprintf(c, "GET /ping HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
		line, err := bufio.NewReader(c).ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 200 OK\r\n"))

		signals <- os.Interrupt
		Eventually(runErr, 2*time.Second).Should(Receive(BeNil()))
		Expect(w.Health.Get()).To(Equal(conn.StatusDraining))
	})
})

// dialableAddr waits for the worker's listener to be bound and returns
// its address. Run already closed `ready` by the time this is called, so
// a short retry loop is just settling a benign race on listener
// assignment inside Run.
func dialableAddr(w *supervisor.Worker) string {
	var addr string
	Eventually(func() string {
		addr = w.ListenAddr()
		return addr
	}, time.Second).ShouldNot(BeEmpty())
	return addr
}
