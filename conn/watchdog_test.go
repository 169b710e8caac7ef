package conn_test

import (
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xkungfu/sanic/conn"
	"github.com/xkungfu/sanic/http1"
)

// stageEngine is a stand-in for *http1.Http whose Stage() the test
// controls directly, so the Watchdog can be exercised without a real
// connection. conn.Watchdog only depends on the engine's Stage method.
type stageEngine struct{ stage http1.Stage }

func (s *stageEngine) Stage() http1.Stage { return s.stage }

var _ = Describe("Watchdog", func() {
	It("fires nil for an idle stage that overruns its keep-alive budget", func() {
		clk := fakeclock.NewFakeClock(time.Now())
		eng := &stageEngine{stage: http1.StageIdle}
		fired := make(chan error, 1)

		wd := conn.NewWatchdog(clk, conn.Timeouts{KeepAlive: time.Second}, eng, func(stage http1.Stage, err error) {
			fired <- err
		})
		wd.Start()

		clk.WaitForWatcherAndIncrement(2 * time.Second)

		Eventually(fired).Should(Receive(BeNil()))
	})

	It("fires a request-timeout exception for an overrun request stage", func() {
		clk := fakeclock.NewFakeClock(time.Now())
		eng := &stageEngine{stage: http1.StageRequest}
		fired := make(chan error, 1)

		wd := conn.NewWatchdog(clk, conn.Timeouts{Request: time.Second}, eng, func(stage http1.Stage, err error) {
			fired <- err
		})
		wd.Start()

		clk.WaitForWatcherAndIncrement(2 * time.Second)

		var got error
		Eventually(fired).Should(Receive(&got))
		Expect(got).To(HaveOccurred())
	})
})
