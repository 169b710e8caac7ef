package supervisor_test

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xkungfu/sanic/supervisor"
)

var _ = Describe("ProcessRunner", func() {
	It("relays a signal to the child and returns once it exits", func() {
		pr := &supervisor.ProcessRunner{
			Log: testLogger(),
			New: func() *exec.Cmd {
				return exec.Command("sleep", "30")
			},
		}

		signals := make(chan os.Signal, 1)
		ready := make(chan struct{})

		done := make(chan error, 1)
		go func() { done <- pr.Run(signals, ready) }()

		Eventually(ready).Should(BeClosed())

		signals <- syscall.SIGTERM
		Eventually(done, 2*time.Second).Should(Receive())
	})
})
