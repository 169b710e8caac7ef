package supervisor

import (
	"os"
	"os/exec"

	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/logger"
)

// ProcessRunner adapts one re-exec'd worker child to the ifrit.Runner
// shape (Run(signals, ready) error), so a grouper.Group can supervise a
// whole fleet of worker processes exactly as it would supervise
// in-process goroutines. Grounded on router/router.go's OnErrOrSignal:
// a received signal is relayed to the thing being supervised, and the
// runner only returns once that thing has actually stopped.
type ProcessRunner struct {
	// New builds (but does not start) the command for one child. Called
	// once per Run, so a crashed child can in principle be restarted by
	// invoking a fresh ProcessRunner with the same New.
	New func() *exec.Cmd
	Log logger.Logger
}

// Run implements ifrit.Runner.
func (p *ProcessRunner) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	cmd := p.New()
	if err := cmd.Start(); err != nil {
		return err
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	close(ready)

	for {
		select {
		case err := <-exited:
			return err
		case sig := <-signals:
			p.Log.Info("relaying signal to worker process", zap.String("signal", sig.String()), zap.Int("pid", cmd.Process.Pid))
			_ = cmd.Process.Signal(sig)
		}
	}
}
