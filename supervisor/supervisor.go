package supervisor

import (
	"fmt"
	"net"
	"os"
	"os/exec"

	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grouper"
	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/logger"
)

// Supervisor is the parent process of a multi-worker deployment: it
// binds the listening socket exactly once, then re-execs the current
// binary Count times with that socket inherited via os/exec's
// ExtraFiles, and supervises the resulting children as one
// grouper.Group. This is the fork-free stand-in for the original's
// multiprocessing.get_context("fork") (SPEC_FULL.md §12): Go cannot
// fork a running process, but handing down an already-bound,
// SO_REUSEADDR-style shared listener through inheritance gets the same
// "every worker accepts off the same socket" property.
type Supervisor struct {
	Logger logger.Logger
	Host   string
	Port   uint16
	Count  int

	// Args is appended to the re-exec'd binary's argv (os.Args[1:] in the
	// common case, so every child sees the same flags the parent did).
	Args []string
}

// Run implements ifrit.Runner for the parent process.
func (s *Supervisor) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Host, s.Port))
	if err != nil {
		return err
	}
	tcpListener, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("supervisor: listener is not a *net.TCPListener")
	}

	listenerFile, err := tcpListener.File()
	if err != nil {
		tcpListener.Close()
		return err
	}
	defer listenerFile.Close()
	// The *os.File returned by File() is a dup; closing the original
	// listener doesn't affect file descriptors already inherited by
	// children, and we don't want the parent itself accepting.
	tcpListener.Close()

	members := make(grouper.Members, 0, s.Count)
	for i := 0; i < s.Count; i++ {
		idx := i
		pr := &ProcessRunner{
			Log: s.Logger,
			New: func() *exec.Cmd {
				cmd := exec.Command(os.Args[0], s.Args...)
				cmd.ExtraFiles = []*os.File{listenerFile}
				cmd.Env = append(os.Environ(), fmt.Sprintf("%s=3", WorkerFDEnv))
				cmd.Stdout = os.Stdout
				cmd.Stderr = os.Stderr
				return cmd
			},
		}
		members = append(members, grouper.Member{Name: fmt.Sprintf("worker-%d", idx), Runner: pr})
	}

	s.Logger.Info("supervisor starting workers", zap.Int("count", s.Count))
	group := grouper.NewParallel(os.Interrupt, members)
	process := ifrit.Invoke(group)

	close(ready)

	for {
		select {
		case sig := <-signals:
			process.Signal(sig)
		case err := <-process.Wait():
			return err
		}
	}
}
