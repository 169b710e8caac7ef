// Command sanicd runs a sanic-go HTTP/1.1 server: one supervisor process
// that re-execs itself into N worker processes sharing a single listening
// socket, or — when SANIC_WORKER_FD is set in its environment — one
// worker process serving off an inherited socket. Grounded on gorouter's
// cmd/gorouter/main.go wiring shape (flag parsing, config load, logger
// construction, ifrit/grouper/sigmon supervision).
package main

import (
	"flag"
	"os"
	"syscall"

	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/sigmon"
	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/accesslog"
	"github.com/xkungfu/sanic/config"
	"github.com/xkungfu/sanic/conn"
	"github.com/xkungfu/sanic/errorwriter"
	"github.com/xkungfu/sanic/http1"
	"github.com/xkungfu/sanic/logger"
	"github.com/xkungfu/sanic/metrics"
	"github.com/xkungfu/sanic/request"
	"github.com/xkungfu/sanic/response"
	"github.com/xkungfu/sanic/supervisor"
)

var configFile string

func main() {
	flag.StringVar(&configFile, "c", "", "Configuration File")
	flag.Parse()

	c, err := loadConfig()
	if err != nil {
		log := logger.New("sanic")
		log.Fatal("loading config", zap.Error(err))
	}

	log := logger.New("sanic", zap.Output(zap.AddSync(os.Stdout)), levelFromString(c.Logging.Level))
	log.Info("starting", zap.Uint16("port", c.Port), zap.Int("workers", c.Workers))

	errWriter := errorwriter.NewPlaintextErrorWriter(log.Session("errors"))

	var accessLogger conn.AccessLogger
	var accessLoggerImpl *accesslog.Logger
	if c.AccessLog {
		accessLoggerImpl = accesslog.NewLogger(os.Stdout, c.RequestBufferQueueSize)
		accessLogger = accessLoggerImpl
	}

	var metricsReporter metrics.Reporter = metrics.NoopReporter{}
	if c.StatsdAddress != "" {
		m, err := metrics.NewStatsdReporter(c.StatsdAddress, c.StatsdPrefix)
		if err != nil {
			log.Fatal("connecting to statsd", zap.Error(err))
		}
		metricsReporter = m
	}

	health := conn.NewHealth()

	worker := &supervisor.Worker{
		Config: supervisor.WorkerConfig{
			Host:                    c.Host,
			Port:                    c.Port,
			EnablePROXYProtocol:     c.EnablePROXYProtocol,
			RequestMaxSize:          c.RequestMaxSize,
			RequestTimeout:          c.RequestTimeout,
			ResponseTimeout:         c.ResponseTimeout,
			KeepAliveTimeout:        c.KeepAliveTimeout,
			AccessLog:               c.AccessLog,
			GracefulShutdownTimeout: c.GracefulShutdownTimeout,
		},
		Logger:           log.Session("worker"),
		Handler:          echoHandler,
		ExceptionHandler: errWriter,
		AccessLogger:     accessLogger,
		Metrics:          metricsReporter,
		Health:           health,
	}

	var runner ifrit.Runner
	if os.Getenv(supervisor.WorkerFDEnv) != "" || c.Workers <= 1 {
		runner = worker
	} else {
		runner = &supervisor.Supervisor{
			Logger: log.Session("supervisor"),
			Host:   c.Host,
			Port:   c.Port,
			Count:  c.Workers,
			Args:   os.Args[1:],
		}
	}

	process := ifrit.Invoke(sigmon.New(runner, syscall.SIGTERM, syscall.SIGINT))

	<-process.Ready()
	log.Info("sanic ready")

	if err := <-process.Wait(); err != nil {
		log.Fatal("sanic exited with failure", zap.Error(err))
	}

	if accessLoggerImpl != nil {
		accessLoggerImpl.Close()
	}
	os.Exit(0)
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		c, err := config.DefaultConfig()
		if err != nil {
			return nil, err
		}
		return c, c.Process()
	}
	return config.InitConfigFromFile(configFile)
}

func levelFromString(level string) zap.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// echoHandler is sanicd's built-in default application: it mirrors the
// request method and URL back as a 200, useful for smoke-testing a
// deployment before any real routes are wired up. A real embedding
// application supplies its own http1.HandlerFunc in place of this.
func echoHandler(h *http1.Http, req *request.Request) error {
	resp := response.New(200).WithContentType("text/plain; charset=utf-8")
	if err := h.Respond(resp); err != nil {
		return err
	}
	if err := h.Send([]byte(req.Method + " " + req.URL + "\n")); err != nil {
		return err
	}
	return h.EndResponse()
}
