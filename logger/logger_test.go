package logger_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/uber-go/zap"

	. "github.com/xkungfu/sanic/logger"
)

var _ = Describe("Logger", func() {
	var (
		buf *bytes.Buffer
		log Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		log = New("sanic", zap.Output(zap.AddSync(buf)), zap.DebugLevel)
	})

	It("tags messages with the component name as source", func() {
		log.Info("starting")
		Expect(buf.String()).To(ContainSubstring(`"source":"sanic"`))
		Expect(buf.String()).To(ContainSubstring(`"message":"starting"`))
	})

	It("nests a session name with a dot separator", func() {
		session := log.Session("conn")
		Expect(session.SessionName()).To(Equal("sanic.conn"))

		session.Info("accepted")
		Expect(buf.String()).To(ContainSubstring(`"source":"sanic.conn"`))
	})

	It("accumulates With() fields under a data key", func() {
		withFields := log.With(zap.String("remote", "127.0.0.1:1234"))
		withFields.Warn("slow request")
		Expect(buf.String()).To(ContainSubstring(`"remote":"127.0.0.1:1234"`))
	})
})
