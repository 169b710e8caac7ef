package errorwriter_test

import (
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/errorwriter"
	"github.com/xkungfu/sanic/httperr"
	"github.com/xkungfu/sanic/logger"
	"github.com/xkungfu/sanic/request"
)

var _ = Describe("ErrorWriter", func() {
	log := logger.New("test", zap.Output(zap.AddSync(io.Discard)))
	req := &request.Request{Method: "GET", URL: "/missing"}

	It("renders a plaintext body with the status code and message", func() {
		ew := errorwriter.NewPlaintextErrorWriter(log)
		resp := ew.HandleException(req, httperr.InvalidUsage("bad framing"))

		Expect(resp.Status).To(Equal(400))
		Expect(resp.ContentType).To(Equal("text/plain; charset=utf-8"))
		Expect(string(resp.Body)).To(ContainSubstring("400 Bad Request: bad framing"))
	})

	It("renders the configured HTML template", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "error.html")
		Expect(os.WriteFile(path, []byte("<h1>{{.Code}} {{.Status}}</h1><p>{{.Message}}</p>"), 0o644)).To(Succeed())

		ew, err := errorwriter.NewHTMLErrorWriterFromFile(log, path)
		Expect(err).NotTo(HaveOccurred())

		resp := ew.HandleException(req, httperr.ServerError("boom"))
		Expect(resp.Status).To(Equal(500))
		Expect(resp.ContentType).To(Equal("text/html; charset=utf-8"))
		Expect(string(resp.Body)).To(Equal("<h1>500 Internal Server Error</h1><p>boom</p>"))
	})
})
