// Package errorwriter renders request-handling errors into responses,
// implementing http1.ExceptionHandler. It is grounded on gorouter's
// errorwriter package, adapted from http.ResponseWriter to sanic's
// response.Response and from gorouter's route-not-found errors to the
// httperr taxonomy (spec.md §7).
package errorwriter

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"os"

	"github.com/uber-go/zap"

	"github.com/xkungfu/sanic/httperr"
	"github.com/xkungfu/sanic/logger"
	"github.com/xkungfu/sanic/request"
	"github.com/xkungfu/sanic/response"
)

// ErrorWriter renders an error into a response.Response. It satisfies
// http1.ExceptionHandler directly; the two implementations below are
// interchangeable wherever one is accepted (e.g. Worker.ExceptionHandler
// in the supervisor package).
type ErrorWriter interface {
	HandleException(req *request.Request, err error) *response.Response
}

type plaintextErrorWriter struct {
	log logger.Logger
}

// NewPlaintextErrorWriter renders "<code> <reason>: <message>" as a plain
// text body. It's the default when no HTML template is configured.
func NewPlaintextErrorWriter(log logger.Logger) ErrorWriter {
	return &plaintextErrorWriter{log: log}
}

func (ew *plaintextErrorWriter) HandleException(req *request.Request, err error) *response.Response {
	code := httperr.StatusCode(err)
	body := fmt.Sprintf("%d %s: %s\n", code, http.StatusText(code), err.Error())
	ew.logStatus(req, code, body)
	return response.New(code).WithContentType("text/plain; charset=utf-8").WithBody([]byte(body))
}

func (ew *plaintextErrorWriter) logStatus(req *request.Request, code int, body string) {
	if ew.log == nil || code == http.StatusNotFound {
		return
	}
	ew.log.Info("status", zap.Int("code", code), zap.String("request", req.Summary()), zap.String("body", body))
}

type htmlErrorWriter struct {
	log logger.Logger
	tpl *template.Template
}

// errorPage is what an HTML error template may reference via {{.Code}},
// {{.Status}}, {{.Message}}.
type errorPage struct {
	Code    int
	Status  string
	Message string
}

// NewHTMLErrorWriterFromFile loads an html/template from path, rendered
// with an errorPage on every error.
func NewHTMLErrorWriterFromFile(log logger.Logger, path string) (ErrorWriter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read HTML error template file: %w", err)
	}
	tpl, err := template.New("error-message").Parse(string(raw))
	if err != nil {
		return nil, err
	}
	return &htmlErrorWriter{log: log, tpl: tpl}, nil
}

// HandleException renders the configured template; if rendering fails, it
// falls back to the plaintext rendering and logs the template failure
// rather than returning a broken response.
func (ew *htmlErrorWriter) HandleException(req *request.Request, err error) *response.Response {
	code := httperr.StatusCode(err)
	page := errorPage{Code: code, Status: http.StatusText(code), Message: err.Error()}

	if ew.log != nil && code != http.StatusNotFound {
		ew.log.Info("status", zap.Int("code", code), zap.String("request", req.Summary()))
	}

	var rendered bytes.Buffer
	if tplErr := ew.tpl.Execute(&rendered, page); tplErr != nil {
		if ew.log != nil {
			ew.log.Error("render-error-failed", zap.Error(tplErr))
		}
		body := fmt.Sprintf("%d %s: %s\n", code, page.Status, page.Message)
		return response.New(code).WithContentType("text/plain; charset=utf-8").WithBody([]byte(body))
	}
	return response.New(code).WithContentType("text/html; charset=utf-8").WithBody(rendered.Bytes())
}
