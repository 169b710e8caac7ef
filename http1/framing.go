package http1

import (
	"strconv"
	"strings"
)

// statusHasNoBody reports whether status forbids a message body regardless
// of what the handler set on the Response (spec.md §4.1.4): 1xx, 204, and
// 304 never carry one.
func statusHasNoBody(status int) bool {
	if status >= 100 && status < 200 {
		return true
	}
	return status == 204 || status == 304
}

// entityHeaders that a no-body status must strip even if the handler set
// them (spec.md §4.1.4 — a 304/412 still describes the representation via
// some of these, but framing-relevant ones never apply).
var entityHeaderNames = map[string]bool{
	"content-length":    true,
	"transfer-encoding": true,
}

// stripEntityFraming removes framing headers that don't apply to a no-body
// response, so the caller's explicit Content-Length (say, echoed from a
// HEAD handler) never collides with the engine's own framing decision.
func stripEntityFraming(headers map[string]string) {
	for name := range headers {
		if entityHeaderNames[strings.ToLower(name)] {
			delete(headers, name)
		}
	}
}

// writeStatusLine appends "HTTP/1.1 <code> <reason>\r\n" to dst.
func writeStatusLine(dst []byte, status int) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(status), 10)
	dst = append(dst, ' ')
	dst = append(dst, reasonPhrase(status)...)
	dst = append(dst, '\r', '\n')
	return dst
}

// writeHeaderLine appends "Name: value\r\n" to dst.
func writeHeaderLine(dst []byte, name, value string) []byte {
	dst = append(dst, name...)
	dst = append(dst, ':', ' ')
	dst = append(dst, value...)
	dst = append(dst, '\r', '\n')
	return dst
}

func reasonPhrase(status int) string {
	if phrase, ok := reasonPhrases[status]; ok {
		return phrase
	}
	return "Unknown"
}

var reasonPhrases = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	412: "Precondition Failed",
	413: "Payload Too Large",
	417: "Expectation Failed",
	500: "Internal Server Error",
	503: "Service Unavailable",
}
