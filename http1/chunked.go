package http1

import (
	"bytes"
	"strconv"

	"github.com/xkungfu/sanic/httperr"
)

// chunkHeaderScanLimit bounds how many bytes we'll buffer looking for a
// chunk header's terminating CRLF before giving up on the peer
// (http1.py's http1_request_chunked: "if buf.find(b'\r\n', 3) == -1 and
// len(buf) > 64: raise InvalidUsage").
const chunkHeaderScanLimit = 64

// parseChunkHeader expects buf to start with the CRLF that terminates the
// previous chunk (or, for the first chunk, the CRLF retained by the header
// parser — see requestHeader's "one CRLF stays in buffer" comment),
// followed by "<hex-size>[;ext]\r\n". It returns the decoded size and the
// number of leading bytes (through that second CRLF) to discard. needMore
// is true when buf doesn't yet contain a full header.
func parseChunkHeader(buf []byte) (size int64, headerLen int, needMore bool, err error) {
	pos := bytes.Index(buf[min(2, len(buf)):], []byte("\r\n"))
	if pos == -1 {
		if len(buf) > chunkHeaderScanLimit {
			return 0, 0, false, httperr.InvalidUsage("Bad chunked encoding")
		}
		return 0, 0, true, nil
	}
	pos += min(2, len(buf))

	sizeField := buf[2:pos]
	if i := bytes.IndexByte(sizeField, ';'); i >= 0 {
		sizeField = sizeField[:i]
	}
	n, convErr := strconv.ParseInt(string(bytes.TrimSpace(sizeField)), 16, 64)
	if convErr != nil || n < 0 {
		return 0, 0, false, httperr.InvalidUsage("Bad chunked encoding")
	}
	return n, pos + 2, false, nil
}

// writeChunk appends one chunked-encoding chunk (size line, data, trailing
// CRLF) to dst. Passing an empty data writes the zero-length terminal
// chunk that ends the body.
func writeChunk(dst []byte, data []byte) []byte {
	dst = append(dst, strconv.FormatInt(int64(len(data)), 16)...)
	dst = append(dst, '\r', '\n')
	dst = append(dst, data...)
	dst = append(dst, '\r', '\n')
	return dst
}
