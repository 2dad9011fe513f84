package staticfileserver

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"example.com/staticserve/internal/logger"
)

// streamChunkSize is the read size used by the streaming body strategy.
const streamChunkSize = 64 * 1024

// protectedHeaders may not be overridden by configured static headers: they
// are implied by the chosen status and body and overriding them would
// corrupt the response. Content-Type and Cache-Control deliberately stay
// overridable.
var protectedHeaders = map[string]bool{
	"Content-Length":   true,
	"Content-Range":    true,
	"Content-Encoding": true,
	"Etag":             true,
	"Last-Modified":    true,
	"Accept-Ranges":    true,
	"Allow":            true,
}

// writeResponse assembles the final status, header set, and body from the
// pipeline's decisions. The body comes from the serving target, which may be
// a pre-compressed sibling; a pending range is re-checked against that
// file's size so Content-Range always describes the bytes actually sent.
func (fs *FileServer) writeResponse(w http.ResponseWriter, req *http.Request, st *serveState) {
	size := st.serveInfo.Size()

	rng := st.rng
	if rng != nil && st.encoding != "" {
		clamped, ok := rng.clampToSize(size)
		if !ok {
			t := terminalStatus(http.StatusRequestedRangeNotSatisfiable,
				"The requested byte range cannot be satisfied for this resource.")
			t.withHeader("Content-Range", fmt.Sprintf("bytes */%d", size))
			if st.etag != "" {
				t.withHeader("ETag", st.etag)
			}
			fs.writeTerminal(w, req, t)
			return
		}
		rng = &clamped
	}

	status := http.StatusOK
	contentLength := size
	var offset int64
	if rng != nil {
		status = http.StatusPartialContent
		contentLength = rng.length()
		offset = rng.start
	}

	// The file is opened (and, in buffered mode, fully read) before any
	// header is written so that I/O failures can still become a 500.
	var file *os.File
	var buffered []byte
	needBody := req.Method == http.MethodGet && contentLength > 0
	if needBody {
		var err error
		file, err = os.Open(st.servePath)
		if err != nil {
			fs.failBody(w, req, st, err, "open")
			return
		}
		defer file.Close()

		if !*fs.cfg.Streaming {
			buffered = make([]byte, contentLength)
			if _, err := file.ReadAt(buffered, offset); err != nil {
				fs.failBody(w, req, st, err, "read")
				return
			}
		}
	}

	h := w.Header()
	h.Set("Content-Type", st.contentType)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Last-Modified", formatHTTPTime(st.serveInfo.ModTime()))
	if st.etag != "" {
		h.Set("ETag", st.etag)
	}
	if st.hasCacheControl {
		h.Set("Cache-Control", st.cacheControl)
	}
	if st.encoding != "" {
		h.Set("Content-Encoding", st.encoding)
	}
	if rng != nil {
		h.Set("Content-Range", rng.contentRange(size))
	}
	h.Set("Content-Length", strconv.FormatInt(contentLength, 10))
	applyStaticHeaders(h, fs.cfg.Headers)

	w.WriteHeader(status)
	if !needBody {
		return
	}

	if buffered != nil {
		if _, err := w.Write(buffered); err != nil {
			fs.log.Debug("Client stopped reading response body", logger.LogFields{
				"path": st.relPath, "error": err.Error(),
			})
		}
		return
	}
	fs.streamBody(w, file, offset, contentLength, st.relPath)
}

// streamBody copies length bytes starting at offset to the client in fixed
// chunks. Each read is triggered by the previous write having been accepted,
// so the file is never read ahead of the consumer. The caller holds the
// deferred close; the handle is released on completion, read error, and
// client cancellation alike.
func (fs *FileServer) streamBody(w http.ResponseWriter, file *os.File, offset, length int64, logPath string) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		// Headers are already out; nothing left but to drop the stream.
		fs.log.Error("Failed to seek to range start", logger.LogFields{
			"path": logPath, "offset": offset, "error": err.Error(),
		})
		return
	}

	buf := make([]byte, streamChunkSize)
	remaining := length
	for remaining > 0 {
		chunk := int64(streamChunkSize)
		if remaining < chunk {
			chunk = remaining
		}
		n, readErr := file.Read(buf[:chunk])
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				fs.log.Debug("Client stopped reading response body", logger.LogFields{
					"path": logPath, "error": writeErr.Error(),
				})
				return
			}
			remaining -= int64(n)
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			fs.log.Error("Read error while streaming file", logger.LogFields{
				"path": logPath, "error": readErr.Error(),
			})
			return
		}
	}
}

// failBody reports a body I/O failure that happened before any header was
// written. A file that disappeared between stat and open is reported as
// missing; everything else is an internal error. Paths never reach the
// response body.
func (fs *FileServer) failBody(w http.ResponseWriter, req *http.Request, st *serveState, err error, op string) {
	if os.IsNotExist(err) {
		fs.writeTerminal(w, req, terminalStatus(http.StatusNotFound, "File not found."))
		return
	}
	fs.log.Error("File I/O failure while preparing response", logger.LogFields{
		"path": st.servePath, "op": op, "error": err.Error(),
	})
	fs.writeTerminal(w, req, terminalStatus(http.StatusInternalServerError, "Error reading file."))
}

// applyStaticHeaders merges caller-configured headers last, so they win over
// computed Content-Type and Cache-Control but never over headers the chosen
// status depends on.
func applyStaticHeaders(h http.Header, static map[string]string) {
	for name, value := range static {
		if protectedHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		h.Set(name, value)
	}
}
