package staticfileserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"example.com/staticserve/internal/logger"
)

// byteRange is a validated byte span of a resource. Bounds are inclusive and
// satisfy 0 <= start <= end < size, so the span is never empty.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

func (r byteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, size)
}

// errRangeUnsatisfiable covers every malformed or out-of-bounds Range header,
// including the explicitly unsupported multi-range form.
var errRangeUnsatisfiable = errors.New("range not satisfiable")

// negotiateRange parses the Range header against the original resource size.
// An unsatisfiable or malformed range terminates with 416 carrying
// "Content-Range: bytes */<size>" and the current ETag, before conditional
// evaluation gets a say.
func (fs *FileServer) negotiateRange(req *http.Request, st *serveState) *terminal {
	headerValue := req.Header.Get("Range")
	if headerValue == "" {
		return nil
	}

	rng, err := parseRangeHeader(headerValue, st.info.Size())
	if err != nil {
		fs.log.Info("Unsatisfiable range request", logger.LogFields{
			"path": st.relPath, "range": headerValue, "size": st.info.Size(),
		})
		t := terminalStatus(http.StatusRequestedRangeNotSatisfiable,
			"The requested byte range cannot be satisfied for this resource.")
		t.withHeader("Content-Range", fmt.Sprintf("bytes */%d", st.info.Size()))
		if st.etag != "" {
			t.withHeader("ETag", st.etag)
		}
		return t
	}
	st.rng = rng
	return nil
}

// parseRangeHeader parses a single-range bytes specifier:
//
//	bytes=<start>-<end>   closed range, end clamped to size-1
//	bytes=<start>-        open range to end of resource
//	bytes=-<suffix>       final <suffix> bytes; a suffix larger than the
//	                      resource serves the whole resource
//
// Comma-separated multi-ranges are not supported and fail outright. A
// zero-size resource admits no satisfiable range at all.
func parseRangeHeader(value string, size int64) (*byteRange, error) {
	spec, ok := strings.CutPrefix(value, "bytes=")
	if !ok {
		return nil, errRangeUnsatisfiable
	}
	if strings.Contains(spec, ",") {
		return nil, errRangeUnsatisfiable
	}
	spec = strings.TrimSpace(spec)

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, errRangeUnsatisfiable
	}

	if size == 0 {
		return nil, errRangeUnsatisfiable
	}

	if startStr == "" {
		// Suffix form: bytes=-<n>
		suffix, err := parseRangeInt(endStr)
		if err != nil || suffix == 0 {
			return nil, errRangeUnsatisfiable
		}
		start := size - suffix
		if start < 0 {
			start = 0
		}
		return &byteRange{start: start, end: size - 1}, nil
	}

	start, err := parseRangeInt(startStr)
	if err != nil {
		return nil, errRangeUnsatisfiable
	}
	if start >= size {
		return nil, errRangeUnsatisfiable
	}

	end := size - 1
	if endStr != "" {
		end, err = parseRangeInt(endStr)
		if err != nil {
			return nil, errRangeUnsatisfiable
		}
		if start > end {
			return nil, errRangeUnsatisfiable
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return &byteRange{start: start, end: end}, nil
}

// parseRangeInt parses a non-negative integer range bound. Signs, blanks,
// and non-digits are all rejected.
func parseRangeInt(s string) (int64, error) {
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, errRangeUnsatisfiable
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, errRangeUnsatisfiable
	}
	return n, nil
}

// clampToSize re-checks a range against a different resource size (the
// pre-compressed sibling's). Returns false when the range cannot be
// satisfied against the new size.
func (r byteRange) clampToSize(size int64) (byteRange, bool) {
	if size == 0 || r.start >= size {
		return byteRange{}, false
	}
	clamped := r
	if clamped.end > size-1 {
		clamped.end = size - 1
	}
	return clamped, true
}
