package staticfileserver

import (
	"net/http"
	"strings"
	"time"
)

// evaluateConditional checks If-None-Match and If-Modified-Since against the
// current validators and short-circuits with 304 Not Modified on a match.
// If-None-Match, when present, is authoritative: If-Modified-Since is then
// ignored entirely, whatever its value. This runs after range negotiation,
// so a conditional match suppresses an otherwise-ready 206.
func (fs *FileServer) evaluateConditional(req *http.Request, st *serveState) *terminal {
	if !conditionalMatches(req, st.etag, st.info.ModTime()) {
		return nil
	}
	t := terminalStatus(http.StatusNotModified, "")
	if st.etag != "" {
		t.withHeader("ETag", st.etag)
	}
	t.withHeader("Last-Modified", formatHTTPTime(st.info.ModTime()))
	return t
}

// conditionalMatches reports whether the request's conditional headers match
// the current validators.
func conditionalMatches(req *http.Request, etag string, modTime time.Time) bool {
	if ifNoneMatch := req.Header.Get("If-None-Match"); ifNoneMatch != "" {
		return etagListMatches(ifNoneMatch, etag)
	}

	ifModifiedSince := req.Header.Get("If-Modified-Since")
	if ifModifiedSince == "" {
		return false
	}
	since, err := http.ParseTime(ifModifiedSince)
	if err != nil {
		// An unparsable date is treated as "no match", not an error.
		return false
	}
	// Last-Modified has whole-second precision; truncate both sides so a
	// client echoing our own header always matches.
	return !modTime.Truncate(time.Second).After(since.Truncate(time.Second))
}

// etagListMatches checks a comma-separated If-None-Match list against the
// current ETag. "*" matches any existing representation. Comparison is weak:
// W/ prefixes on either side are ignored and opaque tags are compared.
func etagListMatches(headerValue, etag string) bool {
	for _, candidate := range strings.Split(headerValue, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if etag == "" {
			continue
		}
		if opaqueTag(candidate) == opaqueTag(etag) {
			return true
		}
	}
	return false
}

func opaqueTag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}
