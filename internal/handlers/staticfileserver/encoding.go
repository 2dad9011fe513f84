package staticfileserver

import (
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"example.com/staticserve/internal/logger"
)

// encodingSiblingExt maps a negotiable Content-Encoding token to the file
// extension of its pre-built sibling. deflate and gzip share the .gz sibling
// by convention.
var encodingSiblingExt = map[string]string{
	"br":      ".br",
	"gzip":    ".gz",
	"deflate": ".gz",
}

// acceptedEncoding is one parsed Accept-Encoding entry.
type acceptedEncoding struct {
	token string
	q     float64
	order int
}

// parseAcceptEncoding parses an Accept-Encoding header into encoding tokens
// ordered by descending weight, ties broken by position in the header.
// Entries with q <= 0 are rejections and dropped.
func parseAcceptEncoding(headerValue string) []acceptedEncoding {
	var accepted []acceptedEncoding
	for i, part := range strings.Split(headerValue, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		token := part
		q := 1.0
		if idx := strings.Index(part, ";"); idx != -1 {
			token = strings.TrimSpace(part[:idx])
			for _, param := range strings.Split(part[idx+1:], ";") {
				param = strings.TrimSpace(param)
				if strings.HasPrefix(param, "q=") {
					parsed, err := strconv.ParseFloat(param[2:], 64)
					if err != nil {
						q = 0
					} else {
						q = parsed
					}
					break
				}
			}
		}
		if q <= 0 {
			continue
		}
		accepted = append(accepted, acceptedEncoding{
			token: strings.ToLower(token),
			q:     q,
			order: i,
		})
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].q != accepted[j].q {
			return accepted[i].q > accepted[j].q
		}
		return accepted[i].order < accepted[j].order
	})
	return accepted
}

// negotiateEncoding matches the client's encoding preferences against
// pre-built compressed siblings of the original file. The first acceptable
// encoding whose sibling exists wins: the sibling becomes the serving target
// with its own size and mtime, while Content-Type, Cache-Control, and the
// ETag keep describing the original resource. With no header, no sibling, or
// negotiation disabled, the original file is served unencoded.
func (fs *FileServer) negotiateEncoding(req *http.Request, st *serveState) {
	if !fs.cfg.EncodingPolicy.Enabled || !*fs.cfg.Precompressed {
		return
	}
	headerValue := req.Header.Get("Accept-Encoding")
	if headerValue == "" {
		return
	}

	for _, enc := range parseAcceptEncoding(headerValue) {
		if !fs.cfg.EncodingPolicy.Allows(enc.token) {
			continue
		}
		siblingPath := st.filePath + encodingSiblingExt[enc.token]
		siblingInfo, err := os.Lstat(siblingPath)
		if err != nil || !siblingInfo.Mode().IsRegular() {
			continue
		}
		st.encoding = enc.token
		st.servePath = siblingPath
		st.serveInfo = siblingInfo
		fs.log.Debug("Serving pre-compressed sibling", logger.LogFields{
			"path": st.relPath, "encoding": enc.token,
		})
		return
	}
}
