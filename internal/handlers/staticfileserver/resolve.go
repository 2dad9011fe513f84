package staticfileserver

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"example.com/staticserve/internal/config"
	"example.com/staticserve/internal/logger"
)

// resolvePath turns the raw (still percent-encoded) URL path into a
// filesystem target confined to the document root. Escaping the root is a
// security violation and answers 403; dotfiles under a deny/ignore policy
// are reported as missing instead, deliberately indistinguishable from a
// file that does not exist.
func (fs *FileServer) resolvePath(rawPath string, st *serveState) *terminal {
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		fs.log.Warn("Rejecting request with undecodable path", logger.LogFields{
			"path": rawPath, "error": err.Error(),
		})
		return terminalStatus(http.StatusForbidden, "Access denied.")
	}
	st.urlPath = decoded

	trimmed := strings.TrimLeft(decoded, "/")
	target := filepath.Join(fs.cfg.DocumentRoot, trimmed)

	rel, err := filepath.Rel(fs.cfg.DocumentRoot, target)
	if err != nil || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		fs.log.Warn("Rejecting path resolving outside document root", logger.LogFields{
			"path": decoded, "target": target,
		})
		return terminalStatus(http.StatusForbidden, "Access denied.")
	}

	if fs.cfg.DotfilePolicy != config.DotfilesAllow && hasDotSegment(rel) {
		fs.log.Info("Dotfile request suppressed by policy", logger.LogFields{
			"path": decoded, "policy": string(fs.cfg.DotfilePolicy),
		})
		return terminalStatus(http.StatusNotFound, "File not found.")
	}

	st.filePath = target
	if rel == "." {
		st.relPath = "/"
	} else {
		st.relPath = "/" + filepath.ToSlash(rel)
	}
	return nil
}

// hasDotSegment reports whether any segment of the root-relative path starts
// with a dot. The "." produced by filepath.Rel for the root itself does not
// count.
func hasDotSegment(rel string) bool {
	if rel == "." {
		return false
	}
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if len(segment) > 0 && segment[0] == '.' {
			return true
		}
	}
	return false
}
