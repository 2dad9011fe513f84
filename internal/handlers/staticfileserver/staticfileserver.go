package staticfileserver

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"example.com/staticserve/internal/config"
	"example.com/staticserve/internal/logger"
	"example.com/staticserve/internal/server"
)

// FileServer serves files from a configured document root as an
// http.Handler. A request flows through a fixed pipeline: path resolution,
// metadata/MIME resolution, validator generation, range negotiation,
// conditional evaluation, encoding negotiation, response assembly. Each
// stage either updates the per-request state or ends the request with a
// terminal response.
type FileServer struct {
	cfg          *config.FileServerConfig
	log          *logger.Logger
	mimeResolver *MimeTypeResolver
}

// New creates a FileServer from a validated configuration.
func New(cfg *config.FileServerConfig, lg *logger.Logger) (*FileServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("staticfileserver: configuration cannot be nil")
	}
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	if !filepath.IsAbs(cfg.DocumentRoot) {
		return nil, fmt.Errorf("staticfileserver: document root %q must be absolute", cfg.DocumentRoot)
	}
	return &FileServer{
		cfg:          cfg,
		log:          lg,
		mimeResolver: NewMimeTypeResolver(cfg.MimeTypes),
	}, nil
}

// serveState carries the decisions of one request through the pipeline. It
// is created when handling starts and discarded when the response is
// written; nothing in it is shared across requests.
type serveState struct {
	urlPath  string // decoded request path, for listings and links
	relPath  string // root-relative resolved path, "/"-separated, leading "/"
	filePath string // absolute filesystem path of the original target
	info     os.FileInfo

	contentType     string
	cacheControl    string
	hasCacheControl bool

	etag string // quoted, possibly W/-prefixed; empty when disabled

	rng *byteRange // nil when the full resource is requested

	// Serving target. Starts as the original file; encoding negotiation may
	// swap in a pre-compressed sibling with its own size and mtime.
	servePath string
	serveInfo os.FileInfo
	encoding  string // negotiated Content-Encoding token, or ""
}

// terminal is an early pipeline exit carrying a complete response decision.
// Short-circuits (304, 404, 416, ...) are expected outcomes, so they travel
// as values rather than errors.
type terminal struct {
	status  int
	detail  string            // client-safe detail for the error page
	headers map[string]string // extra response headers (Content-Range, ETag, ...)
}

func terminalStatus(status int, detail string) *terminal {
	return &terminal{status: status, detail: detail}
}

func (t *terminal) withHeader(name, value string) *terminal {
	if t.headers == nil {
		t.headers = make(map[string]string)
	}
	t.headers[name] = value
	return t
}

// ServeHTTP implements http.Handler. Only GET and HEAD are accepted.
func (fs *FileServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
	default:
		fs.log.Info("Method not allowed", logger.LogFields{
			"method": req.Method, "path": req.URL.Path,
		})
		fs.writeTerminal(w, req, terminalStatus(http.StatusMethodNotAllowed,
			"Method not allowed for this resource.").withHeader("Allow", "GET, HEAD"))
		return
	}

	st := &serveState{}

	if t := fs.resolvePath(req.URL.EscapedPath(), st); t != nil {
		fs.writeTerminal(w, req, t)
		return
	}
	if t := fs.resolveMetadata(st); t != nil {
		fs.writeTerminal(w, req, t)
		return
	}
	if st.info.IsDir() {
		// No index file matched; render a listing when enabled, otherwise
		// the directory is reported as missing.
		fs.serveListing(w, req, st)
		return
	}

	if fs.cfg.EtagPolicy.Enabled {
		st.etag = generateValidator(st.info.Size(), st.info.ModTime(), st.filePath, fs.cfg.EtagPolicy.Weak)
	}

	if t := fs.negotiateRange(req, st); t != nil {
		fs.writeTerminal(w, req, t)
		return
	}
	if t := fs.evaluateConditional(req, st); t != nil {
		fs.writeTerminal(w, req, t)
		return
	}
	fs.negotiateEncoding(req, st)

	fs.writeResponse(w, req, st)
}

// resolveMetadata stats the target, applies the symlink gate, probes index
// files for directories, and derives Content-Type and Cache-Control. For a
// directory with no usable index file, st.info remains a directory and the
// caller decides between a listing and 404.
func (fs *FileServer) resolveMetadata(st *serveState) *terminal {
	info, err := os.Lstat(st.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return terminalStatus(http.StatusNotFound, "File not found.")
		}
		fs.log.Error("Failed to stat resolved target", logger.LogFields{
			"path": st.filePath, "error": err.Error(),
		})
		return terminalStatus(http.StatusInternalServerError, "Error accessing file.")
	}
	// Symlinks, valid or broken, are reported as missing so the response
	// reveals nothing about why access was denied.
	if info.Mode()&os.ModeSymlink != 0 {
		fs.log.Warn("Refusing to follow symbolic link", logger.LogFields{"path": st.filePath})
		return terminalStatus(http.StatusNotFound, "File not found.")
	}

	if info.IsDir() {
		for _, indexName := range fs.cfg.IndexFiles {
			indexPath := filepath.Join(st.filePath, indexName)
			indexInfo, err := os.Lstat(indexPath)
			if err != nil || !indexInfo.Mode().IsRegular() {
				continue
			}
			st.filePath = indexPath
			st.relPath = st.relPath + "/" + indexName
			info = indexInfo
			break
		}
	}
	st.info = info
	st.servePath = st.filePath
	st.serveInfo = info

	if info.IsDir() {
		if !*fs.cfg.ServeDirectoryListing {
			return terminalStatus(http.StatusNotFound, "File not found.")
		}
		return nil
	}

	// Content type always reflects the original file name, even when a
	// compressed sibling ends up being streamed.
	st.contentType = fs.mimeResolver.TypeForPath(st.filePath)
	if directive, ok := fs.cfg.CacheControlPolicy.Directive(st.relPath); ok {
		st.cacheControl = directive
		st.hasCacheControl = true
	}
	return nil
}

// writeTerminal writes a short-circuit response. 304 carries validators and
// no body; everything else goes through the negotiated error page writer.
func (fs *FileServer) writeTerminal(w http.ResponseWriter, req *http.Request, t *terminal) {
	h := w.Header()
	for name, value := range t.headers {
		h.Set(name, value)
	}
	if t.status == http.StatusNotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	server.WriteError(w, req, t.status, t.detail, fs.log)
}

// formatHTTPTime renders a timestamp for Last-Modified headers.
func formatHTTPTime(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
