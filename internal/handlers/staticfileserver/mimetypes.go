package staticfileserver

import (
	"mime"
	"path/filepath"
	"strings"
)

// defaultMimeTypes maps file extensions to MIME types for extensions the
// platform mime database may miss. Process-wide immutable static data; safe
// to share across concurrent requests since it is never mutated.
var defaultMimeTypes = map[string]string{
	".aac":    "audio/aac",
	".apng":   "image/apng",
	".avif":   "image/avif",
	".avi":    "video/x-msvideo",
	".bin":    "application/octet-stream",
	".bmp":    "image/bmp",
	".br":     "application/octet-stream",
	".css":    "text/css; charset=utf-8",
	".csv":    "text/csv; charset=utf-8",
	".eot":    "application/vnd.ms-fontobject",
	".gz":     "application/gzip",
	".gif":    "image/gif",
	".htm":    "text/html; charset=utf-8",
	".html":   "text/html; charset=utf-8",
	".ico":    "image/vnd.microsoft.icon",
	".jpeg":   "image/jpeg",
	".jpg":    "image/jpeg",
	".js":     "text/javascript; charset=utf-8",
	".json":   "application/json; charset=utf-8",
	".jsonld": "application/ld+json; charset=utf-8",
	".md":     "text/markdown; charset=utf-8",
	".mjs":    "text/javascript; charset=utf-8",
	".mp3":    "audio/mpeg",
	".mp4":    "video/mp4",
	".oga":    "audio/ogg",
	".ogv":    "video/ogg",
	".opus":   "audio/opus",
	".otf":    "font/otf",
	".png":    "image/png",
	".pdf":    "application/pdf",
	".svg":    "image/svg+xml",
	".tar":    "application/x-tar",
	".tif":    "image/tiff",
	".tiff":   "image/tiff",
	".ttf":    "font/ttf",
	".txt":    "text/plain; charset=utf-8",
	".wasm":   "application/wasm",
	".wav":    "audio/wav",
	".weba":   "audio/webm",
	".webm":   "video/webm",
	".webp":   "image/webp",
	".woff":   "font/woff",
	".woff2":  "font/woff2",
	".xhtml":  "application/xhtml+xml; charset=utf-8",
	".xml":    "application/xml; charset=utf-8",
	".zip":    "application/zip",
}

const defaultOctetStreamMimeType = "application/octet-stream"

// MimeTypeResolver determines Content-Type values from file names. Custom
// mappings from configuration take precedence over the built-in table and
// the platform database.
type MimeTypeResolver struct {
	custom map[string]string
}

// NewMimeTypeResolver creates a resolver with the given extension overrides
// (keys include the leading dot; they are lowercased here).
func NewMimeTypeResolver(custom map[string]string) *MimeTypeResolver {
	r := &MimeTypeResolver{custom: make(map[string]string, len(custom))}
	for ext, mimeType := range custom {
		r.custom[strings.ToLower(ext)] = mimeType
	}
	return r
}

// TypeForPath determines the MIME type for a file path from its final
// extension. Order of precedence: custom mappings, the built-in table, the
// platform database, then application/octet-stream.
func (r *MimeTypeResolver) TypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return defaultOctetStreamMimeType
	}
	if mimeType, ok := r.custom[ext]; ok {
		return mimeType
	}
	if mimeType, ok := defaultMimeTypes[ext]; ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return defaultOctetStreamMimeType
}
