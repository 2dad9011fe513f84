package staticfileserver

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"example.com/staticserve/internal/config"
	"example.com/staticserve/internal/logger"
)

// serveListing renders an HTML index of a directory that has no index file.
// Only reached when directory listings are enabled. Dotfile entries are
// hidden unless the dotfile policy allows them.
func (fs *FileServer) serveListing(w http.ResponseWriter, req *http.Request, st *serveState) {
	body, err := fs.renderListing(st.filePath, st.urlPath)
	if err != nil {
		fs.log.Error("Failed to render directory listing", logger.LogFields{
			"path": st.filePath, "error": err.Error(),
		})
		fs.writeTerminal(w, req, terminalStatus(http.StatusInternalServerError,
			"Error generating directory listing."))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	if directive, ok := fs.cfg.CacheControlPolicy.Directive(st.relPath); ok {
		h.Set("Cache-Control", directive)
	}
	applyStaticHeaders(h, fs.cfg.Headers)
	w.WriteHeader(http.StatusOK)

	if req.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		fs.log.Debug("Client stopped reading directory listing", logger.LogFields{
			"path": st.relPath, "error": err.Error(),
		})
	}
}

// renderListing builds the listing page. dirPath is the filesystem
// directory; webPath is the request path used for link targets.
func (fs *FileServer) renderListing(dirPath, webPath string) ([]byte, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("could not read directory: %w", err)
	}

	if fs.cfg.DotfilePolicy != config.DotfilesAllow {
		visible := entries[:0]
		for _, entry := range entries {
			if !strings.HasPrefix(entry.Name(), ".") {
				visible = append(visible, entry)
			}
		}
		entries = visible
	}

	// Directories first, then case-insensitive name order.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	if webPath == "" {
		webPath = "/"
	}
	if !strings.HasSuffix(webPath, "/") {
		webPath += "/"
	}
	escapedWebPath := html.EscapeString(webPath)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<html><head><title>Index of %s</title></head><body>", escapedWebPath))
	sb.WriteString(fmt.Sprintf("<h1>Index of %s</h1><hr><pre>", escapedWebPath))

	if webPath != "/" {
		sb.WriteString("<a href=\"../\">../</a>\n")
	}

	for _, entry := range entries {
		name := entry.Name()
		escapedName := html.EscapeString(name)
		href := escapedWebPath + html.EscapeString(name)

		info, err := entry.Info()
		if err != nil {
			sb.WriteString(fmt.Sprintf("%s\n", escapedName))
			continue
		}

		if entry.IsDir() {
			sb.WriteString(fmt.Sprintf("<a href=\"%s/\">%s/</a>%*s %s\n",
				href, escapedName,
				listingPad(escapedName+"/"), "",
				info.ModTime().Format("02-Jan-2006 15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("<a href=\"%s\">%s</a>%*s %s %10s\n",
				href, escapedName,
				listingPad(escapedName), "",
				info.ModTime().Format("02-Jan-2006 15:04"),
				humanize.Bytes(uint64(info.Size()))))
		}
	}

	sb.WriteString("</pre><hr></body></html>")
	return []byte(sb.String()), nil
}

func listingPad(name string) int {
	pad := 50 - len(name)
	if pad < 1 {
		pad = 1
	}
	return pad
}
