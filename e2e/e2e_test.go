package e2e

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/staticserve/internal/config"
	"example.com/staticserve/internal/handlers/staticfileserver"
	"example.com/staticserve/internal/logger"
)

const readmeContent = "This is a plain text file for testing purposes.\n"

// startServer loads a TOML configuration file for a populated document root
// and serves it over a real listener.
func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"readme.txt": readmeContent,
		"index.html": "<html><body>welcome</body></html>",
		"app.js":     "console.log('uncompressed');\n",
		"app.js.br":  "br-bytes",
		".env":       "TOKEN=x",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	configContent := `
[server]
address = "127.0.0.1:0"

[file_server]
document_root = "` + root + `"
dotfiles = "deny"

[file_server.headers]
X-Test-Header = "present"

[logging]
log_level = "ERROR"

[logging.error_log]
target = "stderr"

[logging.access_log]
enabled = false
`
	configPath := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)

	fileServer, err := staticfileserver.New(cfg.FileServer, logger.NewDiscardLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(fileServer)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	// The default transport silently decompresses and injects its own
	// Accept-Encoding; a bare transport keeps the wire behavior observable.
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestEndToEnd_PlainFile(t *testing.T) {
	srv := startServer(t)
	resp, body := get(t, srv.URL+"/readme.txt", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, readmeContent, body)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "present", resp.Header.Get("X-Test-Header"))
	assert.NotEmpty(t, resp.Header.Get("ETag"))
}

func TestEndToEnd_IndexFile(t *testing.T) {
	srv := startServer(t)
	resp, body := get(t, srv.URL+"/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "welcome")
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestEndToEnd_RangeRequest(t *testing.T) {
	srv := startServer(t)
	resp, body := get(t, srv.URL+"/readme.txt", map[string]string{"Range": "bytes=0-10"})
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 0-10/48", resp.Header.Get("Content-Range"))
	assert.Equal(t, readmeContent[:11], body)
}

func TestEndToEnd_ConditionalRoundTrip(t *testing.T) {
	srv := startServer(t)
	first, _ := get(t, srv.URL+"/readme.txt", nil)
	etag := first.Header.Get("ETag")
	require.NotEmpty(t, etag)

	resp, body := get(t, srv.URL+"/readme.txt", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Empty(t, body)
}

func TestEndToEnd_PrecompressedSibling(t *testing.T) {
	srv := startServer(t)
	resp, body := get(t, srv.URL+"/app.js", map[string]string{"Accept-Encoding": "br"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "br", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, "br-bytes", body)
	assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestEndToEnd_DeniedDotfile(t *testing.T) {
	srv := startServer(t)
	resp, body := get(t, srv.URL+"/.env", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, body, "TOKEN")
}

func TestEndToEnd_JSONErrorNegotiation(t *testing.T) {
	srv := startServer(t)
	resp, body := get(t, srv.URL+"/missing.txt", map[string]string{"Accept": "application/json"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `"status_code":404`)
}
