package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"example.com/staticserve/internal/config"
	"example.com/staticserve/internal/handlers/staticfileserver"
	"example.com/staticserve/internal/logger"
	"example.com/staticserve/internal/server"
)

func main() {
	var configFilePath string
	flag.StringVar(&configFilePath, "config", "", "Path to the configuration file (JSON or TOML)")
	flag.Parse()

	if configFilePath == "" {
		fmt.Fprintln(os.Stderr, "Error: Configuration file path must be provided via -config flag.")
		flag.Usage()
		os.Exit(1)
	}

	absConfigPath, err := filepath.Abs(configFilePath)
	if err != nil {
		log.Fatalf("Error getting absolute path for config file %s: %v", configFilePath, err)
	}

	cfg, err := config.LoadConfig(absConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", absConfigPath, err)
	}

	appLogger, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	fileServer, err := staticfileserver.New(cfg.FileServer, appLogger)
	if err != nil {
		appLogger.Error("Failed to create file server", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}

	mux := chi.NewRouter()
	mux.Use(accessLog(appLogger))
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/*", fileServer)

	srv, err := server.NewServer(cfg.Server, appLogger, mux)
	if err != nil {
		appLogger.Error("Failed to initialize server", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}

	appLogger.Info("Starting server", logger.LogFields{
		"address":       *cfg.Server.Address,
		"document_root": cfg.FileServer.DocumentRoot,
	})
	if err := srv.Start(); err != nil {
		appLogger.Error("Server exited with an error", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}
}

// accessLog emits one access record per request once the response has been
// written.
func accessLog(lg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			lg.Access(r.Method, r.URL.RequestURI(), ww.Status(), int64(ww.BytesWritten()), time.Since(start))
		})
	}
}
