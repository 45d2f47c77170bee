// Package web serves the published artifacts to the dashboard: the
// catalogue, the per-sensor series files and the Prometheus metrics.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/bcnfacilities/sentiflow/internal/series"
	"github.com/bcnfacilities/sentiflow/internal/storage"
)

// ServerConfig holds the HTTP surface options.
type ServerConfig struct {
	Host      string
	Port      int
	CacheSize int // entries in the artifact read cache
}

// Server exposes the store over HTTP.
type Server struct {
	store  *storage.Store
	cache  *lru.Cache
	logger *logrus.Logger
}

// NewServer builds a Server with an LRU cache for artifact reads. The
// cache is keyed by file path and invalidated by modification time, so
// a fresh run's artifacts are always served.
func NewServer(store *storage.Store, cacheSize int, logger *logrus.Logger) (*Server, error) {
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Server{store: store, cache: cache, logger: logger}, nil
}

// Router wires the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.loggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/catalogue", s.handleCatalogue).Methods(http.MethodGet)
	r.HandleFunc("/api/series/{sensorID}", s.handleSeries).Methods(http.MethodGet)

	return r
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe(cfg ServerConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.logger.WithField("addr", addr).Info("Starting HTTP server")
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleCatalogue(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, s.store.IndexFile())
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["sensorID"]
	name := series.ArtifactName(sensorID)
	// The artifact name is derived from the id, never from the path, so
	// traversal through the id segment cannot escape the data dir.
	if filepath.Base(name) != name {
		http.Error(w, "invalid sensor id", http.StatusBadRequest)
		return
	}
	s.serveArtifact(w, filepath.Join(s.store.DataDir(), name))
}

type cachedArtifact struct {
	modTime time.Time
	data    []byte
}

// serveArtifact writes a JSON artifact, serving from the LRU cache when
// the file on disk has not changed since it was cached.
func (s *Server) serveArtifact(w http.ResponseWriter, path string) {
	info, err := os.Stat(path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if v, ok := s.cache.Get(path); ok {
		if entry := v.(cachedArtifact); entry.modTime.Equal(info.ModTime()) {
			writeJSONBytes(w, entry.data)
			return
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "failed to read artifact", http.StatusInternalServerError)
		return
	}

	s.cache.Add(path, cachedArtifact{modTime: info.ModTime(), data: data})
	writeJSONBytes(w, data)
}

func writeJSONBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}
