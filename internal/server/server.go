// Package server exposes the documentation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dbscribe/dbscribe/internal/config"
	"github.com/dbscribe/dbscribe/internal/docs"
	"github.com/dbscribe/dbscribe/internal/metrics"
	"github.com/dbscribe/dbscribe/internal/mssql"
)

// ConnectFunc builds a documenter for a database connection. The returned
// close function releases the connection when the server reconnects or
// shuts down.
type ConnectFunc func(ctx context.Context, dbCfg mssql.Config) (*docs.Documenter, func() error, error)

// Server holds the HTTP API state. A server starts disconnected; POST
// /api/connect establishes the database session all other endpoints use.
type Server struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Collector
	connect ConnectFunc

	mu      sync.Mutex
	doc     *docs.Documenter
	dbName  string
	closeDB func() error
}

// New creates a server. The connect function is injectable so tests can
// substitute fake documenters.
func New(cfg config.Config, log *slog.Logger, collector *metrics.Collector, connect ConnectFunc) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, log: log, metrics: collector, connect: connect}
}

// Close releases the active database connection, if any.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeDB == nil {
		return nil
	}
	err := s.closeDB()
	s.doc, s.dbName, s.closeDB = nil, "", nil
	return err
}

// Handler returns the API routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/connect", s.handleConnect)
	mux.HandleFunc("GET /api/saved-connection", s.handleSavedConnection)
	mux.HandleFunc("POST /api/batch", s.handleBatch)
	mux.HandleFunc("GET /api/batch/progress", s.handleProgress)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/related/{schema}/{name}", s.handleRelated)
	mux.HandleFunc("GET /api/summary/{schema}/{name}/{type}", s.handleSummary)
	mux.HandleFunc("GET /api/vector-store/status", s.handleVectorStatus)
	mux.HandleFunc("POST /api/vector-store/clear", s.handleVectorClear)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	return loggingMiddleware(s.log, mux)
}

func (s *Server) documenter() (*docs.Documenter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, s.doc != nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	doc, dbName := s.doc, s.dbName
	s.mu.Unlock()

	status := map[string]any{"connected": doc != nil}
	if doc != nil {
		status["database"] = dbName
		status["batch_running"] = doc.Running()
	}
	writeJSON(w, http.StatusOK, status)
}

// connectRequest is the POST /api/connect payload.
type connectRequest struct {
	Server   string `json:"server"`
	Database string `json:"database"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Trusted  bool   `json:"trusted_connection,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Server == "" || req.Database == "" {
		writeError(w, http.StatusBadRequest, "server and database are required")
		return
	}

	dbCfg := mssql.Config{
		Server:   req.Server,
		Database: req.Database,
		User:     req.User,
		Password: req.Password,
		Trusted:  req.Trusted,
	}
	doc, closeDB, err := s.connect(r.Context(), dbCfg)
	if err != nil {
		s.log.Error("connect failed", "server", req.Server, "database", req.Database, "error", err)
		writeJSON(w, http.StatusBadGateway, docs.ConnectionStatus{Error: err.Error()})
		return
	}

	status := doc.TestConnection(r.Context())
	if !status.Connected {
		_ = closeDB()
		writeJSON(w, http.StatusBadGateway, status)
		return
	}

	s.mu.Lock()
	if s.closeDB != nil {
		_ = s.closeDB()
	}
	s.doc, s.dbName, s.closeDB = doc, req.Database, closeDB
	s.mu.Unlock()

	if err := saveConnection(s.cfg.DataDir, dbCfg); err != nil {
		s.log.Warn("could not persist connection settings", "error", err)
	}
	s.log.Info("connected to database", "server", req.Server, "database", req.Database)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSavedConnection(w http.ResponseWriter, r *http.Request) {
	saved, ok, err := loadConnection(s.cfg.DataDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no saved connection")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documenter()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not connected to a database")
		return
	}

	var opts docs.BatchOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := doc.StartBatch(opts); err != nil {
		if errors.Is(err, docs.ErrBatchInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, doc.GetProgress())
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documenter()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not connected to a database")
		return
	}
	writeJSON(w, http.StatusOK, doc.GetProgress())
}

// searchRequest is the POST /api/search payload.
type searchRequest struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit,omitempty"`
	UseIntent bool   `json:"use_intent,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documenter()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not connected to a database")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	response := map[string]any{}
	if req.UseIntent {
		intent, results, err := doc.SearchWithIntent(r.Context(), req.Query, req.Limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		response["intent"] = intent
		response["results"] = results
	} else {
		results, err := doc.SearchDocumentation(r.Context(), req.Query, req.Limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		response["results"] = results
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documenter()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not connected to a database")
		return
	}

	schema, name := r.PathValue("schema"), r.PathValue("name")
	results, err := doc.RelatedObjects(r.Context(), schema, name, 5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documenter()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not connected to a database")
		return
	}

	schema, name, objType := r.PathValue("schema"), r.PathValue("name"), r.PathValue("type")
	if _, ok := docs.ParseObjectType(objType); !ok {
		writeError(w, http.StatusBadRequest, "unsupported object type: "+objType)
		return
	}

	summary, err := doc.GenerateDocumentationSummary(r.Context(), schema, name, objType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleVectorStatus(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documenter()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not connected to a database")
		return
	}
	writeJSON(w, http.StatusOK, doc.Stats(r.Context()))
}

func (s *Server) handleVectorClear(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.documenter()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not connected to a database")
		return
	}
	if err := doc.ClearDocumentation(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, "metrics collection disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
