package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"hashfeed/internal/metrics"
	"hashfeed/internal/threat"
)

// Server exposes the hash index over HTTP and gRPC.
type Server struct {
	index   *threat.Index
	router  *mux.Router
	grpcSrv *grpc.Server
}

func New(index *threat.Index) *Server {
	s := &Server{index: index, router: mux.NewRouter(), grpcSrv: grpc.NewServer()}
	s.routes()
	RegisterHashLookupServer(s.grpcSrv, &lookupService{index: index})
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/v1/hashes/{sha256}", s.handleLookup).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

func (s *Server) Router() http.Handler { return s.router }

type statsResponse struct {
	Records  int        `json:"records"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["sha256"]
	rec, ok := s.index.Lookup(hash)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: threat.ErrNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Records: s.index.Len()}
	if at := s.index.LoadedAt(); !at.IsZero() {
		resp.LoadedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

// ServeGRPC serves the lookup service on ln until Stop.
func (s *Server) ServeGRPC(ln net.Listener) error {
	return s.grpcSrv.Serve(ln)
}

// StartGRPC listens on addr and serves the lookup service.
func (s *Server) StartGRPC(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeGRPC(ln)
}

// Stop halts the gRPC server.
func (s *Server) Stop() {
	s.grpcSrv.GracefulStop()
}
