// Package api exposes the aggregation service to the dashboard UI as a
// small JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"snifferweb3/sniffer/aggregator"
	"snifferweb3/sniffer/common"
)

// ApiError is the standard JSON error envelope.
type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeInvalidAddress = "INVALID_ADDRESS"
	ErrCodeUpstreamFailed = "UPSTREAM_FAILED"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// Server routes dashboard requests to the aggregation service.
type Server struct {
	router *mux.Router
	svc    *aggregator.Service
	logger *slog.Logger
}

func NewServer(svc *aggregator.Service, logger *slog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		svc:    svc,
		logger: logger.With("component", "api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/wallets/{address}", s.handleGetWallet()).Methods("GET")
	s.router.HandleFunc("/api/v1/wallets/{address}/profiles", s.handleGetProfiles()).Methods("GET")
	s.router.HandleFunc("/api/v1/tokens", s.handleGetTokens()).Methods("GET")
	s.router.HandleFunc("/api/v1/health", s.handleHealth()).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSONError(w http.ResponseWriter, statusCode int, errCode string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]ApiError{"error": {Code: errCode, Message: message}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func forceRefresh(r *http.Request) bool {
	return r.URL.Query().Get("refresh") == "1"
}

// writeAggregateError maps service errors onto HTTP responses. A client
// that went away gets nothing; a total upstream wipeout is a 502.
func (s *Server) writeAggregateError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	var aggErr *common.AggregateError
	if errors.As(err, &aggErr) {
		writeJSONError(w, http.StatusBadGateway, ErrCodeUpstreamFailed,
			"All upstream data sources failed. Try again shortly.")
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error.")
}

func (s *Server) handleGetWallet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := mux.Vars(r)["address"]
		if !ethcommon.IsHexAddress(address) {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidAddress,
				"Expected a 0x-prefixed 20-byte hex address.")
			return
		}
		aggregate, err := s.svc.WalletProfile(r.Context(), address, forceRefresh(r))
		if err != nil {
			s.writeAggregateError(w, r, err)
			return
		}
		writeJSON(w, aggregate)
	}
}

func (s *Server) handleGetProfiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := mux.Vars(r)["address"]
		if !ethcommon.IsHexAddress(address) {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidAddress,
				"Expected a 0x-prefixed 20-byte hex address.")
			return
		}
		profiles, err := s.svc.SocialProfiles(r.Context(), address)
		if err != nil {
			s.writeAggregateError(w, r, err)
			return
		}
		writeJSON(w, profiles)
	}
}

func (s *Server) handleGetTokens() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("search")
		records, err := s.svc.TokenSearch(r.Context(), query, forceRefresh(r))
		if err != nil {
			s.writeAggregateError(w, r, err)
			return
		}
		writeJSON(w, records)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}
