package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/babylon-scanner/internal/errors"
)

// Query limits for the chain endpoints
const (
	defaultBlockLimit = 10
	maxBlockLimit     = 50
	defaultTxLimit    = 20
	maxTxLimit        = 100
)

// handleNetworkStats handles GET /api/blockchain/stats
func (s *Server) handleNetworkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.explorer.GetNetworkStats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, stats, stats.Degraded)
}

// handleRecentBlocks handles GET /api/blockchain/blocks?limit=
func (s *Server) handleRecentBlocks(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultBlockLimit, maxBlockLimit)

	window, err := s.explorer.GetRecentBlocks(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, window, window.Partial)
}

// handleRecentTransactions handles GET /api/blockchain/transactions?limit=
func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultTxLimit, maxTxLimit)

	txs, err := s.explorer.GetRecentTransactions(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, txs, txs.Partial)
}

// handleGetTransaction handles GET /api/transactions/{hash}
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimSpace(mux.Vars(r)["hash"])
	if hash == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("hash", "is required"))
		return
	}

	tx, err := s.explorer.GetTransaction(r.Context(), hash)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, tx, false)
}

// handleNetworkOverview handles GET /api/analytics/overview
func (s *Server) handleNetworkOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.explorer.GetNetworkOverview(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, overview, overview.Degraded)
}

// handleFinalityProviders handles GET /api/babylon/finality-providers
func (s *Server) handleFinalityProviders(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.explorer.GetFinalityProviders(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, ranking, false)
}

// handleStaking handles GET /api/babylon/staking?status=
func (s *Server) handleStaking(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))

	overview, err := s.explorer.GetBTCDelegations(r.Context(), status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, overview, overview.Degraded)
}
