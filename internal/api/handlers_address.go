package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetAddress handles GET /api/addresses/{address}
func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	info, err := s.explorer.GetAddressInfo(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, info, info.Degraded)
}

// handleAddressTransactions handles GET /api/addresses/{address}/transactions?limit=
func (s *Server) handleAddressTransactions(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	limit := parseLimit(r, defaultTxLimit, maxTxLimit)

	history, err := s.explorer.GetAddressTransactions(r.Context(), address, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, history, history.Degraded)
}

// handleAddressLabels handles GET /api/addresses/{address}/labels
func (s *Server) handleAddressLabels(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	labels, err := s.labeling.GetAddressLabels(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, labels, false)
}

// WatchRequest is the POST /api/watchlist body
type WatchRequest struct {
	Address  string `json:"address"`
	Nickname string `json:"nickname,omitempty"`
}

// handleListWatched handles GET /api/watchlist
func (s *Server) handleListWatched(w http.ResponseWriter, r *http.Request) {
	list, err := s.watchlist.ListWatchedAddresses(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, list, list.Degraded)
}

// handleAddWatched handles POST /api/watchlist
func (s *Server) handleAddWatched(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	watched, err := s.watchlist.AddWatchedAddress(r.Context(), req.Address, req.Nickname)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, watched, false)
}

// handleRemoveWatched handles DELETE /api/watchlist/{id}
func (s *Server) handleRemoveWatched(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if err := s.watchlist.RemoveWatchedAddress(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Envelope{Success: true, Message: "Address removed from watchlist"})
}
