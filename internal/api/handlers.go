package api

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sashakarcz/irondhcp/internal/logger"
)

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

// handleClient serves GET /api/client/{ip}: a single lease's current view,
// or 404 if no live lease holds that address.
func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	ipStr := mux.Vars(r)["ip"]
	ip := net.ParseIP(ipStr)
	if ip == nil {
		writeError(w, http.StatusBadRequest, "invalid IP address")
		return
	}

	if cached, ok := s.cache.get(ipStr); ok {
		view := cached.(ClientView)
		view.IsCached = true
		writeJSON(w, http.StatusOK, view)
		return
	}

	lease, err := s.store.GetByIP(r.Context(), ip)
	if err != nil {
		logger.Error().Err(err).Str("ip", ipStr).Msg("failed to look up client")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if lease == nil {
		writeError(w, http.StatusNotFound, "Client not found")
		return
	}

	view := ToClientView(lease, false)
	s.cache.put(ipStr, view)
	writeJSON(w, http.StatusOK, view)
}

// handleClients serves GET /api/clients: every live lease, excluding
// pre-expired entries, as a ClientsResponse.
func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.get(allClientsCacheKey); ok {
		resp := cached.(ClientsResponse)
		resp.IsCached = true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	leases, err := s.store.GetAllLive(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list clients")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]ClientView, 0, len(leases))
	for _, l := range leases {
		if l.IsExpired {
			continue
		}
		views = append(views, ToClientView(l, false))
	}

	resp := ClientsResponse{Clients: views, Total: len(views)}
	s.cache.put(allClientsCacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}
