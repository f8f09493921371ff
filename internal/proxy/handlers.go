package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

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

// handleClient serves GET /api/client/{ip}: route to the single upstream
// responsible for ip's /24, or 400 if none matches.
func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	ipStr := mux.Vars(r)["ip"]
	ip := net.ParseIP(ipStr)
	if ip == nil {
		writeError(w, http.StatusBadRequest, "invalid IP address")
		return
	}

	u := routeFor(s.upstreams, ip)
	if u == nil {
		writeError(w, http.StatusBadRequest, "No DHCP server responsible for this IP subnet")
		return
	}

	if cached, ok := s.cache.get(ipStr); ok {
		resp := cached.(ClientResponse)
		resp.IsCached = true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.dhcpTimeout)
	defer cancel()

	view, status, err := u.getClient(ctx, ipStr)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "upstream timed out")
		case status == http.StatusNotFound:
			writeError(w, http.StatusNotFound, "Client not found")
		default:
			logger.Error().Err(err).Str("upstream", u.name).Msg("upstream request failed")
			writeError(w, http.StatusBadGateway, "upstream unavailable")
		}
		return
	}

	resp := ClientResponse{
		ClientView:   *view,
		IsProxy:      true,
		IsDHCPCached: view.IsCached,
		SourceServer: u.name,
	}
	resp.IsCached = false

	s.cache.put(ipStr, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleClients fans out to every upstream in parallel, bounded to the
// upstream count, merges under the configured duplicate_mac_policy, and
// never fails the aggregate on a single upstream error.
func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.get(allClientsCacheKey); ok {
		resp := cached.(ClientsResponse)
		resp.IsCached = true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	perUpstream := make([][]clientEntry, len(s.upstreams))
	dhcpCached := make([]bool, len(s.upstreams))
	errs := make(map[string]string)
	var mu sync.Mutex

	ctx, cancel := context.WithTimeout(r.Context(), s.dhcpTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(s.upstreams))

	for i, u := range s.upstreams {
		i, u := i, u
		g.Go(func() error {
			resp, err := u.getClients(gctx)
			if err != nil {
				mu.Lock()
				errs[u.name] = err.Error()
				mu.Unlock()
				return nil // a single upstream failing never fails the aggregate
			}

			entries := make([]clientEntry, 0, len(resp.Clients))
			for _, c := range resp.Clients {
				entries = append(entries, clientEntry{ClientView: c, SourceServer: u.name})
			}
			perUpstream[i] = entries
			dhcpCached[i] = resp.IsCached
			return nil
		})
	}
	_ = g.Wait()

	merged := mergeClients(s.policy, perUpstream)
	if len(errs) == 0 {
		errs = nil
	}

	resp := ClientsResponse{
		Clients:            merged,
		Total:              len(merged),
		IsCached:           false,
		IsProxy:            true,
		IsDHCPCached:       dhcpCached,
		DuplicateMACPolicy: s.policy,
		GeneratedAt:        time.Now().UTC().Format(apiTimeFormat),
		Errors:             errs,
	}

	s.cache.put(allClientsCacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth probes every upstream in parallel with a short, fixed
// timeout and reports ok if at least one is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := make(map[string]bool, len(s.upstreams))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, u := range s.upstreams {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok := u.healthy(r.Context(), healthCheckTimeout)
			mu.Lock()
			statuses[u.name] = ok
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := "degraded"
	for _, ok := range statuses {
		if ok {
			status = "ok"
			break
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: status, Upstreams: statuses})
}
