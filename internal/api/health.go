package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/safar/storefront/internal/auth"
)

const readyTimeout = 2 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady runs every registered check and reports 503 if any fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.ready))
	for name := range s.ready {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.ready[name](ctx); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"check": name, "error": err.Error()}), "readiness.failed")
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	respondJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request, session auth.Session) {
	overview, err := s.dashboard.Admin(r.Context(), session)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

func (s *Server) handleStaffDashboard(w http.ResponseWriter, r *http.Request, session auth.Session) {
	overview, err := s.dashboard.Staff(r.Context(), session)
	if err != nil {
		respondError(r.Context(), s.logg, w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}
