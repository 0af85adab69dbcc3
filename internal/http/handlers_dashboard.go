package http

import (
	"net/http"

	applog "ternak/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Dashboard Pakan Ayam")
	if !ok {
		return
	}

	d, err := s.ledger.Dashboard(r.Context(), p.AssetID, s.now(), pageParam(r), s.ledger.PageSize())
	if err != nil {
		s.serverError(w, r, applog.OpRead, err)
		return
	}

	p.Data = d
	s.render(w, r, http.StatusOK, "index.html", p)
}
