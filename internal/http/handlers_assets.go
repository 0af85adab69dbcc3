package http

import (
	"net/http"

	applog "ternak/internal/log"
)

func (s *Server) handleAssetList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Daftar Aset")
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "assets.html", p)
}

func (s *Server) handleAssetCreate(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.CreateAsset(r.Context(), formText(r, "nama"))
	if err != nil {
		s.fail(w, r, RedirectTo("/assets"), applog.OpCreate, err)
		return
	}
	RedirectTo("/assets").Asset(a.ID).Notice(codeAssetCreated).Write(w, r)
}

// handleAssetDelete removes a tenant with all of its rows. Deleting the
// default asset leaves an empty one in its place.
func (s *Server) handleAssetDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		_, err = s.ledger.DeleteTenant(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, RedirectTo("/assets"), applog.OpDelete, err)
		return
	}
	RedirectTo("/assets").Notice(codeAssetDeleted).Write(w, r)
}
