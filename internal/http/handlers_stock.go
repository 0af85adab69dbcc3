package http

import (
	"errors"
	"net/http"

	"ternak/internal/core"
	applog "ternak/internal/log"
)

type stockPage struct {
	Events  []core.StockEvent
	Event   core.StockEvent
	Summary core.StockSummary
}

func (s *Server) handleStockList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Daftar Ayam")
	if !ok {
		return
	}

	events, err := s.ledger.ListStockEvents(r.Context(), p.AssetID)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}
	summary, err := s.ledger.StockSummary(r.Context(), p.AssetID)
	if err != nil {
		s.serverError(w, r, applog.OpRead, err)
		return
	}

	p.Data = stockPage{Events: events, Summary: summary}
	s.render(w, r, http.StatusOK, "ayam.html", p)
}

// handleStockCreate records a chick purchase: jumlah birds for a lump sum of
// harga, booked as an expense at the same time.
func (s *Server) handleStockCreate(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/ayam").Asset(assetID)

	qty, err := formQuantity(r, "jumlah")
	var amount int64
	if err == nil {
		amount, err = formRupiah(r, "harga")
	}
	if err == nil {
		_, err = s.ledger.RecordChickPurchase(r.Context(), assetID, qty, amount)
	}
	if err != nil {
		s.fail(w, r, back, applog.OpCreate, err)
		return
	}
	back.Notice(codeSaved).Write(w, r)
}

func (s *Server) handleStockEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Ubah Data Ayam")
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.notFound(w, r, "Data ayam tidak ditemukan")
		return
	}

	ev, err := s.ledger.GetStockEvent(r.Context(), p.AssetID, id)
	if errors.Is(err, core.ErrNotFound) {
		s.notFound(w, r, "Data ayam tidak ditemukan")
		return
	}
	if err != nil {
		s.serverError(w, r, applog.OpRead, err)
		return
	}

	p.Data = stockPage{Event: ev}
	s.render(w, r, http.StatusOK, "ayam_edit.html", p)
}

// handleStockUpdate accepts negative quantities so sale movements can be
// corrected too.
func (s *Server) handleStockUpdate(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.notFound(w, r, "Data ayam tidak ditemukan")
		return
	}
	back := RedirectTo(r.URL.Path).Asset(assetID)

	ev := core.StockEvent{ID: id, AssetID: assetID}
	ev.Quantity, err = core.ParseSignedQuantity(r.FormValue("jumlah"))
	if err == nil {
		ev.Amount, err = formRupiah(r, "harga")
	}
	if err == nil {
		ev.Date, err = core.ParseDate(r.FormValue("tanggal"))
	}
	if err == nil {
		err = s.ledger.UpdateStockEvent(r.Context(), ev)
	}
	if err != nil {
		s.fail(w, r, back, applog.OpUpdate, err)
		return
	}
	RedirectTo("/ayam").Asset(assetID).Notice(codeSaved).Write(w, r)
}

func (s *Server) handleStockDelete(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/ayam").Asset(assetID)

	id, err := pathID(r)
	if err == nil {
		err = s.ledger.DeleteStockEvent(r.Context(), assetID, id)
	}
	if err != nil {
		s.fail(w, r, back, applog.OpDelete, err)
		return
	}
	back.Notice(codeDeleted).Write(w, r)
}
