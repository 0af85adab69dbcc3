package http

import (
	"errors"
	"net/http"

	"ternak/internal/core"
	applog "ternak/internal/log"
)

type feedPage struct {
	Items []core.FeedItem
	Item  core.FeedItem
}

func (s *Server) handleFeedList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Daftar Kebutuhan")
	if !ok {
		return
	}

	items, err := s.ledger.ListFeedItems(r.Context(), p.AssetID)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}

	p.Data = feedPage{Items: items}
	s.render(w, r, http.StatusOK, "kebutuhan.html", p)
}

func (s *Server) handleFeedCreate(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/kebutuhan").Asset(assetID)

	price, err := formRupiah(r, "harga")
	if err == nil {
		_, err = s.ledger.RecordFeedItem(r.Context(), assetID, formText(r, "nama"), price)
	}
	if err != nil {
		s.fail(w, r, back, applog.OpCreate, err)
		return
	}
	back.Notice(codeSaved).Write(w, r)
}

func (s *Server) handleFeedEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Ubah Kebutuhan")
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.notFound(w, r, "Kebutuhan tidak ditemukan")
		return
	}

	item, err := s.ledger.GetFeedItem(r.Context(), p.AssetID, id)
	if errors.Is(err, core.ErrNotFound) {
		s.notFound(w, r, "Kebutuhan tidak ditemukan")
		return
	}
	if err != nil {
		s.serverError(w, r, applog.OpRead, err)
		return
	}

	p.Data = feedPage{Item: item}
	s.render(w, r, http.StatusOK, "kebutuhan_edit.html", p)
}

func (s *Server) handleFeedUpdate(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.notFound(w, r, "Kebutuhan tidak ditemukan")
		return
	}
	back := RedirectTo(r.URL.Path).Asset(assetID)

	price, err := formRupiah(r, "harga")
	if err == nil {
		err = s.ledger.UpdateFeedItem(r.Context(), core.FeedItem{
			ID:        id,
			Name:      formText(r, "nama"),
			UnitPrice: price,
			AssetID:   assetID,
		})
	}
	if err != nil {
		s.fail(w, r, back, applog.OpUpdate, err)
		return
	}
	RedirectTo("/kebutuhan").Asset(assetID).Notice(codeSaved).Write(w, r)
}

func (s *Server) handleFeedDelete(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/kebutuhan").Asset(assetID)

	id, err := pathID(r)
	if err == nil {
		err = s.ledger.DeleteFeedItem(r.Context(), assetID, id)
	}
	if err != nil {
		s.fail(w, r, back, applog.OpDelete, err)
		return
	}
	back.Notice(codeDeleted).Write(w, r)
}

// --- pengeluaran ---

type expensePage struct {
	Items    []core.FeedItem
	Expenses []core.Expense
}

func (s *Server) handleExpenseForm(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Tambah Pengeluaran")
	if !ok {
		return
	}

	items, err := s.ledger.ListFeedItems(r.Context(), p.AssetID)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}
	expenses, err := s.ledger.ListExpenses(r.Context(), p.AssetID)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}

	p.Data = expensePage{Items: items, Expenses: expenses}
	s.render(w, r, http.StatusOK, "add.html", p)
}

// handleExpenseCreate books an expense against a feed item picked by name.
// An unknown name is a 404 rather than a redirect: there is nothing on the
// form the caller could correct.
func (s *Server) handleExpenseCreate(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/add").Asset(assetID)

	qty, err := formQuantity(r, "jumlah")
	if err == nil {
		_, err = s.ledger.RecordExpense(r.Context(), assetID, formText(r, "nama"), qty)
	}
	if errors.Is(err, core.ErrNotFound) {
		s.notFound(w, r, "Kebutuhan tidak ditemukan")
		return
	}
	if err != nil {
		s.fail(w, r, back, applog.OpCreate, err)
		return
	}
	back.Notice(codeSaved).Write(w, r)
}

func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/add").Asset(assetID)

	id, err := pathID(r)
	if err == nil {
		err = s.ledger.DeleteExpense(r.Context(), assetID, id)
	}
	if err != nil {
		s.fail(w, r, back, applog.OpDelete, err)
		return
	}
	back.Notice(codeDeleted).Write(w, r)
}
