package http

import (
	"net/http"

	"ternak/internal/core"
	applog "ternak/internal/log"
)

type incomePage struct {
	Incomes []core.Income
	Stock   int64
}

func (s *Server) handleIncomeList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Penjualan Ayam")
	if !ok {
		return
	}

	incomes, err := s.ledger.ListIncomes(r.Context(), p.AssetID)
	if err != nil {
		s.serverError(w, r, applog.OpList, err)
		return
	}
	summary, err := s.ledger.StockSummary(r.Context(), p.AssetID)
	if err != nil {
		s.serverError(w, r, applog.OpRead, err)
		return
	}

	p.Data = incomePage{Incomes: incomes, Stock: summary.StockCount}
	s.render(w, r, http.StatusOK, "pemasukan.html", p)
}

// handleIncomeCreate records a sale of jumlah birds at harga each. The stock
// leaves the flock in the same transaction.
func (s *Server) handleIncomeCreate(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/pemasukan").Asset(assetID)

	qty, err := formQuantity(r, "jumlah")
	var price int64
	if err == nil {
		price, err = formRupiah(r, "harga")
	}
	if err == nil {
		_, err = s.ledger.RecordSale(r.Context(), assetID, qty, price)
	}
	if err != nil {
		s.fail(w, r, back, applog.OpCreate, err)
		return
	}
	back.Notice(codeSaved).Write(w, r)
}

func (s *Server) handleIncomeDelete(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/pemasukan").Asset(assetID)

	id, err := pathID(r)
	if err == nil {
		err = s.ledger.DeleteIncome(r.Context(), assetID, id)
	}
	if err != nil {
		s.fail(w, r, back, applog.OpDelete, err)
		return
	}
	back.Notice(codeDeleted).Write(w, r)
}
