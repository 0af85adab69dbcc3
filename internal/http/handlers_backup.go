package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"ternak/internal/backup"
	"ternak/internal/core"
	applog "ternak/internal/log"
)

type backupPage struct {
	Confirmation string
}

func (s *Server) handleBackupPage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tenant(w, r, "Backup & Restore")
	if !ok {
		return
	}
	p.Data = backupPage{Confirmation: core.ClearConfirmation}
	s.render(w, r, http.StatusOK, "export.html", p)
}

// handleExportJSON streams the backup document as an attachment. The
// document is built in full before any byte is sent so a missing asset
// still gets a proper 404.
func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	sel, err := backup.ParseSelection(r.URL.Query().Get("assets"))
	if err != nil {
		RedirectTo("/export").Error(codeInvalidFormat).Write(w, r)
		return
	}

	now := s.now()
	var buf bytes.Buffer
	if err := s.exporter.WriteJSON(r.Context(), &buf, sel, now); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.notFound(w, r, "Aset tidak ditemukan")
			return
		}
		s.serverError(w, r, applog.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+backup.JSONFilename(now)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExportDB(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	w.Header().Set("Content-Disposition", `attachment; filename="`+backup.RawFilename(now)+`"`)

	n, err := s.exporter.ExportRaw(r.Context(), w)
	if err != nil {
		if n == 0 {
			w.Header().Del("Content-Disposition")
			s.serverError(w, r, applog.OpExport, err)
			return
		}
		// Headers are gone; the client sees a truncated download.
		reqLog(r).LogError(r.Context(), "Raw export interrupted", err,
			applog.ComponentBackup, applog.OpExport, applog.LogFields{"bytes": n})
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Raw database exported",
		applog.FieldOperation, applog.OpExport,
		slog.Int64("bytes", n))
}

func (s *Server) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	back := RedirectTo("/export")
	if err := parseUpload(w, r, s.maxUpload); err != nil {
		s.fail(w, r, back, applog.OpImport, err)
		return
	}
	if assetID, err := assetParam(r); err == nil {
		back.Asset(assetID)
	}

	mode, err := backup.ParseMode(r.FormValue("mode"))
	if err != nil {
		s.fail(w, r, back, applog.OpImport, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		back.Error(codeInvalidFormat).Write(w, r)
		return
	}
	defer file.Close()

	// Entries are independent: a per-asset failure still reports the counts
	// of what was applied. Only a rejected document is an error outcome.
	result, err := s.importer.Import(r.Context(), file, mode)
	if err != nil && len(result.Entries) == 0 {
		s.fail(w, r, back, applog.OpImport, err)
		return
	}
	for _, entry := range result.Entries {
		if entry.Err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Import entry failed",
				applog.FieldBatchID, result.BatchID,
				applog.FieldAssetID, entry.AssetID,
				applog.FieldFile, header.Filename,
				applog.FieldError, entry.Err)
		}
	}

	back.Notice(codeImported).
		Param("rows", strconv.FormatInt(result.Inserted(), 10)).
		Param("failed", strconv.Itoa(result.Failed())).
		Write(w, r)
}

// handleImportDB swaps the live database for the uploaded file. The store
// reopens on the new file before the redirect is sent.
func (s *Server) handleImportDB(w http.ResponseWriter, r *http.Request) {
	back := RedirectTo("/export")
	if err := parseUpload(w, r, s.maxUpload); err != nil {
		s.fail(w, r, back, applog.OpRestore, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		back.Error(codeInvalidFormat).Write(w, r)
		return
	}
	defer file.Close()

	if _, err := s.importer.ImportRaw(r.Context(), header.Filename, file); err != nil {
		s.fail(w, r, back, applog.OpRestore, err)
		return
	}
	back.Notice(codeRestored).Write(w, r)
}

// handleClear wipes every ledger row of one asset once the caller has typed
// the confirmation word.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.mutationAsset(w, r)
	if !ok {
		return
	}
	back := RedirectTo("/export").Asset(assetID)

	if _, err := s.ledger.ClearTenantData(r.Context(), assetID, r.FormValue("confirm")); err != nil {
		s.fail(w, r, back, applog.OpClear, err)
		return
	}
	back.Notice(codeCleared).Write(w, r)
}
