// Package http provides the HTTP server and handler implementations.
//
// This file implements a small builder for the post-redirect-get responses
// every form handler ends with. Outcomes travel as short codes in the query
// string and are turned into messages by the page that receives them.

package http

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"ternak/internal/core"
)

// Outcome codes carried in ?error= and ?ok=.
const (
	codeInvalidAmount       = "invalid_amount"
	codeInvalidQuantity     = "invalid_quantity"
	codeInvalidDate         = "invalid_date"
	codeEmptyName           = "empty_name"
	codeInvalidFormat       = "invalid_format"
	codeInvalidConfirmation = "invalid_confirmation"

	codeSaved        = "saved"
	codeDeleted      = "deleted"
	codeImported     = "imported"
	codeRestored     = "restored"
	codeCleared      = "cleared"
	codeAssetCreated = "asset_created"
	codeAssetDeleted = "asset_deleted"
)

var errorMessages = map[string]string{
	codeInvalidAmount:       "Nominal tidak valid",
	codeInvalidQuantity:     "Jumlah harus berupa angka lebih dari 0",
	codeInvalidDate:         "Tanggal tidak valid",
	codeEmptyName:           "Nama wajib diisi",
	codeInvalidFormat:       "Format file tidak valid",
	codeInvalidConfirmation: "Konfirmasi salah, ketik HAPUS untuk melanjutkan",
}

var noticeMessages = map[string]string{
	codeSaved:        "Data tersimpan",
	codeDeleted:      "Data dihapus",
	codeImported:     "Impor selesai",
	codeRestored:     "Database dipulihkan",
	codeCleared:      "Semua data aset dihapus",
	codeAssetCreated: "Aset ditambahkan",
	codeAssetDeleted: "Aset dihapus",
}

// RedirectBuilder provides a fluent API for building redirects back to a page.
type RedirectBuilder struct {
	path  string
	query url.Values
}

// RedirectTo starts a redirect to path.
func RedirectTo(path string) *RedirectBuilder {
	return &RedirectBuilder{path: path, query: url.Values{}}
}

// Asset keeps the caller on the given tenant. The default asset is implied.
func (b *RedirectBuilder) Asset(id int64) *RedirectBuilder {
	if id > 0 && id != core.DefaultAssetID {
		b.query.Set("asset", strconv.FormatInt(id, 10))
	}
	return b
}

// Error attaches a failure code.
func (b *RedirectBuilder) Error(code string) *RedirectBuilder {
	b.query.Set("error", code)
	return b
}

// Notice attaches a success code.
func (b *RedirectBuilder) Notice(code string) *RedirectBuilder {
	b.query.Set("ok", code)
	return b
}

// Param attaches an extra query value.
func (b *RedirectBuilder) Param(key, value string) *RedirectBuilder {
	b.query.Set(key, value)
	return b
}

// URL renders the target location.
func (b *RedirectBuilder) URL() string {
	if len(b.query) == 0 {
		return b.path
	}
	return b.path + "?" + b.query.Encode()
}

// Write sends a 303 so the browser follows with a GET. HTMX callers get the
// location in HX-Redirect instead.
func (b *RedirectBuilder) Write(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", b.URL())
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, b.URL(), http.StatusSeeOther)
}

// ErrorResponse writes a bare HTML fragment for responses that cannot use a
// full page. The message is escaped.
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`))
}

// flash resolves the ?error= and ?ok= codes of the current request. Unknown
// codes are dropped so nothing from the URL is echoed back verbatim.
func flash(r *http.Request) (errMsg, notice string) {
	q := r.URL.Query()
	errMsg = errorMessages[q.Get("error")]
	notice = noticeMessages[q.Get("ok")]
	if notice != "" && q.Get("ok") == codeImported {
		rows, _ := strconv.Atoi(q.Get("rows"))
		failed, _ := strconv.Atoi(q.Get("failed"))
		notice += ": " + strconv.Itoa(rows) + " baris"
		if failed > 0 {
			notice += ", " + strconv.Itoa(failed) + " aset gagal"
		}
	}
	return errMsg, notice
}
