package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"ternak/internal/core"
	applog "ternak/internal/log"
)

// page is the data every template receives. Data carries the page-specific part.
type page struct {
	Title   string
	Path    string
	AssetID int64
	Asset   core.Asset
	Assets  []core.Asset
	Error   string
	Notice  string
	Data    any
}

var templateFuncs = template.FuncMap{
	"rupiah": core.FormatRupiah,
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"assetQuery": func(id int64) string {
		if id <= core.DefaultAssetID {
			return ""
		}
		return "?asset=" + strconv.FormatInt(id, 10)
	},
	"pageQuery": func(id int64, page int) string {
		q := "?page=" + strconv.Itoa(page)
		if id > core.DefaultAssetID {
			q += "&asset=" + strconv.FormatInt(id, 10)
		}
		return q
	},
	"neg": func(n int64) bool { return n < 0 },
	"abs": func(n int64) int64 {
		if n < 0 {
			return -n
		}
		return n
	},
}

// reqLog returns a structured logger carrying the request id.
func reqLog(r *http.Request) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(r.Context()))
}

// errorCode maps a user-correctable error onto its outcome code. It returns
// "" for errors the caller cannot fix by resubmitting.
func errorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return codeInvalidAmount
	case errors.Is(err, core.ErrInvalidQuantity):
		return codeInvalidQuantity
	case errors.Is(err, core.ErrInvalidDate):
		return codeInvalidDate
	case errors.Is(err, core.ErrEmptyName):
		return codeEmptyName
	case errors.Is(err, core.ErrInvalidFormat):
		return codeInvalidFormat
	case errors.Is(err, core.ErrInvalidConfirmation):
		return codeInvalidConfirmation
	default:
		return ""
	}
}

// render executes name into a buffer first so a template failure still
// produces a clean 500 instead of half a page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	p.Path = r.URL.Path
	if p.Error == "" && p.Notice == "" {
		p.Error, p.Notice = flash(r)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, p); err != nil {
		reqLog(r).LogError(r.Context(), "Template execution failed", err,
			applog.ComponentTemplate, applog.OpRender, applog.LogFields{"template": name})
		ErrorResponse(w, http.StatusInternalServerError, "Terjadi kesalahan pada server")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// notFound renders the 404 page with message.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Halaman tidak ditemukan"
	}
	s.render(w, r, http.StatusNotFound, "404.html", page{Title: "Tidak Ditemukan", Error: message})
}

// serverError logs err and renders the generic failure page.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	reqLog(r).LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
	s.render(w, r, http.StatusInternalServerError, "500.html", page{Title: "Terjadi Kesalahan"})
}

// fail sends a mutation error to the right place: correctable input goes back
// to back with an error code, missing rows get the 404 page, and everything
// else is a server error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, back *RedirectBuilder, op string, err error) {
	if code := errorCode(err); code != "" {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected input",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorTypeOf(err),
			applog.FieldError, err)
		back.Error(code).Write(w, r)
		return
	}
	if errors.Is(err, core.ErrNotFound) {
		s.notFound(w, r, "Data tidak ditemukan")
		return
	}
	s.serverError(w, r, op, err)
}
