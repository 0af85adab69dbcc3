package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRedirectBuilderURL(t *testing.T) {
	tests := []struct {
		name string
		b    *RedirectBuilder
		want string
	}{
		{"bare path", RedirectTo("/ayam"), "/ayam"},
		{"default asset is implied", RedirectTo("/ayam").Asset(1), "/ayam"},
		{"other asset", RedirectTo("/ayam").Asset(4), "/ayam?asset=4"},
		{"error code", RedirectTo("/add").Asset(2).Error(codeInvalidQuantity), "/add?asset=2&error=invalid_quantity"},
		{"notice with params", RedirectTo("/export").Notice(codeImported).Param("rows", "5"), "/export?ok=imported&rows=5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedirectBuilderWrite(t *testing.T) {
	t.Run("browser gets 303", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/kebutuhan", nil)
		RedirectTo("/kebutuhan").Notice(codeSaved).Write(rr, req)

		if rr.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/kebutuhan?ok=saved" {
			t.Errorf("Location = %q", loc)
		}
	})

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/kebutuhan", nil)
		req.Header.Set("HX-Request", "true")
		RedirectTo("/kebutuhan").Write(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rr.Code)
		}
		if got := rr.Header().Get("HX-Redirect"); got != "/kebutuhan" {
			t.Errorf("HX-Redirect = %q", got)
		}
	})
}

func TestErrorResponseEscapes(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorResponse(rr, http.StatusBadRequest, "<script>x</script>")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<script>") {
		t.Errorf("message not escaped: %s", rr.Body.String())
	}
}

func TestFlash(t *testing.T) {
	tests := []struct {
		target     string
		wantErr    string
		wantNotice string
	}{
		{"/", "", ""},
		{"/?error=invalid_amount", "Nominal tidak valid", ""},
		{"/?ok=saved", "", "Data tersimpan"},
		{"/?error=unknown_code", "", ""},
		{"/export?ok=imported&rows=12", "", "Impor selesai: 12 baris"},
		{"/export?ok=imported&rows=3&failed=1", "", "Impor selesai: 3 baris, 1 aset gagal"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			gotErr, gotNotice := flash(req)
			if gotErr != tt.wantErr {
				t.Errorf("error = %q, want %q", gotErr, tt.wantErr)
			}
			if gotNotice != tt.wantNotice {
				t.Errorf("notice = %q, want %q", gotNotice, tt.wantNotice)
			}
		})
	}
}
