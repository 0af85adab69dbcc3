// Package http provides the HTTP server and handler implementations.
//
// This file holds the helpers that read tenant, paging and form values out
// of a request so the handlers stay free of parsing noise.

package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ternak/internal/core"
)

// assetParam reads the tenant from the query string or form body. A missing
// value selects the default asset; anything else that is not a positive
// integer names no asset at all.
func assetParam(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.FormValue("asset"))
	if v == "" {
		return core.DefaultAssetID, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("asset %q: %w", v, core.ErrNotFound)
	}
	return id, nil
}

// pathID parses the {id} wildcard of the matched route.
func pathID(r *http.Request) (int64, error) {
	v := r.PathValue("id")
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("row %q: %w", v, core.ErrNotFound)
	}
	return id, nil
}

// pageParam returns the requested dashboard page, never below 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("page")))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// formText returns a sanitized form value.
func formText(r *http.Request, key string) string {
	return sanitizeInput(r.FormValue(key))
}

// formRupiah parses an amount field such as "12.500" or "Rp 12.500".
func formRupiah(r *http.Request, key string) (int64, error) {
	return core.ParseRupiah(r.FormValue(key))
}

// formQuantity parses a strictly positive count field.
func formQuantity(r *http.Request, key string) (int64, error) {
	return core.ParseQuantity(r.FormValue(key))
}

// sanitizeInput removes control characters other than tab, newline and
// carriage return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseUpload parses a multipart body no larger than maxBytes.
func parseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return fmt.Errorf("parse upload: %w", core.ErrInvalidFormat)
	}
	return nil
}
