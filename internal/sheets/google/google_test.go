package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ternak/internal/core"
)

// fakeSheetsAPI answers the handful of Sheets endpoints the client calls.
type fakeSheetsAPI struct {
	mu       sync.Mutex
	tabs     []string
	calls    []string
	lastBody gsheet.ValueRange
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
		f.calls = append(f.calls, "get")
		resp := gsheet.Spreadsheet{}
		for _, title := range f.tabs {
			resp.Sheets = append(resp.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "add")
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.Unmarshal(body, &req)
		f.tabs = append(f.tabs, req.Requests[0].AddSheet.Properties.Title)
		_, _ = w.Write([]byte(`{}`))
	case strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update")
		_ = json.Unmarshal(body, &f.lastBody)
		_, _ = w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func newFakeClient(t *testing.T, tabs ...string) (*Client, *fakeSheetsAPI) {
	t.Helper()
	api := &fakeSheetsAPI{tabs: tabs}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := newClient(context.Background(), "sheet-1",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, api
}

func TestReplaceAssetCreatesMissingTab(t *testing.T) {
	c, api := newFakeClient(t, "Sheet1")
	sheet := core.AssetSheet{
		Asset:     core.Asset{ID: 3, Name: "Kandang C"},
		FeedItems: []core.FeedItem{{ID: 1, Name: "Dedak", UnitPrice: 3000, AssetID: 3}},
	}

	require.NoError(t, c.ReplaceAsset(context.Background(), sheet))
	assert.Equal(t, []string{"get", "add", "clear", "update"}, api.calls)
	assert.Contains(t, api.tabs, "Asset 3")
	require.NotEmpty(t, api.lastBody.Values)
	assert.Equal(t, []any{"Asset", float64(3), "Kandang C"}, api.lastBody.Values[0])

	// The tab is cached after the first write.
	require.NoError(t, c.ReplaceAsset(context.Background(), sheet))
	assert.Equal(t, []string{"get", "add", "clear", "update", "clear", "update"}, api.calls)
}

func TestReplaceAssetReusesExistingTab(t *testing.T) {
	c, api := newFakeClient(t, "Asset 1")

	require.NoError(t, c.ReplaceAsset(context.Background(), core.AssetSheet{Asset: core.Asset{ID: 1, Name: "Asset 1"}}))
	assert.Equal(t, []string{"get", "clear", "update"}, api.calls)
}

func TestReplaceAssetWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	err := c.ReplaceAsset(context.Background(), core.AssetSheet{Asset: core.Asset{ID: 1}})
	assert.EqualError(t, err, "sheets service not initialized")
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Credentials{})
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Credentials{SpreadsheetID: "sheet-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = New(context.Background(), Credentials{SpreadsheetID: "sheet-1", ServiceAccountFile: "/non/existent/sa.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestQuoteTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Asset 1", "'Asset 1'"},
		{"Pak'e", "'Pak''e'"},
	}
	for _, tt := range tests {
		if got := quoteTitle(tt.in); got != tt.want {
			t.Errorf("quoteTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
