package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"ternak/internal/core"
	applog "ternak/internal/log"
	ports "ternak/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Credentials selects the service account. JSON wins over File; when both are
// empty GOOGLE_APPLICATION_CREDENTIALS is read.
type Credentials struct {
	SpreadsheetID      string
	ServiceAccountFile string
	ServiceAccountJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu   sync.Mutex
	tabs map[string]bool
}

// Ensure interface conformance
var _ ports.AssetMirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, creds Credentials) (*Client, error) {
	spreadsheetID := strings.TrimSpace(creds.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := readCredentials(ctx, creds)
	if err != nil {
		return nil, err
	}

	return newClient(ctx, spreadsheetID,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newClient(ctx context.Context, spreadsheetID string, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, tabs: make(map[string]bool)}, nil
}

func readCredentials(ctx context.Context, creds Credentials) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(creds.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(creds.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", serviceAccountFile, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ReplaceAsset clears the asset's tab and writes the full layout from A1.
func (c *Client) ReplaceAsset(ctx context.Context, sheet core.AssetSheet) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	title := ports.TabTitle(sheet.Asset.ID)
	if err := c.ensureTab(ctx, title); err != nil {
		return err
	}

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoteTitle(title), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", title, err)
	}

	vr := &gsheet.ValueRange{Values: ports.Layout(sheet)}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoteTitle(title)+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", title, err)
	}

	slog.InfoContext(ctx, "Asset mirrored to spreadsheet",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldAssetID, sheet.Asset.ID,
		"tab", title,
		"rows", sheet.Rows())
	return nil
}

// ensureTab adds the tab unless it is known to exist. Known titles are
// cached; a cache miss re-reads the spreadsheet so tabs created by hand are
// picked up.
func (c *Client) ensureTab(ctx context.Context, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tabs[title] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			c.tabs[s.Properties.Title] = true
		}
	}
	if c.tabs[title] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	c.tabs[title] = true

	slog.InfoContext(ctx, "Created spreadsheet tab", applog.FieldComponent, applog.ComponentSheets, "tab", title)
	return nil
}

// quoteTitle wraps a tab title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
