package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"saldi/internal/core"
	"saldi/internal/log"
	ports "saldi/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// maxTabName is the Sheets limit on tab titles.
const maxTabName = 100

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ ports.SnapshotExporter = (*Client)(nil)

// Credentials selects the service account used to reach the spreadsheet.
// JSON wins over File; with neither set GOOGLE_APPLICATION_CREDENTIALS is read.
type Credentials struct {
	JSON string
	File string
}

// New creates a Sheets client for spreadsheetID.
func New(ctx context.Context, spreadsheetID string, creds Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials(creds)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		log.FieldComponent, log.ComponentSheets,
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials(creds Credentials) ([]byte, error) {
	inline := strings.TrimSpace(creds.JSON)
	file := strings.TrimSpace(creds.File)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling keeps connections to the Sheets API alive between
// export batches.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ExportSnapshots upserts one row per snapshot date into the account's tab,
// creating the tab with a header row when it does not exist yet.
func (c *Client) ExportSnapshots(ctx context.Context, account core.Account, snapshots []core.Snapshot) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	tab := tabName(account)

	if err := c.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	rng := fmt.Sprintf("'%s'!A:A", tab)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read dates from %s: %w", tab, err)
	}

	plan := planUpsert(tab, resp.Values, snapshots)
	if len(plan) == 0 {
		return fmt.Sprintf("'%s'!A1", tab), nil
	}

	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             plan,
	}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write rows to %s: %w", tab, err)
	}

	slog.DebugContext(ctx, "Exported snapshots",
		log.FieldComponent, log.ComponentSheets,
		log.FieldAccountID, account.ID,
		log.FieldSheetsRef, tab,
		"rows", len(plan))
	return plan[len(plan)-1].Range, nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}

	add := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, add).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", tab, err)
	}

	header := &gsheet.ValueRange{Values: [][]any{toValues(ports.Header)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("'%s'!A1", tab), header).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", tab, err)
	}
	return nil
}

// tabName is the account name made safe for a tab title. The id suffix keeps
// renamed accounts from colliding.
func tabName(a core.Account) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '\'', '!', '[', ']', '*', '?', '/', '\\', ':':
			return '_'
		}
		return r
	}, strings.TrimSpace(a.Name))

	suffix := a.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if name == "" {
		return suffix
	}
	title := fmt.Sprintf("%s (%s)", name, suffix)
	if len(title) > maxTabName {
		keep := maxTabName - len(suffix) - 3
		title = fmt.Sprintf("%s (%s)", name[:keep], suffix)
	}
	return title
}

// planUpsert maps each snapshot to the row holding its date in existing
// (column A, header included) or to a fresh row after the last one.
func planUpsert(tab string, existing [][]any, snapshots []core.Snapshot) []*gsheet.ValueRange {
	rows := make(map[string]int, len(existing))
	for i, row := range existing {
		if len(row) == 0 {
			continue
		}
		rows[strings.TrimSpace(fmt.Sprint(row[0]))] = i + 1
	}

	next := len(existing) + 1
	if next < 2 {
		next = 2
	}

	out := make([]*gsheet.ValueRange, 0, len(snapshots))
	for _, s := range snapshots {
		n, ok := rows[s.Date.String()]
		if !ok {
			n = next
			rows[s.Date.String()] = n
			next++
		}
		out = append(out, &gsheet.ValueRange{
			Range:  fmt.Sprintf("'%s'!A%d:F%d", tab, n, n),
			Values: [][]any{toValues(ports.Row(s))},
		})
	}
	return out
}

func toValues(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}
