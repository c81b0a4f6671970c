package sheets

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// GoogleClient implements Client against the Google Sheets v4 API.
type GoogleClient struct {
	svc           *sheetsv4.Service
	spreadsheetID string
	tab           string
}

// Compile-time check that *GoogleClient satisfies Client.
var _ Client = (*GoogleClient)(nil)

// NewGoogleClient creates a Client for one spreadsheet tab, authenticating
// with a service-account credentials file.
// PRE: credentialsFile points at a readable service-account JSON key;
// spreadsheetID and tab identify the backing table
// POST: Returns a ready-to-use client or a connection error
func NewGoogleClient(ctx context.Context, credentialsFile, spreadsheetID, tab string) (*GoogleClient, error) {
	svc, err := sheetsv4.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &GoogleClient{svc: svc, spreadsheetID: spreadsheetID, tab: tab}, nil
}

// NewGoogleClientWithToken creates a Client authenticating with a
// pre-issued OAuth2 access token instead of a service-account key.
// Token refresh is the caller's problem; an expired token surfaces as
// ErrAuthExpired on the next call.
func NewGoogleClientWithToken(ctx context.Context, accessToken, spreadsheetID, tab string) (*GoogleClient, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := sheetsv4.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &GoogleClient{svc: svc, spreadsheetID: spreadsheetID, tab: tab}, nil
}

// ReadGrid fetches the full cell grid of the tab.
// PRE: none
// POST: Returns the grid (possibly empty); failures are classified onto
// the sentinel taxonomy
func (c *GoogleClient) ReadGrid(ctx context.Context) (Grid, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.tab).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return gridFromValues(resp.Values), nil
}

// ReadHeader fetches only the header row of the tab.
// PRE: none
// POST: Returns the header cells, nil for an empty tab
func (c *GoogleClient) ReadHeader(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!1:1", c.tab)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	grid := gridFromValues(resp.Values)
	return grid.Header(), nil
}

// WriteBatch applies all cell writes in a single values.BatchUpdate call,
// so the remote table never exposes a partially applied save.
// PRE: writes is non-empty with valid 0-based coordinates
// POST: All cells written, or none (the batch is one remote call)
func (c *GoogleClient) WriteBatch(ctx context.Context, writes []CellWrite) error {
	if len(writes) == 0 {
		return nil
	}

	data := make([]*sheetsv4.ValueRange, 0, len(writes))
	for _, w := range writes {
		data = append(data, &sheetsv4.ValueRange{
			Range:  c.cellRange(w.Row, w.Column),
			Values: [][]interface{}{{w.Value}},
		})
	}

	req := &sheetsv4.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return classify(err)
	}
	return nil
}

// cellRange converts 0-based grid coordinates to A1 notation.
func (c *GoogleClient) cellRange(row, col int) string {
	return fmt.Sprintf("%s!%s%d", c.tab, columnName(col), row+1)
}

// columnName converts a 0-based column index to its letter name (A, B,
// ..., Z, AA, AB, ...).
func columnName(col int) string {
	var b strings.Builder
	for col >= 0 {
		b.WriteByte(byte('A' + col%26))
		col = col/26 - 1
	}
	// Built least-significant letter first; reverse.
	s := b.String()
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = s[len(s)-1-i]
	}
	return string(out)
}

// gridFromValues converts the API's loosely typed cell values to strings.
func gridFromValues(values [][]interface{}) Grid {
	if len(values) == 0 {
		return nil
	}
	grid := make(Grid, 0, len(values))
	for _, row := range values {
		cells := make([]string, 0, len(row))
		for _, v := range row {
			cells = append(cells, fmt.Sprint(v))
		}
		grid = append(grid, cells)
	}
	return grid
}
