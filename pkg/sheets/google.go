package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/assistant-api/assistant-api/pkg/httpclient"
)

const defaultSheetsHost = "https://sheets.googleapis.com"

// readRange is wide enough for any sync worksheet.
const readRange = "A1:Z10000"

// GoogleSheets talks to the Google Sheets REST API for one spreadsheet.
type GoogleSheets struct {
	spreadsheetID string
	host          string
	tokens        *tokenSource
	httpClient    *httpclient.Client

	mu     sync.Mutex
	sheets map[string]bool // worksheets known to exist
}

// NewGoogleSheets builds a client from service-account credentials JSON
// and a spreadsheet id.
func NewGoogleSheets(credentials []byte, spreadsheetID string) (Service, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	tokens, err := newTokenSource(credentials, nil)
	if err != nil {
		return nil, err
	}
	return &GoogleSheets{
		spreadsheetID: spreadsheetID,
		host:          defaultSheetsHost,
		tokens:        tokens,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
			httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeader),
		),
		sheets: make(map[string]bool),
	}, nil
}

// Read returns every populated row of the worksheet. A worksheet that
// does not exist yet is created and read as empty.
func (g *GoogleSheets) Read(ctx context.Context, worksheet string) ([][]string, error) {
	rng := fmt.Sprintf("%s!%s", worksheet, readRange)
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s", g.spreadsheetID, url.PathEscape(rng))

	body, err := g.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		if isMissingWorksheet(err) {
			if err := g.ensureWorksheet(ctx, worksheet); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}

	var result struct {
		Values [][]interface{} `json:"values"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse values response: %w", err)
	}

	rows := make([][]string, len(result.Values))
	for i, row := range result.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprintf("%v", cell)
		}
		rows[i] = cells
	}
	return rows, nil
}

// WriteRow replaces the row at the given 1-based index.
func (g *GoogleSheets) WriteRow(ctx context.Context, worksheet string, index int, row []string) error {
	if err := g.ensureWorksheet(ctx, worksheet); err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!A%d", worksheet, index)
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?valueInputOption=USER_ENTERED",
		g.spreadsheetID, url.PathEscape(rng))

	payload := map[string]interface{}{
		"range":  rng,
		"values": [][]string{row},
	}
	_, err := g.call(ctx, http.MethodPut, path, payload)
	return err
}

// Append adds a row after the last populated one.
func (g *GoogleSheets) Append(ctx context.Context, worksheet string, row []string) error {
	if err := g.ensureWorksheet(ctx, worksheet); err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!%s", worksheet, readRange)
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		g.spreadsheetID, url.PathEscape(rng))

	payload := map[string]interface{}{
		"values": [][]string{row},
	}
	_, err := g.call(ctx, http.MethodPost, path, payload)
	return err
}

// ensureWorksheet creates the worksheet if this client has not seen it
// yet. An "already exists" response from the API is success.
func (g *GoogleSheets) ensureWorksheet(ctx context.Context, worksheet string) error {
	g.mu.Lock()
	known := g.sheets[worksheet]
	g.mu.Unlock()
	if known {
		return nil
	}

	path := fmt.Sprintf("/v4/spreadsheets/%s:batchUpdate", g.spreadsheetID)
	payload := map[string]interface{}{
		"requests": []map[string]interface{}{
			{"addSheet": map[string]interface{}{
				"properties": map[string]interface{}{"title": worksheet},
			}},
		},
	}
	if _, err := g.call(ctx, http.MethodPost, path, payload); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create worksheet %s: %w", worksheet, err)
		}
	}

	g.mu.Lock()
	g.sheets[worksheet] = true
	g.mu.Unlock()
	return nil
}

// call performs one authenticated API request and returns the body.
func (g *GoogleSheets) call(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.host+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// The retry client hands back the final response alongside the
	// error; the body carries the API's error details.
	resp, err := g.httpClient.Do(req)
	if resp == nil {
		return nil, fmt.Errorf("sheets API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response: %w", readErr)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheets API returned status %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// isMissingWorksheet detects the range-parse error the API returns for
// a worksheet that does not exist.
func isMissingWorksheet(err error) bool {
	return strings.Contains(err.Error(), "Unable to parse range")
}
