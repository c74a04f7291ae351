// Package sheets syncs user data and conversation logs to spreadsheets.
//
// Two backends implement the same surface: the Google Sheets REST API
// and a local excelize workbook. The upsert and resolution logic above
// them is backend-agnostic.
package sheets

import "context"

// Worksheet names used by the sync.
const (
	WorksheetUserData      = "UserData"
	WorksheetConversations = "Conversations"
)

// Service is a row-oriented spreadsheet backend. Implementations
// create missing worksheets on first use. Row indexes are 1-based.
type Service interface {
	// Read returns every populated row of the worksheet.
	Read(ctx context.Context, worksheet string) ([][]string, error)

	// WriteRow replaces the row at the given index.
	WriteRow(ctx context.Context, worksheet string, index int, row []string) error

	// Append adds a row after the last populated one.
	Append(ctx context.Context, worksheet string, row []string) error
}

// ServiceFactory builds a backend for one integration's credentials
// and spreadsheet id.
type ServiceFactory func(credentials []byte, spreadsheetID string) (Service, error)
