package sheets

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// LocalWorkbook is an xlsx-file backend with the same surface as the
// Google client. Used for local deployments without a Google
// integration and by the sync tests.
type LocalWorkbook struct {
	path string

	mu   sync.Mutex
	file *excelize.File
}

// NewLocalWorkbook opens the workbook at path, creating the file on
// first use.
func NewLocalWorkbook(path string) (*LocalWorkbook, error) {
	var file *excelize.File
	if _, err := os.Stat(path); err == nil {
		file, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
		}
	} else {
		file = excelize.NewFile()
		if err := file.SaveAs(path); err != nil {
			return nil, fmt.Errorf("failed to create workbook %s: %w", path, err)
		}
	}
	return &LocalWorkbook{path: path, file: file}, nil
}

// ensureWorksheet creates the sheet if missing. Must be called with the
// lock held.
func (w *LocalWorkbook) ensureWorksheet(worksheet string) error {
	if idx, _ := w.file.GetSheetIndex(worksheet); idx >= 0 {
		return nil
	}
	if _, err := w.file.NewSheet(worksheet); err != nil {
		return fmt.Errorf("failed to create worksheet %s: %w", worksheet, err)
	}
	return nil
}

// Read returns every populated row of the worksheet.
func (w *LocalWorkbook) Read(ctx context.Context, worksheet string) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureWorksheet(worksheet); err != nil {
		return nil, err
	}
	rows, err := w.file.GetRows(worksheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %s: %w", worksheet, err)
	}
	return rows, nil
}

// WriteRow replaces the row at the given 1-based index.
func (w *LocalWorkbook) WriteRow(ctx context.Context, worksheet string, index int, row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureWorksheet(worksheet); err != nil {
		return err
	}

	cell, err := excelize.CoordinatesToCellName(1, index)
	if err != nil {
		return fmt.Errorf("invalid row index %d: %w", index, err)
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	if err := w.file.SetSheetRow(worksheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", index, err)
	}
	return w.save()
}

// Append adds a row after the last populated one.
func (w *LocalWorkbook) Append(ctx context.Context, worksheet string, row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureWorksheet(worksheet); err != nil {
		return err
	}
	rows, err := w.file.GetRows(worksheet)
	if err != nil {
		return fmt.Errorf("failed to read worksheet %s: %w", worksheet, err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	if err := w.file.SetSheetRow(worksheet, cell, &values); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return w.save()
}

func (w *LocalWorkbook) save() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Close releases the underlying file handle.
func (w *LocalWorkbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
