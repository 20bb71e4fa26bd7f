package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/angadhsingh1/ETL-Pipeline/internal/dataset"
)

// MissingTokens are cell values read as missing, in addition to empty cells.
var MissingTokens = []string{"n/a", "na", " "}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// ErrNoHeader is returned for a source with no header row.
var ErrNoHeader = errors.New("loader: source has no header row")

// ReadCSV parses a CSV source into a frame. The first record is the
// header. Input that is not valid UTF-8 is decoded as Latin-1.
func ReadCSV(r io.Reader) (*dataset.Frame, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		if raw, err = charmap.ISO8859_1.NewDecoder().Bytes(raw); err != nil {
			return nil, fmt.Errorf("failed to decode csv: %w", err)
		}
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	return toFrame(records)
}

// ReadXLSX parses one worksheet of an Excel workbook into a frame. An empty
// sheet name selects the first sheet.
func ReadXLSX(r io.Reader, sheet string) (*dataset.Frame, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	// GetRows trims trailing empty cells; pad back to the header width.
	if len(rows) > 0 {
		width := len(rows[0])
		for i := 1; i < len(rows); i++ {
			for len(rows[i]) < width {
				rows[i] = append(rows[i], "")
			}
		}
	}

	return toFrame(rows)
}

func toFrame(records [][]string) (*dataset.Frame, error) {
	if len(records) == 0 {
		return nil, ErrNoHeader
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([][]any, 0, len(records)-1)
	for n, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, want %d", n+1, len(rec), len(header))
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			if isMissing(cell) {
				continue
			}
			row[i] = cell
		}
		rows = append(rows, row)
	}

	return dataset.NewFrame(header, rows)
}

func isMissing(cell string) bool {
	if cell == "" {
		return true
	}
	for _, token := range MissingTokens {
		if cell == token {
			return true
		}
	}
	return false
}
