package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// metadataSheets are workbook sheets skipped when looking for the data sheet.
var metadataSheets = map[string]bool{
	"info":     true,
	"metadata": true,
	"about":    true,
	"readme":   true,
	"notes":    true,
}

// LoadFile loads rows from path, reading .xlsx workbooks with excelize and
// everything else as delimited text.
func LoadFile(path string, delim rune) ([]Row, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadWorkbook(path)
	}
	return Load(path, delim)
}

// Load reads a delimited text file whose header names the User and Assistant
// columns. Either every row loads or a *FormatError is returned.
func Load(path string, delim rune) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()

	return Read(f, path, delim)
}

// Read parses delimited text from r. name is only used in errors.
func Read(r io.Reader, name string, delim rune) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	records, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &FormatError{Path: name, Reason: "malformed record", Err: err}
		}
		return nil, &FormatError{Path: name, Reason: "read", Err: err}
	}

	return fromRecords(name, records)
}

// LoadWorkbook reads the first non-metadata sheet of an .xlsx workbook.
func LoadWorkbook(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "open workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{Path: path, Reason: "no sheets in workbook"}
	}

	var sheet string
	for _, s := range sheets {
		if !metadataSheets[strings.ToLower(s)] {
			sheet = s
			break
		}
	}
	// All metadata: the last sheet is the most likely to hold data.
	if sheet == "" {
		sheet = sheets[len(sheets)-1]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "read sheet " + sheet, Err: err}
	}

	return fromRecords(path, records)
}

// fromRecords maps raw records (header first) onto Rows. Short records are
// padded so a missing field reads as empty text.
func fromRecords(name string, records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, &FormatError{Path: name, Reason: "missing header"}
	}

	userIdx, assistantIdx := -1, -1
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch h {
		case ColumnUser:
			if userIdx < 0 {
				userIdx = i
			}
		case ColumnAssistant:
			if assistantIdx < 0 {
				assistantIdx = i
			}
		}
	}
	if userIdx < 0 {
		return nil, &FormatError{Path: name, Reason: "header missing column " + ColumnUser}
	}
	if assistantIdx < 0 {
		return nil, &FormatError{Path: name, Reason: "header missing column " + ColumnAssistant}
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		for _, f := range rec {
			if !utf8.ValidString(f) {
				return nil, &FormatError{Path: name, Reason: fmt.Sprintf("invalid UTF-8 in row %d", i+1)}
			}
		}
		rows = append(rows, Row{
			User:      field(rec, userIdx),
			Assistant: field(rec, assistantIdx),
		})
	}
	return rows, nil
}

func field(rec []string, idx int) string {
	if idx < len(rec) {
		return rec[idx]
	}
	return ""
}
