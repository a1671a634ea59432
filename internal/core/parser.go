package core

// parser.go decodes uploaded files into ordered records.
//
// The format is chosen from the file extension only; contents are never
// sniffed. Delimited text is decoded here, workbooks in parser_workbook.go.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format is a recognized upload format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// utf8BOM is prepended by Excel and other Windows programs.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat returns the upload format for fileName.
func DetectFormat(fileName string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	switch Format(ext) {
	case FormatCSV, FormatXLSX, FormatXLS:
		return Format(ext), nil
	default:
		return "", fmt.Errorf("%w (got %q)", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// DefaultDatasetName returns the file name without directory or extension.
func DefaultDatasetName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileParser decodes uploads, enforcing an optional size limit.
type FileParser struct {
	// MaxFileSize rejects larger inputs with ErrFileTooLarge. Zero disables the check.
	MaxFileSize int64
}

// Parse checks the size limit and decodes data as the format implied by fileName.
func (p FileParser) Parse(data []byte, fileName string) ([]*Record, error) {
	if p.MaxFileSize > 0 && int64(len(data)) > p.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), p.MaxFileSize)
	}
	return Parse(data, fileName)
}

// Parse decodes data as the format implied by fileName's extension.
// It returns ErrUnsupportedFormat before reading any bytes if the extension is
// not recognized, and an error wrapping ErrMalformedInput if decoding fails.
func Parse(data []byte, fileName string) ([]*Record, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return parseDelimited(data)
	case FormatXLSX:
		return parseWorkbook(data)
	default:
		return parseLegacyWorkbook(data)
	}
}

// parseDelimited decodes comma-separated text. The first non-blank line is the
// header; blank lines are skipped everywhere. A line with more fields than the
// header is malformed; a shorter line yields a record with fewer fields.
func parseDelimited(data []byte) ([]*Record, error) {
	r := csv.NewReader(bytes.NewReader(normalizeText(data)))
	r.FieldsPerRecord = -1

	var header []string
	var records []*Record

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, malformed("line %d: %v", perr.StartLine, perr.Err)
			}
			return nil, malformed("%v", err)
		}

		if isBlankRow(row) {
			continue
		}

		if header == nil {
			header = normalizeHeader(row)
			continue
		}

		if len(row) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, malformed("line %d: %d fields but header has %d", line, len(row), len(header))
		}

		rec := NewRecord(len(row))
		for i, v := range row {
			rec.Set(header[i], v)
		}
		records = append(records, rec)
	}

	return records, nil
}

// normalizeText strips a UTF-8 BOM and replaces invalid UTF-8 sequences.
func normalizeText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	return bytes.ToValidUTF8(data, []byte("�"))
}

// isBlankRow reports whether a decoded line carried nothing but whitespace.
func isBlankRow(row []string) bool {
	return len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "")
}

// normalizeHeader trims header cells and makes them unique. Empty names
// become __EMPTY; repeats get _1, _2, ... suffixes.
func normalizeHeader(cells []string) []string {
	out := make([]string, len(cells))
	used := make(map[string]bool, len(cells))
	count := make(map[string]int)

	for i, c := range cells {
		base := strings.TrimSpace(c)
		if base == "" {
			base = "__EMPTY"
		}
		name := base
		for used[name] {
			count[base]++
			name = fmt.Sprintf("%s_%d", base, count[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
