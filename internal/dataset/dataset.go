// Package dataset reads the two tabular input schemas (case/death records and
// vaccination records) from CSV files. Readers map columns by header name,
// treat empty numeric cells as nulls, and abort on the first unparseable cell
// with an error identifying the offending row and field.
package dataset

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/covid-insights/backend/internal/models"
)

// MalformedRecordError reports an unparseable numeric or date cell. It aborts
// the read; malformed input is surfaced to the caller, not recovered.
type MalformedRecordError struct {
	Line  int
	Field string
	Value string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: field %q: cannot parse %q", e.Line, e.Field, e.Value)
}

// ProgressCallback reports read progress for large files.
type ProgressCallback func(lines int, bytesRead, totalBytes int64)

// Date layouts seen across published exports of the source datasets.
var dateLayouts = []string{"2006-01-02", "1/2/2006", "2006/01/02"}

func parseDate(s string, line int, field string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &MalformedRecordError{Line: line, Field: field, Value: s}
}

// parseInt parses a required integer cell. Empty cells count as 0; published
// exports sometimes carry integral values in float notation ("10.0").
func parseInt(s string, line int, field string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), nil
	}
	return 0, &MalformedRecordError{Line: line, Field: field, Value: s}
}

// parseNullableInt parses an optional integer cell. Empty cells are null.
func parseNullableInt(s string, line int, field string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := parseInt(s, line, field)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// columnIndex maps lower-cased header names to column positions.
type columnIndex map[string]int

func indexHeader(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func (idx columnIndex) get(row []string, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (idx columnIndex) has(names ...string) bool {
	for _, name := range names {
		if _, ok := idx[name]; !ok {
			return false
		}
	}
	return true
}

// DetectKind identifies which dataset schema a header row belongs to.
func DetectKind(header []string) models.DatasetKind {
	idx := indexHeader(header)
	switch {
	case idx.has("location", "date", "new_vaccinations"):
		return models.DatasetKindVaccinations
	case idx.has("location", "date", "total_cases"):
		return models.DatasetKindCases
	default:
		return models.DatasetKindUnknown
	}
}

// DetectFileKind sniffs the dataset kind from a file's header row.
func DetectFileKind(path string) (models.DatasetKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.DatasetKindUnknown, err
	}
	defer f.Close()

	header, err := readHeader(f)
	if err != nil {
		return models.DatasetKindUnknown, err
	}
	return DetectKind(header), nil
}

// countingReader tracks bytes consumed so progress can be reported against
// the file size.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
