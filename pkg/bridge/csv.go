// Package bridge converts record collections to and from quoted delimited text and
// compares two collections that share an id space.
package bridge

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/taskroster/pkg/record"
)

// Delimiter separates fields.
const Delimiter = ','

// ContentType is the media type of serialized output.
const ContentType = "text/csv; charset=utf-8"

// ExportSuffix is appended to the schema name to build download file names.
const ExportSuffix = "_export.csv"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Filename returns the export file name for a schema.
func Filename(schema record.Schema) string {
	return schema.Name + ExportSuffix
}

// Serialize writes a header row followed by one row per record. Fields holding the
// delimiter, a quote or a newline are quoted with inner quotes doubled.
func Serialize(schema record.Schema, records []record.Record) ([]byte, error) {
	if len(schema.Fields) == 0 {
		return nil, fmt.Errorf("schema %q has no fields", schema.Name)
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.Comma = Delimiter
	if err := writer.Write(schema.Header()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(schema.Row(r)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RowError describes a dropped input row.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseResult holds reconstructed records and the rows that were dropped.
type ParseResult struct {
	Records []record.Record `json:"records"`
	Dropped []RowError      `json:"dropped"`
}

type parseConfig struct {
	defaults map[string]func() string
}

// ParseOption tunes Parse.
type ParseOption func(*parseConfig)

// WithDefault fills field with fn() when a row leaves it empty or omits it.
func WithDefault(field string, fn func() string) ParseOption {
	return func(c *parseConfig) {
		c.defaults[field] = fn
	}
}

// Parse skips the header row and every blank line, then rebuilds records
// positionally. Quoted spans may contain the delimiter, doubled quotes and newlines,
// and a CRLF inside a quoted span is kept as CRLF.
// Rows with fewer than schema.MinFields values, and rows the reader cannot decode,
// are dropped whole and reported in Dropped.
func Parse(schema record.Schema, data []byte, opts ...ParseOption) *ParseResult {
	cfg := parseConfig{defaults: map[string]func() string{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	result := &ParseResult{Records: []record.Record{}, Dropped: []RowError{}}
	reader := csv.NewReader(bytes.NewReader(keepQuotedCRLF(bytes.TrimPrefix(data, utf8BOM))))
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headerSeen := false
	for {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.Dropped = append(result.Dropped, RowError{Line: perr.StartLine, Reason: perr.Err.Error()})
				continue
			}
			result.Dropped = append(result.Dropped, RowError{Reason: err.Error()})
			break
		}
		if !headerSeen {
			headerSeen = true
			continue
		}
		if blank(values) {
			continue
		}
		if len(values) < schema.MinFields {
			line, _ := reader.FieldPos(0)
			result.Dropped = append(result.Dropped, RowError{
				Line:   line,
				Reason: fmt.Sprintf("expected at least %d fields, got %d", schema.MinFields, len(values)),
			})
			continue
		}
		rec := schema.FromRow(values)
		for field, fn := range cfg.defaults {
			if rec[field] == "" {
				rec[field] = fn()
			}
		}
		result.Records = append(result.Records, rec)
	}
	return result
}

// keepQuotedCRLF doubles the carriage return of every CRLF inside a quoted span.
// csv.Reader folds "\r\n" to "\n" on every line, which turns "\r\r\n" back into
// the original "\r\n". A quote only opens a span at the start of a field.
func keepQuotedCRLF(data []byte) []byte {
	if !bytes.Contains(data, []byte("\r\n")) {
		return data
	}
	out := make([]byte, 0, len(data)+16)
	quoted, fieldStart := false, true
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case quoted && c == '"':
			if i+1 < len(data) && data[i+1] == '"' {
				out = append(out, c, c)
				i++
				continue
			}
			quoted = false
		case quoted && c == '\r' && i+1 < len(data) && data[i+1] == '\n':
			out = append(out, c)
		case !quoted && c == '"' && fieldStart:
			quoted = true
		}
		out = append(out, c)
		fieldStart = !quoted && (c == Delimiter || c == '\n')
	}
	return out
}

func blank(values []string) bool {
	return len(values) == 1 && strings.TrimSpace(values[0]) == ""
}
