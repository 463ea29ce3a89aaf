package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// Row is one delimited-text record keyed by column name
type Row map[string]string

// CSVReader reads a headed CSV file. KeyColumn selects the record key;
// the value is the row restricted to ValueColumns, or every column when
// ValueColumns is empty.
type CSVReader struct {
	Path         string
	KeyColumn    string
	ValueColumns []string
	Comma        rune
}

// NewCSVReader creates a comma-separated reader.
func NewCSVReader(path, keyColumn string, valueColumns ...string) *CSVReader {
	return &CSVReader{Path: path, KeyColumn: keyColumn, ValueColumns: valueColumns, Comma: ','}
}

// Each opens the file, checks the header and yields every row.
func (r *CSVReader) Each(ctx context.Context, fn func(key string, value Row) error) error {
	f, err := os.Open(r.Path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	if r.Comma != 0 {
		cr.Comma = r.Comma
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &internalerr.MissingColumnError{Column: r.KeyColumn, Source: r.Path}
	}
	if err != nil {
		return fmt.Errorf("read csv header %s: %w", r.Path, err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	keyIdx, ok := index[r.KeyColumn]
	if !ok {
		return &internalerr.MissingColumnError{Column: r.KeyColumn, Source: r.Path}
	}
	columns := r.ValueColumns
	if len(columns) == 0 {
		columns = header
	}
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return &internalerr.MissingColumnError{Column: col, Source: r.Path}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv %s: %w", r.Path, err)
		}

		row := make(Row, len(columns))
		for _, col := range columns {
			if i := index[col]; i < len(rec) {
				row[col] = rec[i]
			}
		}
		var key string
		if keyIdx < len(rec) {
			key = rec[keyIdx]
		}
		if err := fn(key, row); err != nil {
			return stopped(err)
		}
	}
}

// CSVWriter writes rows under a header of KeyColumn followed by Columns.
type CSVWriter struct {
	Path      string
	KeyColumn string
	Columns   []string

	f *os.File
	w *csv.Writer
}

// NewCSVWriter creates a comma-separated writer.
func NewCSVWriter(path, keyColumn string, columns ...string) *CSVWriter {
	return &CSVWriter{Path: path, KeyColumn: keyColumn, Columns: columns}
}

func (w *CSVWriter) Open(ctx context.Context) error {
	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	w.f = f
	w.w = csv.NewWriter(f)
	return w.w.Write(append([]string{w.KeyColumn}, w.Columns...))
}

func (w *CSVWriter) Write(ctx context.Context, key string, value Row) error {
	if w.w == nil {
		return fmt.Errorf("csv %s: %w", w.Path, internalerr.ErrStoreClosed)
	}
	rec := make([]string, 0, len(w.Columns)+1)
	rec = append(rec, key)
	for _, col := range w.Columns {
		rec = append(rec, value[col])
	}
	return w.w.Write(rec)
}

func (w *CSVWriter) Close() error {
	if w.w == nil {
		return nil
	}
	w.w.Flush()
	flushErr := w.w.Error()
	closeErr := w.f.Close()
	w.w, w.f = nil, nil
	return errors.Join(flushErr, closeErr)
}
