// Package leadfile reads lead exports and step-output files (CSV with a
// header row, or a JSON array of objects) into column-keyed records.
package leadfile

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const bom = "\uFEFF"

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// StreamCSV reads a CSV with a header row and sends each data row keyed by
// header name. Fields are trimmed and blank rows skipped. Both channels are
// closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan map[string]string, <-chan error) {
	rowCh := make(chan map[string]string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow ragged rows

		var header []string
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "leadfile: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "leadfile: read csv row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			if header == nil {
				record[0] = strings.TrimPrefix(record[0], bom)
				header = record
				continue
			}
			if blank(record) {
				continue
			}

			row := make(map[string]string, len(header))
			for i, col := range header {
				if col == "" || i >= len(record) {
					continue
				}
				row[col] = record[i]
			}

			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "leadfile: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV collects every row of a CSV.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]map[string]string, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)
	var rows []map[string]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return rows, err
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}
