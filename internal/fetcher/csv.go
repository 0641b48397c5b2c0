// Package fetcher reads tabular input from CSV and XLSX sources.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads CSV rows and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
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
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV drains StreamCSV into memory.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}
