// Package export writes analyzed shop records and outreach messages to CSV
// or XLSX files.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// RowSink receives output rows one at a time.
type RowSink interface {
	Write(row []string) error
	Close() error
}

// Create opens a sink for path, chosen by extension, and writes header.
// Paths ending in .xlsx get an XLSX workbook; everything else is CSV.
func Create(path string, header []string) (RowSink, error) {
	var (
		sink RowSink
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		sink, err = NewXLSXSink(path, "Shops")
	} else {
		sink, err = NewCSVSink(path)
	}
	if err != nil {
		return nil, err
	}
	if err := sink.Write(header); err != nil {
		_ = sink.Close()
		return nil, err
	}
	return sink, nil
}

// CSVSink writes rows to a CSV file, flushing after every row so an
// interrupted run keeps everything written so far.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink creates (or truncates) the file at path.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create %s", path)
	}
	return &CSVSink{f: f, w: csv.NewWriter(f)}, nil
}

func (s *CSVSink) Write(row []string) error {
	if err := s.w.Write(row); err != nil {
		return eris.Wrap(err, "export: write csv row")
	}
	s.w.Flush()
	return eris.Wrap(s.w.Error(), "export: flush csv")
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close() //nolint:errcheck
		return eris.Wrap(err, "export: flush csv")
	}
	return eris.Wrap(s.f.Close(), "export: close csv")
}

// XLSXSink buffers rows in a single-sheet workbook that is saved on Close.
type XLSXSink struct {
	path  string
	file  *xlsx.File
	sheet *xlsx.Sheet
}

// NewXLSXSink prepares a workbook with one sheet named sheetName.
func NewXLSXSink(path, sheetName string) (*XLSXSink, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", sheetName)
	}
	return &XLSXSink{path: path, file: f, sheet: sheet}, nil
}

func (s *XLSXSink) Write(row []string) error {
	r := s.sheet.AddRow()
	for _, v := range row {
		r.AddCell().SetString(v)
	}
	return nil
}

func (s *XLSXSink) Close() error {
	return eris.Wrapf(s.file.Save(s.path), "export: save %s", s.path)
}
