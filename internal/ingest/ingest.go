// Package ingest turns workbook sections into pre-dedup shop entries.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shopscan/internal/fetcher"
	"github.com/sells-group/shopscan/internal/model"
)

type column int

const (
	colSourceID column = iota
	colAccountName
	colBillingCity
	colBillingZip
	colPhone
)

// columnAliases maps folded header text to a column. Headers are folded by
// lowercasing and dropping spaces, so "Billing City" and "BillingCity" agree.
var columnAliases = map[string]column{
	"shopid":                colSourceID,
	"accountname":           colAccountName,
	"name":                  colAccountName,
	"billingcity":           colBillingCity,
	"city":                  colBillingCity,
	"billingzip/postalcode": colBillingZip,
	"billingzip":            colBillingZip,
	"billingpostalcode":     colBillingZip,
	"zip":                   colBillingZip,
	"zipcode":               colBillingZip,
	"phone":                 colPhone,
	"billingphone":          colPhone,
}

// Result is the outcome of ingesting one input file.
type Result struct {
	Entries  []model.ShopEntry
	Sections []string // sections actually read, in order
	Skipped  int      // rows dropped for missing identity
}

// LoadFile reads an .xlsx workbook (the named sheets, in order) or a single
// .csv file (one section named after the file). A missing file, or a
// workbook containing none of the sheets, is an error.
func LoadFile(ctx context.Context, path string, sheets []string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "ingest: input %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(ctx, path)
	case ".xlsx":
		return loadXLSX(path, sheets)
	default:
		return nil, eris.Errorf("ingest: unsupported input type %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}

func loadXLSX(path string, names []string) (*Result, error) {
	sheets, missing, err := fetcher.ReadXLSXSheets(path, names)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read workbook")
	}
	for _, name := range missing {
		zap.L().Warn("ingest: sheet not in workbook, skipping", zap.String("section", name))
	}
	if len(sheets) == 0 {
		return nil, eris.Errorf("ingest: workbook %s has none of the sheets %q", path, names)
	}

	res := &Result{}
	for _, sheet := range sheets {
		res.add(sheet.Name, sheet.Rows)
	}
	return res, nil
}

func loadCSV(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}
	defer f.Close() //nolint:errcheck

	rows, err := fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{LazyQuotes: true, TrimSpace: true})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv")
	}

	section := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res := &Result{}
	res.add(section, rows)
	if len(res.Sections) == 0 {
		return nil, eris.Errorf("ingest: %s has no account name column", path)
	}
	return res, nil
}

func (r *Result) add(section string, rows [][]string) {
	entries, skipped, ok := ParseSection(section, rows)
	if !ok {
		return
	}
	r.Sections = append(r.Sections, section)
	r.Entries = append(r.Entries, entries...)
	r.Skipped += skipped
}

// ParseSection maps raw rows (header first) to entries. Rows without an
// account name are dropped with a warning; blank rows are dropped silently.
// ok is false when the header has no account-name column.
func ParseSection(section string, rows [][]string) (entries []model.ShopEntry, skipped int, ok bool) {
	log := zap.L().With(zap.String("section", section))
	if len(rows) == 0 {
		log.Warn("ingest: empty section")
		return nil, 0, false
	}

	idx := headerIndex(rows[0])
	if _, found := idx[colAccountName]; !found {
		log.Warn("ingest: no account name column, skipping section", zap.Strings("header", rows[0]))
		return nil, 0, false
	}

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		if blank(row) {
			continue
		}

		entry := model.ShopEntry{
			Section:     section,
			Row:         rowNum,
			SourceID:    cell(row, idx, colSourceID),
			AccountName: cell(row, idx, colAccountName),
			BillingCity: cell(row, idx, colBillingCity),
			BillingZip:  NormalizeZip(cell(row, idx, colBillingZip)),
			Phone:       cell(row, idx, colPhone),
		}
		if entry.AccountName == "" {
			skipped++
			log.Warn("ingest: row has no account name, skipping",
				zap.Int("row", rowNum),
				zap.String("source_id", entry.SourceID),
			)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, skipped, true
}

func headerIndex(header []string) map[column]int {
	idx := make(map[column]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.Join(strings.Fields(h), ""))
		col, known := columnAliases[key]
		if !known {
			continue
		}
		if _, dup := idx[col]; !dup {
			idx[col] = i
		}
	}
	return idx
}

func cell(row []string, idx map[column]int, col column) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// NormalizeZip restores US zip codes mangled by numeric spreadsheet cells
// ("2109" → "02109", "2109.0" → "02109") and trims ZIP+4 to five digits.
// Non-numeric postal codes are returned trimmed and uppercased.
func NormalizeZip(raw string) string {
	z := strings.TrimSpace(raw)
	z = strings.TrimSuffix(z, ".0")
	if i := strings.IndexByte(z, '-'); i > 0 {
		z = z[:i]
	}
	if z == "" {
		return ""
	}
	for _, r := range z {
		if r < '0' || r > '9' {
			return strings.ToUpper(strings.TrimSpace(raw))
		}
	}
	switch {
	case len(z) < 5:
		return strings.Repeat("0", 5-len(z)) + z
	case len(z) == 9:
		return z[:5]
	default:
		return z
	}
}
