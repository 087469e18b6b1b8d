package companies

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

var headerNames = map[string]bool{
	"company":      true,
	"company name": true,
	"company_name": true,
	"name":         true,
}

// row is the parquet schema for company lists
type row struct {
	Name string `parquet:"name"`
}

// Loader reads company names from a file
type Loader struct {
	path   string
	logger *zap.Logger
}

// NewLoader creates a new company list loader
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Load returns the trimmed, non-blank company names in file order
func (l *Loader) Load() ([]string, error) {
	ext := strings.ToLower(filepath.Ext(l.path))

	var (
		names []string
		err   error
	)
	switch ext {
	case ".csv":
		names, err = l.loadCSV()
	case ".xlsx":
		names, err = l.loadXLSX()
	case ".parquet":
		names, err = l.loadParquet()
	case ".jsonl", ".txt":
		names, err = l.loadLines()
	default:
		return nil, eris.Errorf("unsupported company file format: %q (supported: .csv, .xlsx, .parquet, .jsonl, .txt)", ext)
	}
	if err != nil {
		return nil, err
	}

	names = clean(names)
	l.logger.Debug("company list loaded", zap.String("path", l.path), zap.Int("companies", len(names)))
	return names, nil
}

func (l *Loader) loadCSV() ([]string, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open company file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var column []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "failed to read CSV")
		}
		if len(record) == 0 {
			continue
		}
		column = append(column, record[0])
	}
	return dropHeader(column), nil
}

func (l *Loader) loadXLSX() ([]string, error) {
	f, err := xlsx.OpenFile(l.path)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open xlsx file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx file %s has no sheets", l.path)
	}

	sheet := f.Sheets[0]
	column := make([]string, 0, len(sheet.Rows))
	for _, r := range sheet.Rows {
		if r == nil || len(r.Cells) == 0 {
			continue
		}
		column = append(column, r.Cells[0].String())
	}
	return dropHeader(column), nil
}

func (l *Loader) loadParquet() ([]string, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open parquet file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, eris.Wrap(err, "failed to stat file")
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, eris.Wrap(err, "failed to open parquet")
	}
	l.logger.Debug("parquet file opened", zap.Int64("num_rows", pf.NumRows()), zap.Int("num_row_groups", len(pf.RowGroups())))

	reader := parquet.NewGenericReader[row](pf)
	defer reader.Close()

	var names []string
	rows := make([]row, 128)
	for {
		n, err := reader.Read(rows)
		for _, r := range rows[:n] {
			names = append(names, r.Name)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "failed to read parquet rows")
		}
	}
	return names, nil
}

func (l *Loader) loadLines() ([]string, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open company file")
	}
	defer file.Close()

	jsonl := strings.EqualFold(filepath.Ext(l.path), ".jsonl")
	var names []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !jsonl {
			names = append(names, line)
			continue
		}

		name, err := parseJSONLine(line)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse JSON at line %d", lineNum)
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "error reading company file")
	}
	return names, nil
}

func parseJSONLine(line string) (string, error) {
	if strings.HasPrefix(line, "\"") {
		var name string
		err := json.Unmarshal([]byte(line), &name)
		return name, err
	}
	var obj struct {
		Name string `json:"name"`
	}
	err := json.Unmarshal([]byte(line), &obj)
	return obj.Name, err
}

func dropHeader(column []string) []string {
	if len(column) > 0 && headerNames[strings.ToLower(strings.TrimSpace(column[0]))] {
		return column[1:]
	}
	return column
}

func clean(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
