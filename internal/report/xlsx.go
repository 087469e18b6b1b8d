package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/orchestrator"
	"github.com/siga-research/siga/internal/providers"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// SheetName is the worksheet rows are appended to
const SheetName = "Results"

// Header is the first row of a new report sheet
var Header = []string{
	"Run ID", "Seq", "Company", "Provider", "Model", "Prompt Version", "Status",
	"Message", "Subsidiaries", "Financial Info", "News", "Elapsed Seconds", "Run Started",
}

// XLSXReporter appends one row per outcome to a workbook, creating it on first use
type XLSXReporter struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewXLSXReporter returns a reporter writing to path
func NewXLSXReporter(path string, logger *zap.Logger) *XLSXReporter {
	return &XLSXReporter{path: path, logger: logger}
}

// Path returns the workbook location
func (r *XLSXReporter) Path() string {
	return r.path
}

// Report appends rec to the workbook and saves it
func (r *XLSXReporter) Report(_ context.Context, rec orchestrator.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.open()
	if err != nil {
		return err
	}

	sheet, ok := f.Sheet[SheetName]
	if !ok {
		sheet, err = f.AddSheet(SheetName)
		if err != nil {
			return eris.Wrap(err, "xlsx: add sheet")
		}
		addStringRow(sheet, Header)
	}

	row := sheet.AddRow()
	row.AddCell().SetString(rec.Run.RunID)
	row.AddCell().SetInt(rec.Sequence)
	for _, v := range []string{
		rec.Request.CompanyName,
		rec.Request.ProviderID,
		rec.Request.ModelName,
		rec.Request.PromptVersion,
		string(rec.Outcome.Status()),
		rec.Outcome.Message(),
		formatSubsidiaries(rec.Outcome.Data()),
		formatFinancials(rec.Outcome.Data()),
		formatNews(rec.Outcome.Data()),
	} {
		row.AddCell().SetString(v)
	}
	row.AddCell().SetFloat(rec.Outcome.Elapsed().Seconds())
	row.AddCell().SetString(rec.Run.StartedAt.UTC().Format("2006-01-02 15:04:05"))

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return eris.Wrap(err, "xlsx: create output directory")
	}
	if err := f.Save(r.path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", r.path)
	}
	r.logger.Debug("report row appended", zap.String("path", r.path), zap.String("company", rec.Request.CompanyName))
	return nil
}

func (r *XLSXReporter) open() (*xlsx.File, error) {
	_, err := os.Stat(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return xlsx.NewFile(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: stat %s", r.path)
	}
	f, err := xlsx.OpenFile(r.path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", r.path)
	}
	return f, nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func formatSubsidiaries(data *providers.StructuredData) string {
	if data == nil {
		return ""
	}
	parts := make([]string, 0, len(data.Subsidiaries))
	for _, s := range data.Subsidiaries {
		if s.Location != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", s.Name, s.Location))
		} else {
			parts = append(parts, s.Name)
		}
	}
	return strings.Join(parts, "; ")
}

func formatFinancials(data *providers.StructuredData) string {
	if data == nil {
		return ""
	}
	parts := make([]string, 0, len(data.FinancialInfo))
	for _, f := range data.FinancialInfo {
		p := f.Metric + ": " + f.Value
		if f.AsOfDate != "" {
			p += " (" + f.AsOfDate + ")"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "; ")
}

func formatNews(data *providers.StructuredData) string {
	if data == nil {
		return ""
	}
	parts := make([]string, 0, len(data.NewsInfo))
	for _, n := range data.NewsInfo {
		if n.Date != "" {
			parts = append(parts, n.Date+" "+n.Headline)
		} else {
			parts = append(parts, n.Headline)
		}
	}
	return strings.Join(parts, "; ")
}
