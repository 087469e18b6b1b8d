package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/extraction"
	"github.com/siga-research/siga/internal/orchestrator"
	"github.com/siga-research/siga/internal/providers"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 60

// StoredRecord is the content of a per-company record file
type StoredRecord struct {
	RunID          string                    `json:"run_id"`
	RunStartedAt   string                    `json:"run_started_at"`
	Sequence       int                       `json:"seq"`
	Request        extraction.Request        `json:"request"`
	Data           *providers.StructuredData `json:"data"`
	ElapsedSeconds float64                   `json:"elapsed_seconds"`
}

// RecordWriter writes one JSON file per successful extraction under <dir>/<run_id>/
type RecordWriter struct {
	dir    string
	logger *zap.Logger
}

// NewRecordWriter returns a writer rooted at dir
func NewRecordWriter(dir string, logger *zap.Logger) *RecordWriter {
	return &RecordWriter{dir: dir, logger: logger}
}

// RunDir returns the directory holding a run's files
func (w *RecordWriter) RunDir(runID string) string {
	return filepath.Join(w.dir, runID)
}

// Report writes rec when it is a success and ignores every other outcome
func (w *RecordWriter) Report(_ context.Context, rec orchestrator.Record) error {
	if rec.Outcome.Status() != extraction.StatusSuccess {
		return nil
	}

	runDir := w.RunDir(rec.Run.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return eris.Wrap(err, "records: create run directory")
	}

	path := filepath.Join(runDir, RecordFileName(rec.Sequence, rec.Request.CompanyName))
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "records: create %s", path)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(StoredRecord{
		RunID:          rec.Run.RunID,
		RunStartedAt:   rec.Run.StartedAt.UTC().Format(time.RFC3339),
		Sequence:       rec.Sequence,
		Request:        rec.Request,
		Data:           rec.Outcome.Data(),
		ElapsedSeconds: rec.Outcome.Elapsed().Seconds(),
	}); err != nil {
		return eris.Wrapf(err, "records: encode %s", path)
	}

	w.logger.Debug("record written", zap.String("path", path))
	return nil
}

// RecordFileName returns "<NNN>-<slug>.json" for a sequence number and company
func RecordFileName(seq int, company string) string {
	return fmt.Sprintf("%03d-%s.json", seq, Slug(company))
}

// Slug folds name to lower-case ASCII letters, digits and single dashes
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(sb.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "company"
	}
	return slug
}
