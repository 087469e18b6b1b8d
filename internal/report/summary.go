package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/extraction"
	"github.com/siga-research/siga/internal/orchestrator"
	"gopkg.in/yaml.v3"
)

// Summary describes a finished run
type Summary struct {
	RunID         string           `yaml:"run_id"`
	StartedAt     string           `yaml:"started_at"`
	FinishedAt    string           `yaml:"finished_at"`
	Provider      string           `yaml:"provider"`
	Model         string           `yaml:"model"`
	PromptVersion string           `yaml:"prompt_version"`
	Total         int              `yaml:"total"`
	Succeeded     int              `yaml:"succeeded"`
	Failed        int              `yaml:"provider_errors"`
	TimedOut      int              `yaml:"timeouts"`
	Companies     []SummaryCompany `yaml:"companies"`
}

// SummaryCompany is one line of the summary
type SummaryCompany struct {
	Sequence       int     `yaml:"seq"`
	Company        string  `yaml:"company"`
	Status         string  `yaml:"status"`
	Message        string  `yaml:"message,omitempty"`
	Subsidiaries   int     `yaml:"subsidiaries,omitempty"`
	ElapsedSeconds float64 `yaml:"elapsed_seconds"`
}

// Summarize counts the outcomes of a run
func Summarize(run orchestrator.RunContext, b orchestrator.Batch, records []orchestrator.Record, finished time.Time) Summary {
	s := Summary{
		RunID:         run.RunID,
		StartedAt:     run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:    finished.UTC().Format(time.RFC3339),
		Model:         b.Model,
		PromptVersion: b.Prompt.Version,
		Total:         len(records),
		Companies:     make([]SummaryCompany, 0, len(records)),
	}
	if b.Provider != nil {
		s.Provider = b.Provider.ID()
	}

	for _, rec := range records {
		c := SummaryCompany{
			Sequence:       rec.Sequence,
			Company:        rec.Request.CompanyName,
			Status:         string(rec.Outcome.Status()),
			Message:        rec.Outcome.Message(),
			ElapsedSeconds: rec.Outcome.Elapsed().Seconds(),
		}
		switch rec.Outcome.Status() {
		case extraction.StatusSuccess:
			s.Succeeded++
			c.Subsidiaries = len(rec.Outcome.Data().Subsidiaries)
		case extraction.StatusProviderError:
			s.Failed++
		case extraction.StatusTimeout:
			s.TimedOut++
		}
		s.Companies = append(s.Companies, c)
	}
	return s
}

// SaveSummaryYAML writes s to <dir>/<run_id>/summary.yaml and returns the path
func SaveSummaryYAML(dir string, s Summary) (string, error) {
	runDir := filepath.Join(dir, s.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", eris.Wrap(err, "summary: create run directory")
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return "", eris.Wrap(err, "summary: marshal")
	}

	path := filepath.Join(runDir, "summary.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "summary: write %s", path)
	}
	return path, nil
}

// PrintSummary writes a human readable run summary to w
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "\n========================================")
	fmt.Fprintln(w, "Company Research Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Run ID:          %s\n", s.RunID)
	fmt.Fprintf(w, "Provider:        %s\n", s.Provider)
	fmt.Fprintf(w, "Model:           %s\n", s.Model)
	fmt.Fprintf(w, "Prompt version:  %s\n", s.PromptVersion)
	fmt.Fprintf(w, "Companies:       %d\n", s.Total)
	fmt.Fprintf(w, "Succeeded:       %d\n", s.Succeeded)
	fmt.Fprintf(w, "Provider errors: %d\n", s.Failed)
	fmt.Fprintf(w, "Timeouts:        %d\n", s.TimedOut)

	if s.Failed+s.TimedOut > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, c := range s.Companies {
			if c.Status != string(extraction.StatusSuccess) {
				fmt.Fprintf(w, "  [%d] %s: %s\n", c.Sequence, c.Company, c.Message)
			}
		}
	}
	fmt.Fprintln(w, "========================================")
}
