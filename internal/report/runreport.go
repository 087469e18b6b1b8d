package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/providers"
	"github.com/siga-research/siga/internal/storage"
)

// Formats accepted by WriteRunReport
var Formats = []string{"text", "json", "csv"}

type jsonEntry struct {
	Seq            int             `json:"seq"`
	Company        string          `json:"company"`
	Provider       string          `json:"provider"`
	Model          string          `json:"model"`
	PromptVersion  string          `json:"prompt_version"`
	Status         string          `json:"status"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	Message        string          `json:"message,omitempty"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	Data           json.RawMessage `json:"data,omitempty"`
}

type jsonReport struct {
	RunID     string      `json:"run_id"`
	StartedAt string      `json:"started_at"`
	Entries   []jsonEntry `json:"entries"`
}

// WriteRunReport renders the stored outcomes of one run
func WriteRunReport(w io.Writer, format string, entries []storage.Entry) error {
	if len(entries) == 0 {
		return eris.New("run has no recorded outcomes")
	}

	switch format {
	case "text":
		return writeTextReport(w, entries)
	case "json":
		return writeJSONReport(w, entries)
	case "csv":
		return writeCSVReport(w, entries)
	default:
		return eris.Errorf("unsupported format: %s", format)
	}
}

func writeTextReport(w io.Writer, entries []storage.Entry) error {
	first := entries[0]
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Company Research Report")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Run ID:   %s\n", first.RunID)
	fmt.Fprintf(w, "Started:  %s\n", first.RunStartedAt)
	fmt.Fprintf(w, "Provider: %s\n", first.Provider)
	fmt.Fprintf(w, "Model:    %s\n", first.Model)

	for _, e := range entries {
		fmt.Fprintf(w, "\n[%d] %s (%s, %.1fs)\n", e.Sequence, e.Company, e.Status, e.ElapsedSeconds)
		if e.Payload == nil {
			fmt.Fprintf(w, "  Error: %s\n", e.Message)
			continue
		}

		data, err := providers.ParseStructuredData(*e.Payload)
		if err != nil {
			fmt.Fprintf(w, "  Stored payload unreadable: %v\n", err)
			continue
		}
		fmt.Fprintf(w, "  Subsidiaries (%d):\n", len(data.Subsidiaries))
		for _, s := range data.Subsidiaries {
			fmt.Fprintf(w, "    - %s %s\n", s.Name, parenthesize(s.Location))
		}
		fmt.Fprintf(w, "  Financial info (%d):\n", len(data.FinancialInfo))
		for _, f := range data.FinancialInfo {
			fmt.Fprintf(w, "    - %s: %s %s\n", f.Metric, f.Value, parenthesize(f.AsOfDate))
		}
		fmt.Fprintf(w, "  News (%d):\n", len(data.NewsInfo))
		for _, n := range data.NewsInfo {
			fmt.Fprintf(w, "    - %s %s\n", providers.Truncate(n.Headline, 80), parenthesize(n.Date))
		}
	}
	return nil
}

func writeJSONReport(w io.Writer, entries []storage.Entry) error {
	out := jsonReport{
		RunID:     entries[0].RunID,
		StartedAt: entries[0].RunStartedAt,
		Entries:   make([]jsonEntry, 0, len(entries)),
	}
	for _, e := range entries {
		je := jsonEntry{
			Seq:            e.Sequence,
			Company:        e.Company,
			Provider:       e.Provider,
			Model:          e.Model,
			PromptVersion:  e.PromptVersion,
			Status:         e.Status,
			ErrorKind:      e.ErrorKind,
			Message:        e.Message,
			ElapsedSeconds: e.ElapsedSeconds,
		}
		if e.Payload != nil && json.Valid([]byte(*e.Payload)) {
			je.Data = json.RawMessage(*e.Payload)
		}
		out.Entries = append(out.Entries, je)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func writeCSVReport(w io.Writer, entries []storage.Entry) error {
	writer := csv.NewWriter(w)

	header := []string{"Seq", "Company", "Provider", "Model", "Prompt Version", "Status", "Error Kind", "Message", "Elapsed Seconds", "Subsidiaries"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, e := range entries {
		subsidiaries := ""
		if e.Payload != nil {
			if data, err := providers.ParseStructuredData(*e.Payload); err == nil {
				subsidiaries = formatSubsidiaries(data)
			}
		}
		row := []string{
			strconv.Itoa(e.Sequence),
			e.Company,
			e.Provider,
			e.Model,
			e.PromptVersion,
			e.Status,
			e.ErrorKind,
			e.Message,
			strconv.FormatFloat(e.ElapsedSeconds, 'f', 3, 64),
			subsidiaries,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func parenthesize(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
