package researchcmd

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/prompts"
	"github.com/siga-research/siga/internal/registry"
	"github.com/siga-research/siga/internal/report"
	"github.com/siga-research/siga/internal/storage"
	"github.com/spf13/cobra"
)

// NewResearchCmd creates the research command that runs a batch of companies through one provider
func NewResearchCmd(env *Env) *cobra.Command {
	var opts ResearchOptions

	cmd := &cobra.Command{
		Use:   "research",
		Short: "Extract subsidiaries, financial info and news for a list of companies",
		Long: `Research one company or a list of companies with a single LLM provider.

Companies are processed one at a time. Each company gets exactly one attempt bounded by
the timeout; failures and timeouts are recorded and the batch continues. Every outcome is
stored in the ledger and appended to <output>/report.xlsx, and every success is written to
<output>/<run_id>/<seq>-<company>.json.`,
		Example: `  # Research a single company with OpenAI
  siga research --provider openai --company "Acme Corp"

  # Research a CSV list with a local Ollama model and a 120s timeout
  siga research --provider ollama --model llama3 --companies companies.csv --timeout 120

  # Use a different prompt version
  siga research --provider google_ai --companies list.xlsx --prompt-version subsidiary_research_brief_v1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("timeout") && opts.Timeout <= 0 {
				return eris.Errorf("--timeout must be a positive number of seconds, got %d", opts.Timeout)
			}
			_, err := executeResearch(cmd.Context(), env, opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Provider, "provider", "", "LLM provider ("+strings.Join(registry.IDs(), ", ")+")")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model name (defaults to the provider's preferred model)")
	cmd.Flags().StringVar(&opts.PromptVersion, "prompt-version", "", "Prompt template version (defaults to DEFAULT_PROMPT_VERSION)")
	cmd.Flags().IntVar(&opts.Timeout, "timeout", 0, "Per-company timeout in seconds (defaults to COMPANY_RESEARCH_TIMEOUT_SECONDS)")
	cmd.Flags().StringVar(&opts.Company, "company", "", "A single company name")
	cmd.Flags().StringVar(&opts.CompaniesFile, "companies", "", "File with company names (.csv, .xlsx, .parquet, .jsonl, .txt)")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "", "Output directory (defaults to OUTPUT_DIR)")
	cmd.Flags().BoolVar(&opts.NoLedger, "no-ledger", false, "Do not record outcomes in the SQLite ledger")

	_ = cmd.MarkFlagRequired("provider")
	cmd.MarkFlagsMutuallyExclusive("company", "companies")
	return cmd
}

// NewModelsCmd creates the models command that lists what each provider offers
func NewModelsCmd(env *Env) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available models per provider",
		Long: `List the models each configured provider reports. Without --provider every provider
whose required settings are present is queried concurrently. The preferred model is marked with *.`,
		Example: `  siga models
  siga models --provider ollama`,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := listModels(cmd.Context(), env, provider)
			if err != nil {
				return err
			}
			printModels(env, all)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Only list models for this provider")
	return cmd
}

// NewPromptsCmd creates the prompts command that lists prompt template versions
func NewPromptsCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List prompt template versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.ready(); err != nil {
				return err
			}
			set, err := prompts.Load(env.Config.Research.PromptsFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(env.Out, "Templates from %s:\n", set.Source())
			for _, v := range set.Versions() {
				tpl, _ := set.Resolve(v)
				marker := " "
				if v == env.Config.Research.DefaultPromptVersion {
					marker = "*"
				}
				fmt.Fprintf(env.Out, "  %s %s: %s\n", marker, v, tpl.Description)
			}
			return nil
		},
	}
}

// NewRunsCmd creates the runs command that lists recorded runs
func NewRunsCmd(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded research runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.ready(); err != nil {
				return err
			}
			db, err := storage.NewDatabase(env.Config.Storage.LedgerPath)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := storage.NewLedger(db, env.Logger).Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(env.Out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSTARTED\tPROVIDER\tMODEL\tSUCCEEDED\tTOTAL")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", r.RunID, r.StartedAt, r.Provider, r.Model, r.Succeeded, r.Total)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

// NewReportCmd creates the report command that prints one run from the ledger
func NewReportCmd(env *Env) *cobra.Command {
	var runID string
	var format string

	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Print the outcomes of a recorded run",
		Example: `  siga report --run 3f1c... --format csv > run.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.ready(); err != nil {
				return err
			}
			if !slices.Contains(report.Formats, format) {
				return eris.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(report.Formats, ", "))
			}

			db, err := storage.NewDatabase(env.Config.Storage.LedgerPath)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := storage.NewLedger(db, env.Logger).Entries(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return eris.Errorf("no outcomes recorded for run %s", runID)
			}
			return report.WriteRunReport(env.Out, format, entries)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run ID (see siga runs)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format ("+strings.Join(report.Formats, ", ")+")")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}
