package researchcmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/companies"
	"github.com/siga-research/siga/internal/extraction"
	"github.com/siga-research/siga/internal/orchestrator"
	"github.com/siga-research/siga/internal/prompts"
	"github.com/siga-research/siga/internal/registry"
	"github.com/siga-research/siga/internal/report"
	"github.com/siga-research/siga/internal/storage"
	"go.uber.org/zap"
)

// ResearchOptions are the inputs of one research invocation
type ResearchOptions struct {
	Provider      string
	Model         string
	PromptVersion string
	Timeout       int
	Company       string
	CompaniesFile string
	OutputDir     string
	NoLedger      bool
}

func executeResearch(ctx context.Context, env *Env, opts ResearchOptions) (*report.Summary, error) {
	if err := env.ready(); err != nil {
		return nil, err
	}
	cfg := env.Config
	logger := env.Logger

	names, err := loadCompanies(env, opts)
	if err != nil {
		return nil, err
	}

	set, err := prompts.Load(cfg.Research.PromptsFile)
	if err != nil {
		return nil, err
	}
	version := opts.PromptVersion
	if version == "" {
		version = cfg.Research.DefaultPromptVersion
	}
	prompt, err := set.Resolve(version)
	if err != nil {
		return nil, err
	}

	if opts.Timeout < 0 {
		return nil, eris.Errorf("--timeout must be a positive number of seconds, got %d", opts.Timeout)
	}
	if opts.Timeout > 0 {
		cfg = cfg.WithTimeout(opts.Timeout)
	}
	timeout := cfg.Timeout()

	provider, err := registry.New(opts.Provider, cfg, logger)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = provider.PreferredModel()
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = cfg.Research.OutputDir
	}

	var reporters []orchestrator.Reporter
	if !opts.NoLedger {
		db, err := storage.NewDatabase(cfg.Storage.LedgerPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		reporters = append(reporters, storage.NewLedger(db, logger))
	}
	reporters = append(reporters,
		report.NewXLSXReporter(filepath.Join(outputDir, "report.xlsx"), logger),
		report.NewRecordWriter(outputDir, logger),
	)

	run := orchestrator.NewRunContext()
	logger.Info("starting research run",
		zap.String("run_id", run.RunID),
		zap.String("provider", provider.ID()),
		zap.String("model", model),
		zap.String("prompt_version", prompt.Version),
		zap.Duration("timeout", timeout),
		zap.Int("companies", len(names)))

	batch := orchestrator.Batch{Provider: provider, Model: model, Prompt: prompt, Timeout: timeout}
	orch := orchestrator.New(extraction.NewRunner(logger), logger, reporters...)
	records := orch.ProcessBatch(ctx, run, names, batch)

	summary := report.Summarize(run, batch, records, time.Now())
	path, err := report.SaveSummaryYAML(outputDir, summary)
	if err != nil {
		logger.Error("failed to save summary", zap.Error(err))
	} else {
		logger.Info("summary saved", zap.String("path", path))
	}
	report.PrintSummary(env.Out, summary)
	fmt.Fprintf(env.Out, "\nResults saved to: %s\n", outputDir)

	if err := ctx.Err(); err != nil {
		return &summary, eris.Wrap(err, "research interrupted")
	}
	return &summary, nil
}

func loadCompanies(env *Env, opts ResearchOptions) ([]string, error) {
	switch {
	case opts.Company != "" && opts.CompaniesFile != "":
		return nil, eris.New("use either --company or --companies, not both")
	case opts.Company != "":
		return []string{opts.Company}, nil
	case opts.CompaniesFile != "":
		return companies.NewLoader(opts.CompaniesFile, env.Logger).Load()
	}
	return nil, eris.New("one of --company or --companies is required")
}
