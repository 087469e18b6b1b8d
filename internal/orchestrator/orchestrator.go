// Package orchestrator runs a list of companies through the bounded runner one
// at a time and hands every outcome to the reporting collaborators.
package orchestrator

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/siga-research/siga/internal/extraction"
	"github.com/siga-research/siga/internal/prompts"
	"github.com/siga-research/siga/internal/providers"
	"go.uber.org/zap"
)

// MaxCompanyNameLength is the longest accepted company name, in runes
const MaxCompanyNameLength = 512

// RunContext is shared by every outcome of one invocation
type RunContext struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}

// NewRunContext returns a context with a fresh run id
func NewRunContext() RunContext {
	return RunContext{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
}

// Record is one company's outcome together with its request and run
type Record struct {
	Run      RunContext
	Sequence int
	Request  extraction.Request
	Outcome  extraction.Outcome
}

// Reporter receives each Record as soon as it is final
type Reporter interface {
	Report(ctx context.Context, rec Record) error
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, rec Record) error

func (f ReporterFunc) Report(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Batch describes what every company in a run is extracted with
type Batch struct {
	Provider providers.Provider
	Model    string
	Prompt   prompts.Template
	Timeout  time.Duration
}

// Orchestrator processes batches sequentially
type Orchestrator struct {
	runner    *extraction.Runner
	reporters []Reporter
	logger    *zap.Logger
}

// New returns an Orchestrator. Reporters are called in the given order.
func New(runner *extraction.Runner, logger *zap.Logger, reporters ...Reporter) *Orchestrator {
	return &Orchestrator{runner: runner, reporters: reporters, logger: logger}
}

// ProcessBatch extracts every valid company name in input order, one at a
// time, and returns one Record per valid name. Invalid names are logged and
// skipped. Per-company failures never stop the batch. When ctx is cancelled
// the remaining companies are recorded as cancelled without calling the
// provider.
func (o *Orchestrator) ProcessBatch(ctx context.Context, run RunContext, companies []string, b Batch) []Record {
	providerID := b.Provider.ID()
	logger := o.logger.With(zap.String("run_id", run.RunID), zap.String("provider", providerID), zap.String("model", b.Model))
	logger.Info("batch started", zap.Int("companies", len(companies)), zap.String("prompt_version", b.Prompt.Version))

	records := make([]Record, 0, len(companies))
	for i, raw := range companies {
		name, ok := ValidCompanyName(raw)
		if !ok {
			logger.Warn("skipping invalid company name", zap.Int("position", i+1), zap.String("value", providers.Truncate(raw, 80)))
			continue
		}

		req := extraction.Request{
			CompanyName:   name,
			ProviderID:    providerID,
			ModelName:     b.Model,
			PromptVersion: b.Prompt.Version,
		}
		logger.Info("processing company", zap.String("company", name), zap.Int("sequence", len(records)+1))

		var outcome extraction.Outcome
		if err := ctx.Err(); err != nil {
			outcome = extraction.Failed(providers.NewProviderError(providerID, providers.ErrorKindCancelled, err), 0)
		} else {
			outcome = o.runner.Run(ctx, b.Provider, req, b.Prompt, b.Timeout)
		}

		rec := Record{Run: run, Sequence: len(records) + 1, Request: req, Outcome: outcome}
		records = append(records, rec)
		o.report(ctx, logger, rec)
	}

	logger.Info("batch finished", zap.Int("recorded", len(records)))
	return records
}

func (o *Orchestrator) report(ctx context.Context, logger *zap.Logger, rec Record) {
	// reporters still run after cancellation so every outcome is persisted
	ctx = context.WithoutCancel(ctx)
	for _, r := range o.reporters {
		if err := r.Report(ctx, rec); err != nil {
			logger.Error("reporter failed",
				zap.String("company", rec.Request.CompanyName),
				zap.String("status", string(rec.Outcome.Status())),
				zap.Error(err))
		}
	}
}

// ValidCompanyName trims name and reports whether it can be sent to a provider
func ValidCompanyName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || !utf8.ValidString(name) || utf8.RuneCountInString(name) > MaxCompanyNameLength {
		return "", false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", false
		}
	}
	return name, true
}
