package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/prompts"
	"github.com/siga-research/siga/internal/providers"
	"go.uber.org/zap"
)

type result struct {
	data *providers.StructuredData
	err  error
}

// Runner performs one extraction with a hard upper bound on waiting time
type Runner struct {
	logger *zap.Logger
}

// NewRunner returns a Runner that logs through logger
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run calls p.Extract on its own goroutine and waits at most timeout for it.
// The adapter receives a context bound to the same deadline, but a call that
// ignores it is abandoned rather than stopped; its late result is discarded.
// Run never panics and always returns exactly one Outcome.
func (r *Runner) Run(ctx context.Context, p providers.Provider, req Request, prompt prompts.Template, timeout time.Duration) Outcome {
	start := time.Now()
	logger := r.logger.With(
		zap.String("company", req.CompanyName),
		zap.String("provider", req.ProviderID),
		zap.String("model", req.ModelName))

	if err := ctx.Err(); err != nil {
		return Failed(providers.NewProviderError(req.ProviderID, providers.ErrorKindCancelled, err), 0)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered so an abandoned call can always deliver and exit
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: eris.Errorf("adapter panic: %v", rec)}
			}
		}()
		data, err := p.Extract(callCtx, req.CompanyName, req.ModelName, prompt.UserTemplate, prompt.SystemText)
		done <- result{data: data, err: err}
	}()

	logger.Debug("extraction started", zap.Duration("timeout", timeout))

	select {
	case res := <-done:
		elapsed := time.Since(start)
		if res.err == nil && res.data == nil {
			res.err = eris.New("adapter returned no data")
		}
		if res.err != nil {
			if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				logger.Warn("extraction timed out", zap.Duration("elapsed", elapsed))
				return TimedOut(timeout.Seconds(), elapsed)
			}
			perr := providers.AsProviderError(req.ProviderID, providers.ErrorKindBackend, res.err)
			logger.Error("extraction failed", zap.String("kind", string(perr.Kind)), zap.Error(perr))
			return Failed(perr, elapsed)
		}
		logger.Info("extraction succeeded", zap.Duration("elapsed", elapsed))
		return Succeeded(res.data, elapsed)

	case <-callCtx.Done():
		elapsed := time.Since(start)
		if err := ctx.Err(); err != nil {
			logger.Warn("extraction cancelled", zap.Error(err))
			return Failed(providers.NewProviderError(req.ProviderID, providers.ErrorKindCancelled, err), elapsed)
		}
		logger.Warn("extraction timed out", zap.Duration("elapsed", elapsed))
		return TimedOut(timeout.Seconds(), elapsed)
	}
}
