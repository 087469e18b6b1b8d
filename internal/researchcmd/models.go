package researchcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/siga-research/siga/internal/providers"
	"github.com/siga-research/siga/internal/registry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type providerModels struct {
	ID        string
	Preferred string
	Models    []string
}

func listModels(ctx context.Context, env *Env, providerID string) ([]providerModels, error) {
	if err := env.ready(); err != nil {
		return nil, err
	}

	if providerID != "" {
		p, err := registry.New(providerID, env.Config, env.Logger)
		if err != nil {
			return nil, err
		}
		return []providerModels{{ID: p.ID(), Preferred: p.PreferredModel(), Models: p.ListAvailableModels(ctx)}}, nil
	}

	ids := registry.IDs()
	results := make([]*providerModels, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		p, err := registry.New(id, env.Config, env.Logger)
		if err != nil {
			var cfgErr *providers.ConfigurationError
			if errors.As(err, &cfgErr) {
				env.Logger.Debug("skipping unconfigured provider", zap.String("provider", id), zap.Error(err))
				continue
			}
			return nil, err
		}
		g.Go(func() error {
			results[i] = &providerModels{ID: p.ID(), Preferred: p.PreferredModel(), Models: p.ListAvailableModels(gctx)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]providerModels, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func printModels(env *Env, all []providerModels) {
	if len(all) == 0 {
		fmt.Fprintln(env.Out, "No providers are configured.")
		return
	}
	for _, pm := range all {
		fmt.Fprintf(env.Out, "%s (preferred: %s)\n", pm.ID, pm.Preferred)
		if len(pm.Models) == 0 {
			fmt.Fprintln(env.Out, "  no models available")
			continue
		}
		for _, m := range pm.Models {
			marker := " "
			if m == pm.Preferred {
				marker = "*"
			}
			fmt.Fprintf(env.Out, "  %s %s\n", marker, m)
		}
	}
}
