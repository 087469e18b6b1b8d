package providers

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type throttled struct {
	Provider
	limiter *rate.Limiter
}

// Throttle limits Extract calls on p to perMinute requests per minute.
// A non-positive rate returns p unchanged.
func Throttle(p Provider, perMinute int) Provider {
	if perMinute <= 0 {
		return p
	}
	return &throttled{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (t *throttled) Extract(ctx context.Context, companyName, modelName, userTemplate, systemText string) (*StructuredData, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, NewProviderError(t.ID(), ErrorKindCancelled, err)
	}
	return t.Provider.Extract(ctx, companyName, modelName, userTemplate, systemText)
}
