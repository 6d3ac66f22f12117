package target

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimited throttles invocations to a per-minute budget so raising
// max_concurrent cannot overrun a production target.
type rateLimited struct {
	inner   Client
	limiter *rate.Limiter
}

func newRateLimited(inner Client, rpm int) *rateLimited {
	burst := rpm / 6
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
	}
}

func (r *rateLimited) Name() string { return r.inner.Name() }

func (r *rateLimited) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", wrapInvokeErr(ctx, err)
	}
	return r.inner.Invoke(ctx, prompt)
}
