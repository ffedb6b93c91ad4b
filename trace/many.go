package trace

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nettrace-go/nettrace/result"
)

// RunMany runs n independent trace attempts against target concurrently
// and returns every attempt's result in launch order. Each slot holds
// whatever Trace its Run returned (nil when the target did not resolve);
// the returned error is the first non-nil attempt error in launch order.
// A failed attempt does not cancel the others.
func RunMany(ctx context.Context, target string, opts Options, n int) ([]*result.Trace, error) {
	traces := make([]*result.Trace, n)
	errs := make([]error, n)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			t, err := Run(gctx, target, opts)
			traces[idx] = t
			errs[idx] = err
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return traces, err
		}
	}
	return traces, nil
}
