// Package rates holds the process-wide exchange rate table.
package rates

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bike-order-form/internal/domain/order"
	"github.com/xenking/bike-order-form/internal/domain/rate"
)

var _ order.RateSource = (*Loader)(nil)

// Loader fetches the rate table exactly once and publishes it to readers.
// A failed fetch is logged and swallowed: the table stays empty and
// conversions fall back to a 1:1 scale.
type Loader struct {
	provider rate.Provider

	once      sync.Once
	done      chan struct{}
	table     atomic.Pointer[rate.Table]
	available atomic.Bool
	err       atomic.Pointer[error]
}

// NewLoader returns a Loader that will fetch from provider.
func NewLoader(provider rate.Provider) *Loader {
	return &Loader{
		provider: provider,
		done:     make(chan struct{}),
	}
}

// Start runs Load in the background.
func (l *Loader) Start(ctx context.Context) {
	go l.Load(ctx)
}

// Load fetches the table on the first call and blocks until that fetch has
// finished. Later calls only wait for the first one.
func (l *Loader) Load(ctx context.Context) {
	l.once.Do(func() {
		defer close(l.done)
		lg := zctx.From(ctx)
		start := time.Now()

		tbl, err := l.provider.Fetch(ctx)
		if err == nil && tbl.Len() == 0 {
			err = errors.Wrap(rate.ErrUnavailable, "feed returned no rates")
		}
		if err != nil {
			l.err.Store(&err)
			lg.Warn("Exchange rates unavailable, converting 1:1",
				zap.Error(err),
				zap.Duration("took", time.Since(start)),
			)
			return
		}

		l.table.Store(tbl)
		l.available.Store(true)
		lg.Info("Exchange rates loaded",
			zap.String("bank", tbl.Bank()),
			zap.Int("rates", tbl.Len()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// Done is closed once the fetch has finished, successfully or not.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Rates returns the loaded table. It is empty (nil) before the fetch
// completes and after a failure.
func (l *Loader) Rates() *rate.Table {
	return l.table.Load()
}

// Available reports whether rates were loaded.
func (l *Loader) Available() bool {
	return l.available.Load()
}

// Err returns the fetch failure, or nil.
func (l *Loader) Err() error {
	if p := l.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Check is a health check that reports the fetch state. It never blocks.
func (l *Loader) Check(_ context.Context) error {
	select {
	case <-l.done:
	default:
		return errors.New("exchange rates still loading")
	}
	if err := l.Err(); err != nil {
		return errors.Wrap(err, "exchange rates")
	}
	return nil
}
