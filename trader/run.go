package trader

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// shutdownTimeout bounds the final save once the run context is gone.
const shutdownTimeout = 10 * time.Second

// Run ticks until ctx is cancelled, waiting Interval plus a random jitter in
// [0, Jitter) between passes. Ticks never overlap. A failing or panicking
// tick is logged and the loop carries on. Shutdown always closes the feed,
// saves the store, logs a summary and closes the journal.
func (t *Trader) Run(ctx context.Context) error {
	defer t.shutdown()

	t.log.Info("trading loop started",
		zap.Int("instruments", len(t.instruments)),
		zap.Duration("interval", t.opts.Interval),
		zap.Duration("jitter", t.opts.Jitter),
	)

	for {
		if ctx.Err() != nil {
			return nil
		}
		t.safeTick(ctx)

		timer := time.NewTimer(t.opts.Interval + t.jitter(t.opts.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (t *Trader) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tick panic", zap.Int("tick", t.ticks), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	if err := t.Tick(ctx); err != nil && ctx.Err() == nil {
		t.log.Warn("tick failed", zap.Int("tick", t.ticks), zap.Error(err))
	}
}

func (t *Trader) shutdown() {
	if err := t.feed.Close(); err != nil {
		t.log.Warn("feed close", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := t.store.Save(ctx); err != nil {
		t.log.Error("final save failed", zap.Error(err))
	}

	t.Summary()

	if err := t.journal.Close(); err != nil {
		t.log.Warn("journal close", zap.Error(err))
	}
	t.log.Info("trading loop stopped", zap.Int("ticks", t.ticks))
}

// Summary logs one line per instrument plus the account totals.
func (t *Trader) Summary() {
	for _, inst := range t.instruments {
		b := t.store.Book(inst.Handle)
		t.log.Info("summary",
			zap.String("instrument", inst.Handle),
			zap.Float64("position", b.Position),
			zap.Float64("entry_price", b.EntryPrice),
			zap.Float64("last_mark", b.LastMark),
			zap.Float64("realized", b.RealizedPnL),
			zap.Float64("unrealized", b.Unrealized()),
			zap.Float64("fees", b.FeesPaid),
			zap.Int("trades", len(b.Trades)),
		)
	}
	tot := t.store.Totals()
	t.log.Info("summary totals",
		zap.Float64("deposit", tot.Deposit),
		zap.Float64("cash", tot.Cash),
		zap.Float64("equity", tot.Equity),
		zap.Float64("pnl", tot.Equity-tot.Deposit),
	)
}

func uniformJitter(seed int64) func(time.Duration) time.Duration {
	rng := rand.New(rand.NewSource(seed))
	return func(max time.Duration) time.Duration {
		if max <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(max)))
	}
}
