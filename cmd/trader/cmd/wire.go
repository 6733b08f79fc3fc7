package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/feed"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/rustyeddy/papertrader/store"
	"github.com/rustyeddy/papertrader/strategies"
	"github.com/rustyeddy/papertrader/trader"
)

// app is a fully wired trading process.
type app struct {
	session string
	log     *logger.Logger
	store   *store.Store
	trader  *trader.Trader
	closers []func() error
}

// close releases everything opened by build in reverse order.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore loads persisted state for cfg's environment.
func openStore(ctx context.Context, cfg *config.Config, session string, reset bool, log *logger.Logger) (*store.Store, error) {
	p, err := store.OpenPersister(cfg.Store.Kind, cfg.Store.Path, cfg.Store.DSN, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	st := store.New(p, log)
	err = st.Load(ctx, store.LoadOptions{
		Deposit:     cfg.Account.Deposit,
		Environment: cfg.Environment,
		SessionID:   session,
		Reset:       reset,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("load store: %w", err)
	}
	return st, nil
}

// build wires every component from cfg. On error, whatever was opened is
// closed again.
func build(ctx context.Context, cfg *config.Config, reset bool, log *logger.Logger) (a *app, err error) {
	a = &app{session: uuid.NewString(), log: log}
	defer func() {
		if err != nil {
			a.close()
			a = nil
		}
	}()
	log = log.With(zap.String("session", a.session), zap.String("environment", cfg.Environment))

	if url := cfg.Profiling.PyroscopeURL; url != "" {
		name := cfg.Profiling.AppName
		if name == "" {
			name = "papertrader"
		}
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: name,
			ServerAddress:   url,
			Tags: map[string]string{
				"env":     cfg.Environment,
				"session": a.session,
			},
			Logger: log.Named("pyroscope").Sugar(),
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return a, fmt.Errorf("start profiler: %w", err)
		}
		a.closers = append(a.closers, profiler.Stop)
	}

	a.store, err = openStore(ctx, cfg, a.session, reset, log)
	if err != nil {
		return a, err
	}
	a.closers = append(a.closers, a.store.Close)

	gate := risk.NewGate(cfg.RiskPolicy(), a.store.Ledger(), log)
	gate.Seed(a.store, time.Now())

	src, err := feed.Open(ctx, cfg.FeedOptions(), log)
	if err != nil {
		return a, fmt.Errorf("open feed: %w", err)
	}

	insts, err := feed.Resolve(ctx, src, cfg.Universe.Symbols, cfg.Universe.Max)
	if err != nil {
		src.Close()
		return a, fmt.Errorf("resolve universe: %w", err)
	}
	if s, ok := src.(feed.Starter); ok {
		handles := make([]string, len(insts))
		for i, inst := range insts {
			handles[i] = inst.Handle
		}
		if err := s.Start(ctx, handles); err != nil {
			src.Close()
			return a, fmt.Errorf("start feed: %w", err)
		}
	}

	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.TradesFile, cfg.Journal.EquityFile, cfg.Journal.DBPath)
	if err != nil {
		src.Close()
		return a, fmt.Errorf("open journal: %w", err)
	}

	params := cfg.StrategyParams()
	a.trader, err = trader.New(trader.Options{
		EntryNotional:     cfg.Orders.EntryNotional,
		MaxEntryOvershoot: cfg.Orders.MaxEntryOvershoot,
		MinMoveBps:        cfg.Orders.MinMoveBps,
		Interval:          cfg.Loop.Interval.D(),
		Jitter:            cfg.Loop.Jitter.D(),
		ReportEvery:       cfg.Loop.ReportEvery,
		SaveEvery:         cfg.Loop.SaveEvery,
	}, trader.Deps{
		Store:       a.store,
		Gate:        gate,
		Broker:      sim.NewEngine(a.store, cfg.Costs(), log),
		Feed:        src,
		Journal:     j,
		Instruments: insts,
		NewStrategy: func(market.Instrument) (strategies.Strategy, error) {
			return strategies.New(cfg.Strategy.Name, params)
		},
		Log: log,
	})
	if err != nil {
		src.Close()
		j.Close()
		return a, err
	}

	for _, inst := range insts {
		log.Info("instrument",
			zap.String("symbol", inst.Symbol),
			zap.String("handle", inst.Handle),
			zap.Float64("min_qty", inst.MinQty),
			zap.Float64("qty_step", inst.QtyStep),
		)
	}
	return a, nil
}
