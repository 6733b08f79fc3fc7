package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/papertrader/feed"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/rustyeddy/papertrader/strategies"
)

const (
	EnvOANDAToken   = "OANDA_TOKEN"
	EnvOANDAAccount = "OANDA_ACCOUNT"
)

var ErrInvalid = errors.New("invalid config")

// Config represents the complete trader configuration
type Config struct {
	Environment string          `json:"environment" yaml:"environment" validate:"required"`
	Account     AccountConfig   `json:"account" yaml:"account"`
	Universe    UniverseConfig  `json:"universe" yaml:"universe"`
	Feed        FeedConfig      `json:"feed" yaml:"feed"`
	Strategy    StrategyConfig  `json:"strategy" yaml:"strategy"`
	Broker      BrokerConfig    `json:"broker" yaml:"broker"`
	Risk        RiskConfig      `json:"risk" yaml:"risk"`
	Orders      OrdersConfig    `json:"orders" yaml:"orders"`
	Loop        LoopConfig      `json:"loop" yaml:"loop"`
	Store       StoreConfig     `json:"store" yaml:"store"`
	Journal     JournalConfig   `json:"journal" yaml:"journal"`
	Log         LogConfig       `json:"log" yaml:"log"`
	Profiling   ProfilingConfig `json:"profiling" yaml:"profiling"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency" validate:"required"`
	Deposit  float64 `json:"deposit" yaml:"deposit" validate:"gt=0"`
}

// UniverseConfig lists the symbols to trade. "all" expands to every
// instrument the feed offers, clamped to Max.
type UniverseConfig struct {
	Symbols []string `json:"symbols" yaml:"symbols" validate:"required,min=1,dive,required"`
	Max     int      `json:"max" yaml:"max" validate:"gte=0"`
}

type FeedConfig struct {
	Kind         string   `json:"kind" yaml:"kind" validate:"oneof=sim binance binance-stream oanda"`
	BinanceURL   string   `json:"binance_url,omitempty" yaml:"binance_url,omitempty" validate:"omitempty,url"`
	QuoteAsset   string   `json:"quote_asset,omitempty" yaml:"quote_asset,omitempty"`
	StreamURL    string   `json:"stream_url,omitempty" yaml:"stream_url,omitempty" validate:"omitempty,url"`
	StreamMaxAge Duration `json:"stream_max_age,omitempty" yaml:"stream_max_age,omitempty" validate:"gte=0"`

	OANDAPractice bool   `json:"oanda_practice,omitempty" yaml:"oanda_practice,omitempty"`
	OANDAURL      string `json:"oanda_url,omitempty" yaml:"oanda_url,omitempty" validate:"omitempty,url"`

	// From the environment only
	OANDAToken   string `json:"-" yaml:"-"`
	OANDAAccount string `json:"-" yaml:"-"`

	Sim SimConfig `json:"sim" yaml:"sim"`
}

type SimConfig struct {
	Seed      int64              `json:"seed" yaml:"seed"`
	Start     map[string]float64 `json:"start,omitempty" yaml:"start,omitempty" validate:"omitempty,dive,gt=0"`
	VolBps    float64            `json:"vol_bps" yaml:"vol_bps" validate:"gte=0"`
	DriftBps  float64            `json:"drift_bps" yaml:"drift_bps"`
	SpreadBps float64            `json:"spread_bps" yaml:"spread_bps" validate:"gte=0"`
	GapProb   float64            `json:"gap_prob" yaml:"gap_prob" validate:"gte=0,lte=1"`
	MinQty    float64            `json:"min_qty" yaml:"min_qty" validate:"gte=0"`
	QtyStep   float64            `json:"qty_step" yaml:"qty_step" validate:"gte=0"`
}

// StrategyConfig contains strategy parameters
type StrategyConfig struct {
	Name            string   `json:"name" yaml:"name" validate:"required"`
	FastPeriod      int      `json:"fast_period" yaml:"fast_period" validate:"gt=0"`
	SlowPeriod      int      `json:"slow_period" yaml:"slow_period" validate:"gt=0"`
	VolPeriod       int      `json:"vol_period" yaml:"vol_period" validate:"gte=0"`
	VolMultiplier   float64  `json:"vol_multiplier" yaml:"vol_multiplier" validate:"gte=0"`
	EnterBpsLong    float64  `json:"enter_bps_long" yaml:"enter_bps_long" validate:"gte=0"`
	EnterBpsShort   float64  `json:"enter_bps_short" yaml:"enter_bps_short" validate:"gte=0"`
	ExitBpsLong     float64  `json:"exit_bps_long" yaml:"exit_bps_long" validate:"gte=0"`
	ExitBpsShort    float64  `json:"exit_bps_short" yaml:"exit_bps_short" validate:"gte=0"`
	AllowShort      bool     `json:"allow_short" yaml:"allow_short"`
	Cooldown        Duration `json:"cooldown" yaml:"cooldown" validate:"gte=0"`
	MinHold         Duration `json:"min_hold" yaml:"min_hold" validate:"gte=0"`
	BreakoutWindow  int      `json:"breakout_window" yaml:"breakout_window" validate:"gte=0"`
	BreakoutBandBps float64  `json:"breakout_band_bps" yaml:"breakout_band_bps" validate:"gte=0"`
	Warmup          int      `json:"warmup" yaml:"warmup" validate:"gte=0"`
}

type BrokerConfig struct {
	SlippageBps float64 `json:"slippage_bps" yaml:"slippage_bps" validate:"gte=0"`
	FeeBps      float64 `json:"fee_bps" yaml:"fee_bps" validate:"gte=0"`
}

type RiskConfig struct {
	MaxTradesPerMinute  int                `json:"max_trades_per_minute" yaml:"max_trades_per_minute" validate:"gte=0"`
	LossCooldown        Duration           `json:"loss_cooldown" yaml:"loss_cooldown" validate:"gte=0"`
	MaxDailyDrawdownPct float64            `json:"max_daily_drawdown_pct" yaml:"max_daily_drawdown_pct" validate:"gte=0,lte=100"`
	MaxNotional         float64            `json:"max_notional" yaml:"max_notional" validate:"gte=0"`
	NotionalLimits      map[string]float64 `json:"notional_limits,omitempty" yaml:"notional_limits,omitempty" validate:"omitempty,dive,gte=0"`
}

type OrdersConfig struct {
	EntryNotional     float64 `json:"entry_notional" yaml:"entry_notional" validate:"gt=0"`
	MaxEntryOvershoot float64 `json:"max_entry_overshoot" yaml:"max_entry_overshoot" validate:"gte=0"`
	MinMoveBps        float64 `json:"min_move_bps" yaml:"min_move_bps" validate:"gte=0"`
}

type LoopConfig struct {
	Interval    Duration `json:"interval" yaml:"interval" validate:"gt=0"`
	Jitter      Duration `json:"jitter" yaml:"jitter" validate:"gte=0"`
	ReportEvery int      `json:"report_every" yaml:"report_every" validate:"gte=1"`
	SaveEvery   int      `json:"save_every" yaml:"save_every" validate:"gte=1"`
}

type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind" validate:"oneof=file sqlite postgres"`
	Path string `json:"path,omitempty" yaml:"path,omitempty" validate:"required_unless=Kind postgres"`
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty" validate:"required_if=Kind postgres"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type" validate:"oneof=none csv sqlite"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty" validate:"required_if=Type csv"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty" validate:"required_if=Type csv"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty" validate:"required_if=Type sqlite"`
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `json:"development" yaml:"development"`
}

// ProfilingConfig enables continuous profiling when PyroscopeURL is set.
type ProfilingConfig struct {
	PyroscopeURL string `json:"pyroscope_url,omitempty" yaml:"pyroscope_url,omitempty" validate:"omitempty,url"`
	AppName      string `json:"app_name,omitempty" yaml:"app_name,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML, with JSON as a
// fallback). Omitted values keep their defaults; secrets come from the
// environment. The result is validated.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv copies secrets from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvOANDAToken); v != "" {
		c.Feed.OANDAToken = v
	}
	if v := os.Getenv(EnvOANDAAccount); v != "" {
		c.Feed.OANDAAccount = v
	}
}

// SaveToFile saves configuration to a file. The format follows the
// extension; anything but .json is written as YAML.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks the struct tags, then the rules that span fields.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	s := c.Strategy
	if s.FastPeriod >= s.SlowPeriod {
		return fmt.Errorf("%w: strategy.fast_period (%d) must be less than strategy.slow_period (%d)",
			ErrInvalid, s.FastPeriod, s.SlowPeriod)
	}
	if s.ExitBpsLong > s.EnterBpsLong || s.ExitBpsShort > s.EnterBpsShort {
		return fmt.Errorf("%w: exit thresholds must not exceed entry thresholds", ErrInvalid)
	}
	if c.Orders.MaxEntryOvershoot != 0 && c.Orders.MaxEntryOvershoot < 1 {
		return fmt.Errorf("%w: orders.max_entry_overshoot must be 0 (off) or at least 1", ErrInvalid)
	}
	if c.Feed.Kind == feed.KindOANDA && (c.Feed.OANDAToken == "" || c.Feed.OANDAAccount == "") {
		return fmt.Errorf("%w: oanda feed needs %s and %s", ErrInvalid, EnvOANDAToken, EnvOANDAAccount)
	}

	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describe(fe validator.FieldError) string {
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "url":
		return field + " must be a URL"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// Default returns a paper-trading configuration on the simulated feed.
func Default() *Config {
	p := strategies.DefaultParams()
	return &Config{
		Environment: "paper",
		Account: AccountConfig{
			Currency: "USD",
			Deposit:  10000,
		},
		Universe: UniverseConfig{
			Symbols: []string{"BTC/USDT", "ETH/USDT"},
			Max:     10,
		},
		Feed: FeedConfig{
			Kind:         feed.KindSim,
			QuoteAsset:   "USDT",
			StreamMaxAge: Duration(10 * time.Second),
			Sim: SimConfig{
				Seed:      1,
				Start:     map[string]float64{"BTCUSDT": 60000, "ETHUSDT": 3000},
				VolBps:    10,
				SpreadBps: 2,
				MinQty:    0.0001,
				QtyStep:   0.0001,
			},
		},
		Strategy: StrategyConfig{
			Name:          strategies.AdaptiveEMAName,
			FastPeriod:    p.FastPeriod,
			SlowPeriod:    p.SlowPeriod,
			VolPeriod:     p.VolPeriod,
			VolMultiplier: p.VolMultiplier,
			EnterBpsLong:  p.EnterBpsLong,
			EnterBpsShort: p.EnterBpsShort,
			ExitBpsLong:   p.ExitBpsLong,
			ExitBpsShort:  p.ExitBpsShort,
			Cooldown:      Duration(p.Cooldown),
			MinHold:       Duration(p.MinHold),
		},
		Broker: BrokerConfig{
			SlippageBps: 2,
			FeeBps:      10,
		},
		Risk: RiskConfig{
			MaxTradesPerMinute:  6,
			LossCooldown:        Duration(5 * time.Minute),
			MaxDailyDrawdownPct: 5,
			MaxNotional:         1000,
		},
		Orders: OrdersConfig{
			EntryNotional:     p.EntryNotional,
			MaxEntryOvershoot: 1.5,
			MinMoveBps:        0,
		},
		Loop: LoopConfig{
			Interval:    Duration(5 * time.Second),
			Jitter:      Duration(time.Second),
			ReportEvery: 12,
			SaveEvery:   12,
		},
		Store: StoreConfig{
			Kind: "file",
			Path: "state.json",
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// StrategyParams converts the strategy and order sections.
func (c *Config) StrategyParams() strategies.Params {
	s := c.Strategy
	return strategies.Params{
		FastPeriod:      s.FastPeriod,
		SlowPeriod:      s.SlowPeriod,
		VolPeriod:       s.VolPeriod,
		VolMultiplier:   s.VolMultiplier,
		EnterBpsLong:    s.EnterBpsLong,
		EnterBpsShort:   s.EnterBpsShort,
		ExitBpsLong:     s.ExitBpsLong,
		ExitBpsShort:    s.ExitBpsShort,
		AllowShort:      s.AllowShort,
		Cooldown:        s.Cooldown.D(),
		MinHold:         s.MinHold.D(),
		BreakoutWindow:  s.BreakoutWindow,
		BreakoutBandBps: s.BreakoutBandBps,
		Warmup:          s.Warmup,
		EntryNotional:   c.Orders.EntryNotional,
	}
}

func (c *Config) RiskPolicy() risk.Policy {
	r := c.Risk
	limits := make(map[string]float64, len(r.NotionalLimits))
	for k, v := range r.NotionalLimits {
		limits[k] = v
	}
	return risk.Policy{
		MaxTradesPerWindow:  r.MaxTradesPerMinute,
		Window:              risk.DefaultWindow,
		LossCooldown:        r.LossCooldown.D(),
		MaxDailyDrawdownPct: r.MaxDailyDrawdownPct,
		MaxNotional:         r.MaxNotional,
		NotionalLimit:       limits,
	}
}

func (c *Config) FeedOptions() feed.Options {
	f := c.Feed
	return feed.Options{
		Kind:          f.Kind,
		BinanceURL:    f.BinanceURL,
		QuoteAsset:    f.QuoteAsset,
		StreamURL:     f.StreamURL,
		StreamMaxAge:  f.StreamMaxAge.D(),
		OANDAToken:    f.OANDAToken,
		OANDAAccount:  f.OANDAAccount,
		OANDAPractice: f.OANDAPractice,
		OANDAURL:      f.OANDAURL,
		Sim: feed.SimOptions{
			Seed:      f.Sim.Seed,
			Start:     f.Sim.Start,
			VolBps:    f.Sim.VolBps,
			DriftBps:  f.Sim.DriftBps,
			SpreadBps: f.Sim.SpreadBps,
			GapProb:   f.Sim.GapProb,
			MinQty:    f.Sim.MinQty,
			QtyStep:   f.Sim.QtyStep,
		},
	}
}

func (c *Config) Costs() sim.Costs {
	return sim.Costs{SlippageBps: c.Broker.SlippageBps, FeeBps: c.Broker.FeeBps}
}
