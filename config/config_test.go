package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 10000.0, cfg.Account.Deposit)
	assert.Equal(t, "sim", cfg.Feed.Kind)
	assert.Equal(t, 5*time.Second, cfg.Loop.Interval.D())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "missing currency",
			mutate: func(c *Config) { c.Account.Currency = "" },
			errMsg: "account.currency is required",
		},
		{
			name:   "negative deposit",
			mutate: func(c *Config) { c.Account.Deposit = -1000 },
			errMsg: "account.deposit must be gt 0",
		},
		{
			name:   "empty universe",
			mutate: func(c *Config) { c.Universe.Symbols = nil },
			errMsg: "universe.symbols is required",
		},
		{
			name:   "unknown feed",
			mutate: func(c *Config) { c.Feed.Kind = "kraken" },
			errMsg: "feed.kind must be one of",
		},
		{
			name:   "gap probability above one",
			mutate: func(c *Config) { c.Feed.Sim.GapProb = 1.5 },
			errMsg: "feed.sim.gap_prob",
		},
		{
			name: "fast not shorter than slow",
			mutate: func(c *Config) {
				c.Strategy.FastPeriod = 60
				c.Strategy.SlowPeriod = 60
			},
			errMsg: "must be less than strategy.slow_period",
		},
		{
			name:   "exit wider than entry",
			mutate: func(c *Config) { c.Strategy.ExitBpsLong = 50 },
			errMsg: "exit thresholds must not exceed entry thresholds",
		},
		{
			name:   "zero interval",
			mutate: func(c *Config) { c.Loop.Interval = 0 },
			errMsg: "loop.interval",
		},
		{
			name:   "overshoot below one",
			mutate: func(c *Config) { c.Orders.MaxEntryOvershoot = 0.5 },
			errMsg: "orders.max_entry_overshoot",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Store.Kind = "postgres"
				c.Store.Path = ""
			},
			errMsg: "store.dsn is required",
		},
		{
			name:   "csv journal without files",
			mutate: func(c *Config) { c.Journal.Type = "csv" },
			errMsg: "journal.trades_file is required",
		},
		{
			name:   "oanda without credentials",
			mutate: func(c *Config) { c.Feed.Kind = "oanda" },
			errMsg: "OANDA_TOKEN",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "trace" },
			errMsg: "log.level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Setenv(EnvOANDAToken, "tok")
	t.Setenv(EnvOANDAAccount, "101-001")

	yamlContent := `
environment: practice
account:
  currency: USD
  deposit: 5000
universe:
  symbols: [EUR_USD]
feed:
  kind: oanda
  oanda_practice: true
strategy:
  name: adaptive-ema
  fast_period: 5
  slow_period: 15
  cooldown: 90s
loop:
  interval: 2s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "practice", cfg.Environment)
	assert.Equal(t, 5000.0, cfg.Account.Deposit)
	assert.Equal(t, []string{"EUR_USD"}, cfg.Universe.Symbols)
	assert.Equal(t, "tok", cfg.Feed.OANDAToken)
	assert.Equal(t, "101-001", cfg.Feed.OANDAAccount)
	assert.Equal(t, 90*time.Second, cfg.Strategy.Cooldown.D())
	assert.Equal(t, 2*time.Second, cfg.Loop.Interval.D())

	// untouched sections keep defaults
	assert.Equal(t, Default().Broker, cfg.Broker)
	assert.Equal(t, Default().Strategy.MinHold, cfg.Strategy.MinHold)
}

func TestLoadFromFileJSON(t *testing.T) {
	jsonContent := `{
  "environment": "paper",
  "account": {"currency": "USD", "deposit": 2500},
  "loop": {"interval": "1s", "jitter": "250ms", "report_every": 5, "save_every": 10}
}`
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonContent), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, cfg.Account.Deposit)
	assert.Equal(t, 250*time.Millisecond, cfg.Loop.Jitter.D())
	assert.Equal(t, 5, cfg.Loop.ReportEvery)
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("loop: {interval: soon}"), 0o644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("strategy: {fast_period: 80}"), 0o644))
	_, err = LoadFromFile(invalid)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := Default()
			cfg.Strategy.AllowShort = true
			cfg.Risk.NotionalLimits = map[string]float64{"BTCUSDT": 250}

			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Risk.NotionalLimits = map[string]float64{"ETHUSDT": 300}

	p := cfg.StrategyParams()
	assert.Equal(t, cfg.Strategy.FastPeriod, p.FastPeriod)
	assert.Equal(t, cfg.Orders.EntryNotional, p.EntryNotional)
	assert.Equal(t, cfg.Strategy.Cooldown.D(), p.Cooldown)
	assert.NoError(t, p.Validate())

	pol := cfg.RiskPolicy()
	assert.Equal(t, 300.0, pol.Ceiling("ETHUSDT"))
	assert.Equal(t, cfg.Risk.MaxNotional, pol.Ceiling("BTCUSDT"))
	assert.Equal(t, time.Minute, pol.Window)

	fo := cfg.FeedOptions()
	assert.Equal(t, "sim", fo.Kind)
	assert.Equal(t, cfg.Feed.Sim.Start, fo.Sim.Start)

	c := cfg.Costs()
	assert.Equal(t, cfg.Broker.FeeBps, c.FeeBps)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.D())

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))

	assert.Error(t, d.UnmarshalJSON([]byte(`"later"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`12`)))

	require.NoError(t, d.UnmarshalJSON([]byte(`""`)))
	assert.Zero(t, d)
}
