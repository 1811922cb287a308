// Package config defines the top-level configuration for the trading
// platform process. Config is loaded from a JSON file with sensitive
// fields overridable via TRADECORE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// Config is the root document described in spec §6: server, rate_limits,
// markets[], accounts[], seed_orders[].
type Config struct {
	Seed       int64             `mapstructure:"seed"`
	Server     ServerConfig      `mapstructure:"server"`
	RateLimits RateLimitsConfig  `mapstructure:"rate_limits"`
	Markets    []MarketConfig    `mapstructure:"markets"`
	Accounts   []AccountConfig   `mapstructure:"accounts"`
	SeedOrders []SeedOrderConfig `mapstructure:"seed_orders"`
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls the process's external bind address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RateLimitsConfig sets the matching engine's per-symbol admission rate
// (spec §4.1 step 1) and the risk manager's surveillance sampling cadence.
// PerSymbol overrides OrdersPerSecond/Burst for individual symbols; an
// empty map means every symbol uses OrdersPerSecond/Burst.
type RateLimitsConfig struct {
	OrdersPerSecond   float64               `mapstructure:"orders_per_second"`
	Burst             int                   `mapstructure:"burst"`
	SurveillanceEvery time.Duration         `mapstructure:"surveillance_every"`
	PerSymbol         map[string]SymbolRate `mapstructure:"per_symbol"`
}

// SymbolRate overrides the default order rate for a single symbol.
type SymbolRate struct {
	OrdersPerSecond float64 `mapstructure:"orders_per_second"`
	Burst           int     `mapstructure:"burst"`
}

// MarketConfig describes one tradeable instrument. Spot, PerpetualFutures,
// and Option carry disjoint nested sections; only the section matching
// Type is read.
type MarketConfig struct {
	Symbol           string  `mapstructure:"symbol"`
	Type             string  `mapstructure:"type"` // SPOT | PERPETUAL_FUTURES | OPTION
	TickSize         string  `mapstructure:"tick_size"`
	LotSize          string  `mapstructure:"lot_size"`
	MinQty           string  `mapstructure:"min_qty"`
	MaxQty           string  `mapstructure:"max_qty"`
	BaseMakerFeeRate float64 `mapstructure:"base_maker_fee_rate"`
	BaseTakerFeeRate float64 `mapstructure:"base_taker_fee_rate"`

	Perpetual *PerpetualConfig `mapstructure:"perpetual"`
	Option    *OptionConfig    `mapstructure:"option"`
}

// PerpetualConfig holds funding parameters for PERPETUAL_FUTURES markets.
type PerpetualConfig struct {
	FundingIntervalMs int64   `mapstructure:"funding_interval_ms"`
	MaxFundingRateBps float64 `mapstructure:"max_funding_rate_bps"`
}

// OptionConfig holds the contract terms for OPTION markets.
type OptionConfig struct {
	Underlying string `mapstructure:"underlying"`
	Strike     string `mapstructure:"strike"`
	Expiry     string `mapstructure:"expiry"` // RFC3339
	Kind       string `mapstructure:"kind"`   // CALL | PUT
}

// AccountConfig seeds a margin account with an initial balance set.
type AccountConfig struct {
	Address  string          `mapstructure:"address"`
	Owner    string          `mapstructure:"owner"`
	Deposits []DepositConfig `mapstructure:"deposits"`
}

// DepositConfig is one asset credit applied to an account at startup.
type DepositConfig struct {
	Asset  string `mapstructure:"asset"`
	Amount string `mapstructure:"amount"`
}

// SeedOrderConfig is an order submitted at startup, used to pre-populate
// the book for a scripted scenario or simulation run.
type SeedOrderConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Owner    string `mapstructure:"owner"` // must match an AccountConfig.Address
	Side     string `mapstructure:"side"`  // BUY | SELL
	Type     string `mapstructure:"type"`  // LIMIT | MARKET | STOP_LIMIT | STOP_MARKET | POST_ONLY
	Quantity string `mapstructure:"quantity"`
	Price    string `mapstructure:"price"`
	TIF      string `mapstructure:"tif"` // GTC | IOC | FOK
}

// LoggingConfig controls the process-wide zap logger. Path is optional;
// when set, log entries are teed to that file in addition to stdout.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Load reads config from a JSON file with environment variable overrides.
// Sensitive or deployment-specific fields use env vars prefixed TRADECORE_,
// e.g. TRADECORE_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("TRADECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if port := os.Getenv("TRADECORE_SERVER_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			cfg.Server.Port = p
		}
	}
	if seed := os.Getenv("TRADECORE_SEED"); seed != "" {
		var s int64
		if _, err := fmt.Sscanf(seed, "%d", &s); err == nil {
			cfg.Seed = s
		}
	}

	return &cfg, nil
}

// Validate checks required fields and referential integrity between
// seed_orders[] and accounts[].
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}

	owners := make(map[string]bool, len(c.Accounts))
	for i, acc := range c.Accounts {
		if acc.Address == "" {
			return fmt.Errorf("accounts[%d].address is required", i)
		}
		owners[strings.ToLower(acc.Address)] = true
		for j, dep := range acc.Deposits {
			if dep.Asset == "" {
				return fmt.Errorf("accounts[%d].deposits[%d].asset is required", i, j)
			}
			if _, err := fixedpoint.ParseValue(dep.Amount); err != nil {
				return fmt.Errorf("accounts[%d].deposits[%d].amount: %w", i, j, err)
			}
		}
	}

	symbols := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		if m.Symbol == "" {
			return fmt.Errorf("markets[%d].symbol is required", i)
		}
		symbols[m.Symbol] = true
		switch m.Type {
		case "SPOT", "PERPETUAL_FUTURES", "OPTION":
		default:
			return fmt.Errorf("markets[%d].type must be one of SPOT, PERPETUAL_FUTURES, OPTION, got %q", i, m.Type)
		}
		if m.Type == "PERPETUAL_FUTURES" && m.Perpetual == nil {
			return fmt.Errorf("markets[%d]: perpetual section is required for PERPETUAL_FUTURES", i)
		}
		if m.Type == "OPTION" && m.Option == nil {
			return fmt.Errorf("markets[%d]: option section is required for OPTION", i)
		}
		if _, err := fixedpoint.ParsePrice(m.TickSize); err != nil {
			return fmt.Errorf("markets[%d].tick_size: %w", i, err)
		}
		if _, err := fixedpoint.ParseQuantity(m.LotSize); err != nil {
			return fmt.Errorf("markets[%d].lot_size: %w", i, err)
		}
	}

	for i, so := range c.SeedOrders {
		if !symbols[so.Symbol] {
			return fmt.Errorf("seed_orders[%d].symbol %q is not declared in markets[]", i, so.Symbol)
		}
		if !owners[strings.ToLower(so.Owner)] {
			return fmt.Errorf("seed_orders[%d].owner %q is not declared in accounts[]", i, so.Owner)
		}
		switch so.Side {
		case "BUY", "SELL":
		default:
			return fmt.Errorf("seed_orders[%d].side must be BUY or SELL, got %q", i, so.Side)
		}
		if _, err := fixedpoint.ParseQuantity(so.Quantity); err != nil {
			return fmt.Errorf("seed_orders[%d].quantity: %w", i, err)
		}
	}

	return nil
}

// ParseQualifiedSymbol parses the "EXCHANGE:SYMBOL" config convention,
// defaulting to the "SIM" exchange when no prefix is given.
func ParseQualifiedSymbol(s string) types.QualifiedSymbol {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) == 2 {
		return types.NewQualifiedSymbol(types.ExchangeID(parts[0]), parts[1])
	}
	return types.NewQualifiedSymbol("SIM", parts[0])
}

// Market converts a MarketConfig into the domain types.Market the matching
// engine is built against.
func (m MarketConfig) Market() (types.Market, error) {
	tick, err := fixedpoint.ParsePrice(m.TickSize)
	if err != nil {
		return types.Market{}, fmt.Errorf("tick_size: %w", err)
	}
	lot, err := fixedpoint.ParseQuantity(m.LotSize)
	if err != nil {
		return types.Market{}, fmt.Errorf("lot_size: %w", err)
	}

	market := types.Market{
		Symbol:   ParseQualifiedSymbol(m.Symbol),
		Type:     marketType(m.Type),
		TickSize: tick,
		LotSize:  lot,
	}
	if m.MinQty != "" {
		if q, err := fixedpoint.ParseQuantity(m.MinQty); err == nil {
			market.MinQty = q
		}
	}
	if m.MaxQty != "" {
		if q, err := fixedpoint.ParseQuantity(m.MaxQty); err == nil {
			market.MaxQty = q
		}
	}
	// Fee rates are configured directly in basis points (Rate's native unit).
	market.BaseMakerFeeRate = fixedpoint.Rate(m.BaseMakerFeeRate)
	market.BaseTakerFeeRate = fixedpoint.Rate(m.BaseTakerFeeRate)
	if m.Perpetual != nil {
		market.FundingIntervalMs = m.Perpetual.FundingIntervalMs
		// BasisPoints carries 1/100 bp resolution; config is in whole bps.
		market.MaxFundingRateBps = fixedpoint.BasisPoints(m.Perpetual.MaxFundingRateBps * 100)
	}
	return market, nil
}

func marketType(s string) types.MarketType {
	switch s {
	case "PERPETUAL_FUTURES":
		return types.PerpetualFutures
	case "OPTION":
		return types.Option
	default:
		return types.Spot
	}
}

// AccountID parses the account's hex address into the domain AccountID
// type.
func (a AccountConfig) AccountID() types.AccountID {
	return common.HexToAddress(a.Address)
}
