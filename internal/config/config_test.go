package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/axiomquant/tradecore/pkg/types"
)

const sampleConfig = `{
  "seed": 42,
  "server": {"host": "0.0.0.0", "port": 8080},
  "rate_limits": {"orders_per_second": 100, "burst": 50},
  "markets": [
    {
      "symbol": "SIM:BTC-USD",
      "type": "SPOT",
      "tick_size": "0.01",
      "lot_size": "0.0001",
      "base_maker_fee_rate": 2,
      "base_taker_fee_rate": 5
    },
    {
      "symbol": "SIM:BTC-PERP",
      "type": "PERPETUAL_FUTURES",
      "tick_size": "0.01",
      "lot_size": "0.0001",
      "perpetual": {"funding_interval_ms": 3600000, "max_funding_rate_bps": 75}
    }
  ],
  "accounts": [
    {"address": "0x0000000000000000000000000000000000000001", "owner": "alice",
     "deposits": [{"asset": "USD", "amount": "100000"}]}
  ],
  "seed_orders": [
    {"symbol": "SIM:BTC-USD", "owner": "0x0000000000000000000000000000000000000001",
     "side": "BUY", "type": "LIMIT", "quantity": "1", "price": "50000", "tif": "GTC"}
  ]
}`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadParsesAllSections(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != 42 {
		t.Fatalf("expected seed 42, got %d", cfg.Seed)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if len(cfg.Markets) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(cfg.Markets))
	}
	if len(cfg.Accounts) != 1 || len(cfg.Accounts[0].Deposits) != 1 {
		t.Fatalf("expected 1 account with 1 deposit, got %+v", cfg.Accounts)
	}
	if len(cfg.SeedOrders) != 1 {
		t.Fatalf("expected 1 seed order, got %d", len(cfg.SeedOrders))
	}
}

func TestValidateAcceptsSampleConfig(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected sample config to validate, got: %v", err)
	}
}

func TestValidateRejectsUnknownSeedOrderSymbol(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.SeedOrders[0].Symbol = "SIM:ETH-USD"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for a seed order referencing an undeclared market")
	}
}

func TestValidateRejectsMissingPerpetualSection(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Markets[1].Perpetual = nil
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for a PERPETUAL_FUTURES market missing its perpetual section")
	}
}

func TestValidateRejectsZeroPort(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for a zero server port")
	}
}

func TestMarketConfigConvertsToDomainMarket(t *testing.T) {
	mc := MarketConfig{
		Symbol:           "SIM:BTC-USD",
		Type:             "SPOT",
		TickSize:         "0.01",
		LotSize:          "0.0001",
		BaseMakerFeeRate: 2,
		BaseTakerFeeRate: 5,
	}
	market, err := mc.Market()
	if err != nil {
		t.Fatalf("Market: %v", err)
	}
	if market.Type != types.Spot {
		t.Fatalf("expected Spot market type")
	}
	if market.BaseMakerFeeRate != 2 || market.BaseTakerFeeRate != 5 {
		t.Fatalf("expected fee rates 2/5 bps, got %v/%v", market.BaseMakerFeeRate, market.BaseTakerFeeRate)
	}
}

func TestMarketConfigCarriesPerpetualFunding(t *testing.T) {
	mc := MarketConfig{
		Symbol:    "SIM:BTC-PERP",
		Type:      "PERPETUAL_FUTURES",
		TickSize:  "0.01",
		LotSize:   "0.0001",
		Perpetual: &PerpetualConfig{FundingIntervalMs: 3600000, MaxFundingRateBps: 75},
	}
	market, err := mc.Market()
	if err != nil {
		t.Fatalf("Market: %v", err)
	}
	if market.FundingIntervalMs != 3600000 {
		t.Fatalf("expected funding interval 3600000ms, got %d", market.FundingIntervalMs)
	}
	if market.MaxFundingRateBps != 7500 {
		t.Fatalf("expected 7500 internal units (75bps * 100), got %v", market.MaxFundingRateBps)
	}
}

func TestAccountConfigParsesAddress(t *testing.T) {
	ac := AccountConfig{Address: "0x0000000000000000000000000000000000000001"}
	id := ac.AccountID()
	if id.Hex() != "0x0000000000000000000000000000000000000001" {
		t.Fatalf("unexpected account id: %v", id.Hex())
	}
}

func TestEnvOverrideAppliesPort(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	t.Setenv("TRADECORE_SERVER_PORT", "9090")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected env override to set port 9090, got %d", cfg.Server.Port)
	}
}
