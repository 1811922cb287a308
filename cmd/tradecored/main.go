package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/axiomquant/tradecore/internal/config"
	"github.com/axiomquant/tradecore/pkg/execution"
	"github.com/axiomquant/tradecore/pkg/fabric"
	"github.com/axiomquant/tradecore/pkg/feed"
	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/margin"
	"github.com/axiomquant/tradecore/pkg/matching"
	"github.com/axiomquant/tradecore/pkg/risk"
	"github.com/axiomquant/tradecore/pkg/sim"
	"github.com/axiomquant/tradecore/pkg/types"
	"github.com/axiomquant/tradecore/pkg/util"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration document")
	ticks := flag.Int64("ticks", 0, "number of simulation ticks to run before exiting (0 = run until signalled)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Logging.Path != "" {
		logger, err = util.NewLoggerWithFile(cfg.Logging.Path, cfg.Logging.Level, cfg.Logging.Format)
	} else {
		logger, err = util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	procLog := logger.With(zap.String("component", "tradecored"))

	procLog.Info("starting",
		zap.Int64("seed", cfg.Seed),
		zap.Int("markets", len(cfg.Markets)),
		zap.Int("accounts", len(cfg.Accounts)))

	mgr := margin.NewManager()
	for _, acc := range cfg.Accounts {
		id := acc.AccountID()
		mgr.Open(id, acc.Owner)
		for _, dep := range acc.Deposits {
			amount, err := fixedpoint.ParseValue(dep.Amount)
			if err != nil {
				procLog.Fatal("invalid deposit amount", zap.String("account", acc.Address), zap.Error(err))
			}
			if err := mgr.Deposit(id, dep.Asset, amount); err != nil {
				procLog.Fatal("seed deposit failed", zap.String("account", acc.Address), zap.Error(err))
			}
		}
	}

	fab := fabric.NewFabric(1024, logger.With(zap.String("component", "fabric")))
	router := matching.NewRouter(256, logger.With(zap.String("component", "matching")))
	riskMgr := risk.NewManager(risk.Parameters{TradingEnabled: true}, fixedpoint.Value(0), fixedpoint.Value(0), 0, 0,
		logger.With(zap.String("component", "risk")))

	for _, mc := range cfg.Markets {
		market, err := mc.Market()
		if err != nil {
			procLog.Fatal("invalid market config", zap.String("symbol", mc.Symbol), zap.Error(err))
		}
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimits.OrdersPerSecond), cfg.RateLimits.Burst)
		if override, ok := cfg.RateLimits.PerSymbol[mc.Symbol]; ok {
			limiter = rate.NewLimiter(rate.Limit(override.OrdersPerSecond), override.Burst)
		}
		engine := matching.NewEngine(market, mgr, matching.PriceTimeMatcher{},
			limiter, logger.With(zap.String("component", "matching"), zap.String("symbol", mc.Symbol)))
		router.Register(engine)
		if market.MaxQty > 0 {
			riskMgr.SetPositionLimit(market.Symbol, market.MaxQty, 0)
		}
		procLog.Info("market registered", zap.String("symbol", mc.Symbol), zap.String("type", mc.Type))
	}
	procLog.Info("risk parameters published", zap.Uint64("version", riskMgr.Snapshot().Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := fixedpoint.TimestampNs(time.Now().UnixNano())
	for _, so := range cfg.SeedOrders {
		qty, err := fixedpoint.ParseQuantity(so.Quantity)
		if err != nil {
			procLog.Fatal("invalid seed order quantity", zap.Error(err))
		}
		price, err := fixedpoint.ParsePrice(so.Price)
		if err != nil {
			procLog.Fatal("invalid seed order price", zap.Error(err))
		}
		order := &types.Order{
			ID:       types.NewOrderID(),
			Symbol:   config.ParseQualifiedSymbol(so.Symbol),
			Owner:    parseAccountID(so.Owner),
			Side:     parseSide(so.Side),
			Type:     types.Limit,
			Quantity: qty,
			Price:    price,
			TIF:      parseTIF(so.TIF),
			Status:   types.New,
		}
		if _, err := router.Submit(order, now); err != nil {
			procLog.Warn("seed order rejected", zap.String("symbol", so.Symbol), zap.Error(err))
		}
	}

	if len(cfg.Markets) > 0 {
		runSimulation(ctx, cfg, fab, router, mgr, logger, *ticks)
	}

	procLog.Info("shutdown complete")
	router.Stop()
}

// runSimulation wires the simulation core to the first configured market:
// a deterministic reference feed and synthetic depth generator run until
// the context is cancelled or ticks is reached (0 = unbounded).
func runSimulation(ctx context.Context, cfg *config.Config, fab *fabric.Fabric, router *matching.Router, mgr *margin.Manager, logger *zap.Logger, maxTicks int64) {
	market := cfg.Markets[0]
	m, err := market.Market()
	if err != nil {
		return
	}

	agentOwner := common.HexToAddress("0xA63E47")
	mgr.Open(agentOwner, "mean-reversion-1")
	if err := mgr.Deposit(agentOwner, "USD", fixedpoint.ValueFromFloat64(1_000_000)); err != nil {
		logger.Warn("simulation agent seed deposit failed", zap.Error(err))
	}

	refFeed := feed.NewReferenceFeed(cfg.Seed, fixedpoint.PriceFromFloat64(100), 5)
	moments := sim.OrderbookMoments{
		SpreadMu:      2.3, // ~10bps
		SpreadSigma:   0.2,
		DepthMu:       []float64{4.6, 4.5, 4.4},
		DepthSigma:    []float64{0.1, 0.1, 0.1},
		Rho:           0.5,
		ImbalanceMean: 0,
		ImbalanceVar:  0.01,
		TickSizeBps:   1,
		Levels:        3,
	}
	gen := sim.NewGenerator(cfg.Seed, moments)
	clock := feed.NewSimClock(time.Now())

	riskMgr := risk.NewManager(risk.Parameters{TradingEnabled: true, MaxCostAlphaRatio: fixedpoint.Ratio(fixedpoint.RatioScale * 2)},
		fixedpoint.Value(0), fixedpoint.Value(0), 0, 0, logger.With(zap.String("component", "risk"), zap.String("symbol", m.Symbol.String())))
	plannerCfg := execution.Config{
		MinSize:              fixedpoint.QuantityFromFloat64(0.001),
		MaxOrderSize:         fixedpoint.QuantityFromFloat64(1),
		AggressiveCrossTicks: 1,
		PassiveOffsetTicks:   1,
		ImpactCoeffBps:       fixedpoint.Rate(10),
		FeeBps:               fixedpoint.Rate(5),
	}
	agent := sim.NewTradingAgent("mean-reversion-1", m.Symbol, agentOwner, riskMgr, plannerCfg,
		fixedpoint.PriceFromFloat64(0.01), fixedpoint.QuantityFromFloat64(1000), logger)

	runner := sim.NewRunner(m.Symbol, refFeed, fab, gen, router, 100*time.Millisecond, clock, logger, agent)

	done := make(chan struct{})
	go func() {
		runner.RunTicks(maxTicks)
		close(done)
	}()

	select {
	case <-ctx.Done():
		runner.Stop()
		<-done
	case <-done:
	}

	metrics := runner.Metrics()
	logger.Info("simulation finished",
		zap.String("component", "tradecored"),
		zap.Int64("ticks", metrics.Ticks),
		zap.Int64("orders_submitted", metrics.OrdersSubmitted),
		zap.Int64("orders_filled", metrics.OrdersFilled))
}

func parseAccountID(s string) types.AccountID {
	ac := config.AccountConfig{Address: s}
	return ac.AccountID()
}

func parseSide(s string) types.Side {
	if s == "SELL" {
		return types.Sell
	}
	return types.Buy
}

func parseTIF(s string) types.TIF {
	switch s {
	case "IOC":
		return types.IOC
	case "FOK":
		return types.FOK
	default:
		return types.GTC
	}
}
