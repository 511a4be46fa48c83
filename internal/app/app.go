// Package app assembles the engine: world state store, detectors, scoring
// pipeline, sinks, and the read API, with lifecycle management.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/VrindaBansal/mevscope/internal/api"
	"github.com/VrindaBansal/mevscope/internal/config"
	"github.com/VrindaBansal/mevscope/pkg/amm"
	"github.com/VrindaBansal/mevscope/pkg/interfaces"
	"github.com/VrindaBansal/mevscope/pkg/mempool"
	"github.com/VrindaBansal/mevscope/pkg/metrics"
	"github.com/VrindaBansal/mevscope/pkg/processing"
	"github.com/VrindaBansal/mevscope/pkg/profit"
	"github.com/VrindaBansal/mevscope/pkg/scoring"
	"github.com/VrindaBansal/mevscope/pkg/sink"
	"github.com/VrindaBansal/mevscope/pkg/state"
	"github.com/VrindaBansal/mevscope/pkg/strategy"
	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Application owns every engine component and their lifecycle.
type Application struct {
	cfg *config.Config
	log *zap.Logger

	store        *state.Store
	pending      *mempool.PendingPool
	gas          *profit.GasEstimator
	scorer       *scoring.Scorer
	orchestrator *processing.Orchestrator
	server       *api.Server
	hub          *api.WebSocketHub

	rdb    *redis.Client
	pgPool *pgxpool.Pool
	pgSink *sink.PostgresSink

	events chan types.Event
	cancel context.CancelFunc
	done   chan struct{}
}

// NewApplication builds the full component graph from configuration.
func NewApplication(cfg *config.Config, log *zap.Logger) (*Application, error) {
	// Disabled monitoring registers into a throwaway registry, keeping
	// the scrape endpoint empty without nil checks at every call site.
	var reg prometheus.Registerer
	if !cfg.Monitoring.Enabled {
		reg = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector(reg)

	refs := make(map[common.Address]float64, len(cfg.State.ReferenceTokens))
	for addr, price := range cfg.State.ReferenceTokens {
		refs[common.HexToAddress(addr)] = price
	}
	prices := state.NewPriceIndex(refs)
	store := state.NewStore(log.Named("state"), prices, cfg.State.RetainBlocks)

	gas := profit.NewGasEstimator(profit.GasConfig{
		BaseGasPriceGwei: cfg.Gas.BaseGasPriceGwei,
		EWMAAlpha:        cfg.Gas.EWMAAlpha,
		NativeToken:      common.HexToAddress(cfg.Gas.NativeToken),
		NativeTokenUSD:   cfg.Gas.NativeTokenUSD,
	}, prices)
	valuer := profit.NewValuer(prices)
	curves := amm.NewRegistry()
	window := strategy.NewGasWindow(0)

	var detectors []interfaces.Detector
	if cfg.Detectors.Arbitrage.Enabled {
		detectors = append(detectors, strategy.NewArbitrageDetector(strategy.ArbitrageConfig{
			MaxHops:             cfg.Detectors.Arbitrage.MaxHops,
			ProbeNotionalUSD:    cfg.Detectors.Arbitrage.ProbeNotionalUSD,
			MinNetProfitUSD:     cfg.Detectors.Arbitrage.MinNetProfitUSD,
			HopConfidenceDecay:  cfg.Detectors.Arbitrage.HopConfidenceDecay,
			PriceStalenessBound: cfg.Detectors.Arbitrage.PriceStalenessBound,
		}, curves, gas, log.Named("arbitrage")))
	}
	if cfg.Detectors.Liquidation.Enabled {
		detectors = append(detectors, strategy.NewLiquidationMonitor(strategy.LiquidationConfig{
			MinDeltaToReEmit:    cfg.Detectors.Liquidation.MinDeltaToReEmit,
			PriceStalenessBound: cfg.Detectors.Liquidation.PriceStalenessBound,
			RecomputeWorkers:    cfg.Detectors.Liquidation.RecomputeWorkers,
			BatchSize:           cfg.Detectors.Liquidation.BatchSize,
		}, valuer, gas, log.Named("liquidation")))
	}
	if cfg.Detectors.Sandwich.Enabled {
		detectors = append(detectors, strategy.NewSandwichDetector(strategy.SandwichConfig{
			MaxCapitalUSD:            cfg.Detectors.Sandwich.MaxCapitalUSD,
			MinVictimAmountUSD:       cfg.Detectors.Sandwich.MinVictimAmountUSD,
			MinNetProfitUSD:          cfg.Detectors.Sandwich.MinNetProfitUSD,
			BaseConfidence:           cfg.Detectors.Sandwich.BaseConfidence,
			CompetitionPenaltyWeight: cfg.Detectors.Sandwich.CompetitionPenaltyWeight,
			PriceStalenessBound:      cfg.Detectors.Sandwich.PriceStalenessBound,
		}, curves, valuer, gas, window, log.Named("sandwich")))
	}

	app := &Application{
		cfg:    cfg,
		log:    log,
		store:  store,
		gas:    gas,
		events: make(chan types.Event, cfg.Processing.QueueSize),
	}

	app.hub = api.NewWebSocketHub(log.Named("ws"))
	sinks := []interfaces.OpportunitySink{sink.NewLogSink(log.Named("emit")), app.hub}

	if cfg.Sinks.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Sinks.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		app.rdb = redis.NewClient(opts)
		sinks = append(sinks, sink.NewRedisSink(app.rdb, cfg.Sinks.RedisChannel))
	}
	if cfg.Sinks.PostgresURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Sinks.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}
		app.pgPool = pool
		app.pgSink = sink.NewPostgresSink(pool)
		sinks = append(sinks, app.pgSink)
	}

	fanout := sink.NewFanout(log.Named("sinks"), sinks...)
	app.scorer = scoring.NewScorer(scoring.Config{
		MinNetProfitUSD: cfg.Scoring.MinNetProfitUSD,
		MinConfidence:   cfg.Scoring.MinConfidence,
		MaxCandidateAge: cfg.Scoring.MaxCandidateAge,
		DedupWindow:     cfg.Scoring.DedupWindow,
		ReEmitDelta:     cfg.Scoring.ReEmitDelta,
		IntakeBuffer:    cfg.Scoring.IntakeBuffer,
		OfferTimeout:    cfg.Scoring.OfferTimeout,
	}, []interfaces.OpportunitySink{fanout}, collector, log.Named("scoring"))

	app.pending = mempool.NewPendingPool(log.Named("mempool"), cfg.Mempool.TTL)
	app.orchestrator = processing.NewOrchestrator(processing.Config{
		Workers:         cfg.Processing.Workers,
		QueueSize:       cfg.Processing.QueueSize,
		DetectorTimeout: cfg.Processing.DetectorTimeout,
	}, store, app.scorer, app.pending, gas, detectors, collector, log.Named("processing"))

	handlers := api.NewHandlers(store, app.scorer, app.pending, app.hub, log.Named("api"))
	app.server = api.NewServer(cfg.Server, handlers, app.hub, log.Named("api"))

	return app, nil
}

// Events is the intake channel external feed adapters push decoded events
// into.
func (a *Application) Events() chan<- types.Event { return a.events }

// Store exposes the world state store for feed adapters that register
// pools ahead of the event stream.
func (a *Application) Store() *state.Store { return a.store }

// Start brings every component up and begins consuming events.
func (a *Application) Start(ctx context.Context) error {
	if a.pgSink != nil {
		if err := a.pgSink.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if err := a.scorer.Start(ctx); err != nil {
		return err
	}
	if err := a.server.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.pending.Run(runCtx)
	go func() {
		defer close(a.done)
		if err := a.orchestrator.Run(runCtx, a.events); err != nil && runCtx.Err() == nil {
			a.log.Error("orchestrator stopped", zap.Error(err))
		}
	}()

	a.log.Info("engine started",
		zap.String("api", fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)),
		zap.Bool("redis_sink", a.rdb != nil),
		zap.Bool("postgres_sink", a.pgPool != nil))
	return nil
}

// Stop shuts the engine down in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
		select {
		case <-a.done:
		case <-time.After(5 * time.Second):
			a.log.Warn("orchestrator did not drain in time")
		}
	}
	if err := a.server.Stop(ctx); err != nil {
		a.log.Warn("api server stop", zap.Error(err))
	}
	if err := a.scorer.Stop(ctx); err != nil {
		a.log.Warn("scorer stop", zap.Error(err))
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("redis close", zap.Error(err))
		}
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	a.log.Info("engine stopped")
	return nil
}

// NewLogger builds the process logger from the configured level.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	return zcfg.Build()
}

// Module provides the fx module for dependency injection.
var Module = fx.Options(
	fx.Provide(
		NewLogger,
		NewApplication,
	),
)
