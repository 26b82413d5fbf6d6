package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"trend-engine/config"
	"trend-engine/internal/api"
	"trend-engine/internal/engine"
	"trend-engine/internal/events"
	"trend-engine/internal/logging"
	"trend-engine/internal/market"
	"trend-engine/internal/scanner"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	// .env is optional; environment overrides still apply without one.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	})
	logger.Info().Msg("starting trend engine")

	eventBus := events.NewBus()
	eventBus.SubscribeAll(func(ev events.Event) {
		logger.Debug().Str("event", string(ev.Type)).Interface("data", ev.Data).Msg("event")
	})

	provider := buildProvider(cfg, logger)

	eng, err := engine.New(cfg.Trend,
		engine.WithLogger(logging.NewAnalyzerSink(logger)),
		engine.WithHigherTimeframeProvider(provider),
		engine.WithEventBus(eventBus),
	)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	var sc *scanner.Scanner
	if cfg.Scanner.Enabled {
		sc = scanner.New(eng, provider, eventBus, cfg.Scanner, logger)
		sc.Start()
	}

	var stream *market.KlineStream
	if !cfg.Market.MockMode && cfg.Market.StreamURL != "" && cfg.Scanner.Enabled {
		stream = market.NewKlineStream(cfg.Market.StreamURL, func(symbol string, timeframe market.Timeframe, bar market.Bar) {
			logger.Debug().
				Str("symbol", symbol).
				Str("timeframe", string(timeframe)).
				Float64("close", bar.Close).
				Msg("bar closed")
		})
		for _, symbol := range cfg.Scanner.Symbols {
			stream.Subscribe(symbol, market.Timeframe(cfg.Scanner.Timeframe))
		}
		if err := stream.Start(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("kline stream unavailable, continuing with REST only")
			stream = nil
		}
	}

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(cfg.Server, eng, provider, sc, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("http server exited")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	if stream != nil {
		stream.Stop()
	}
	if sc != nil {
		sc.Stop()
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown error")
		}
	}

	logger.Info().Msg("shutdown complete")
}

// buildProvider assembles the bar provider chain: mock in offline mode,
// otherwise the REST client behind a redis or in-memory cache.
func buildProvider(cfg *config.Config, logger zerolog.Logger) market.BarProvider {
	if cfg.Market.MockMode {
		logger.Info().Msg("serving deterministic mock market data")
		return market.NewMockProvider()
	}

	client := market.NewClient(cfg.Market.BaseURL)

	var cache market.BarCache
	if cfg.Redis.Enabled {
		redisCache := market.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, using in-memory bar cache")
			cache = market.NewMemoryCache()
		} else {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis bar cache connected")
			cache = redisCache
		}
	} else {
		cache = market.NewMemoryCache()
	}

	return market.NewCachedProvider(client, cache)
}
