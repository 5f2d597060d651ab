package main

import (
	"context"

	"go.uber.org/fx"

	"trend_bot/internal/modules/config"
	"trend_bot/internal/modules/postgres"
	"trend_bot/internal/notify"
	"trend_bot/internal/pairs"
	"trend_bot/internal/scanner"
	"trend_bot/pkg/logger"
	"trend_bot/pkg/tracing"
)

func main() {
	logger.Init()
	logger.SetServiceName("trend_bot")
	tracing.SetServiceName("trend_bot")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			// Notifier: если токена нет — используем stdout
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token); err == nil {
						return tg
					}
				}
				return notify.NewStdout()
			},
			pairs.NewCache,
		),
		config.Module(),
		postgres.Module(),
		scanner.Module(),
		fx.Invoke(
			setupTracing,
			loadPairCache,
		),
	)
	app.Run()
}

func setupTracing(lc fx.Lifecycle, cfg *config.Config) {
	if cfg.Jaeger.Host == "" {
		return
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		logger.Error("tracing init failed: %v", err)
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			return nil
		},
	})
}

// loadPairCache наполняет кэш имён контрактов на старте, как post_init.
func loadPairCache(lc fx.Lifecycle, cache *pairs.Cache, md scanner.MarketData, ctx context.Context) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if src, ok := md.(pairs.SymbolSource); ok {
				go cache.Load(ctx, src)
			}
			return nil
		},
	})
}
