package scanner

import (
	"context"

	"go.uber.org/fx"

	"trend_bot/internal/exchange"
	"trend_bot/internal/modules/config"
	"trend_bot/internal/store/pg"
	"trend_bot/internal/trader"
)

func Module() fx.Option {
	return fx.Module("scanner",
		fx.Provide(
			pg.NewStore,
			NewSignalCache,
			trader.NewDispatcher,
			New,

			// адаптеры под интерфейсы сканера
			func(s *pg.Store) Store { return s },
			func(s *pg.Store) trader.PositionStore { return s },
			func(d *trader.Dispatcher) Dispatcher { return d },

			// анонимный источник свечей
			func(cfg *config.Config) (MarketData, error) {
				v, err := exchange.New(cfg.MarketDataExchange, "", "", "")
				if err != nil {
					return nil, err
				}
				return v, nil
			},
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			s *Scanner,
			ctx context.Context,
		) {
			runCtx, cancel := context.WithCancel(ctx)
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go s.Run(runCtx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
