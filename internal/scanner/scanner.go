package scanner

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"trend_bot/internal/exchange"
	"trend_bot/internal/indicator"
	"trend_bot/internal/models"
	"trend_bot/internal/modules/config"
	"trend_bot/internal/notify"
	"trend_bot/pkg/logger"
)

// лимит на один запрос свечей; зависший источник не должен
// останавливать весь цикл
const fetchTimeout = 15 * time.Second

// Store — чтение вотчлистов и настроек. Реестр принадлежит внешнему
// хранилищу, сканер его только читает.
type Store interface {
	GetAllWatchedPairs(ctx context.Context) ([]models.WatchedPair, error)
	GetTradingConfig(ctx context.Context, userID int64) (*models.TradingConfig, error)
	GetExchangeAPIs(ctx context.Context, userID int64) ([]models.ExchangeAPI, error)
}

// MarketData — анонимный источник свечей для расчёта сигналов.
type MarketData interface {
	GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error)
}

// Dispatcher — исполнение подтверждённого сигнала.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, symbol string, sig models.Signal, venues []exchange.Named, cfg *models.TradingConfig)
}

// Scanner раз в интервал обходит все отслеживаемые пары, считает сигнал
// и шлёт алерт (и ордера) только при смене направления. Кэш дедупликации —
// единственное разделяемое состояние, им владеет сканер.
type Scanner struct {
	cfg    *config.Config
	params indicator.Params

	store  Store
	market MarketData
	n      notify.Notifier
	trader Dispatcher
	cache  *SignalCache
}

func New(
	cfg *config.Config,
	store Store,
	market MarketData,
	n notify.Notifier,
	trader Dispatcher,
	cache *SignalCache,
) *Scanner {
	return &Scanner{
		cfg: cfg,
		params: indicator.Params{
			ATRPeriod:          cfg.ATRPeriod,
			TrendWindow:        cfg.TrendWindow,
			ReferenceSMAPeriod: cfg.ReferenceSMAPeriod,
			MinConfirmStreak:   cfg.MinConfirmStreak,
		},
		store:  store,
		market: market,
		n:      n,
		trader: trader,
		cache:  cache,
	}
}

// Run крутит циклы до отмены контекста. Цикл всегда доживает до конца
// и перезапускается по тикеру, что бы внутри ни сломалось.
func (s *Scanner) Run(ctx context.Context) {
	logger.Info("scanner started: interval=%s pairs_limit=%d", s.cfg.ScanInterval, s.cfg.FetchLimit())

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			logger.Info("scanner stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scanner) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scanner cycle panic: %v", r)
		}
	}()

	span := opentracing.StartSpan("scan_cycle")
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	pairs, err := s.store.GetAllWatchedPairs(ctx)
	if err != nil {
		logger.Error("scanner: get watched pairs: %v", err)
		return
	}
	if len(pairs) == 0 {
		return
	}

	// группируем по пользователю, сохраняя порядок обхода
	var order []int64
	byUser := make(map[int64][]models.WatchedPair)
	for _, p := range pairs {
		if _, ok := byUser[p.UserID]; !ok {
			order = append(order, p.UserID)
		}
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}

	for _, userID := range order {
		if ctx.Err() != nil {
			return
		}
		s.scanUser(ctx, userID, byUser[userID])
	}
}

// scanUser обрабатывает пары одного пользователя. Адаптеры бирж создаются
// один раз на цикл и освобождаются в любом случае.
func (s *Scanner) scanUser(ctx context.Context, userID int64, pairs []models.WatchedPair) {
	cfg, err := s.store.GetTradingConfig(ctx, userID)
	if err != nil {
		logger.Error("scanner: trading config for %d: %v", userID, err)
		return
	}
	if cfg == nil {
		// пользователь без настроек пропускается до следующего цикла
		return
	}

	var venues []exchange.Named
	if cfg.AutoTradeEnabled {
		apis, err := s.store.GetExchangeAPIs(ctx, userID)
		if err != nil {
			logger.Error("scanner: exchange apis for %d: %v", userID, err)
		} else {
			venues = exchange.ForUser(apis)
		}
	}
	defer releaseVenues(venues)

	for _, pair := range pairs {
		if ctx.Err() != nil {
			return
		}
		if err := s.scanPair(ctx, pair, cfg, venues); err != nil {
			logger.Error("error scanning %s %s for %d: %v", pair.Symbol, pair.Timeframe, pair.UserID, err)
		}
		sleepCtx(ctx, s.cfg.PairDelay) // rate limiting
	}
}

func (s *Scanner) scanPair(ctx context.Context, pair models.WatchedPair, cfg *models.TradingConfig, venues []exchange.Named) error {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	bars, err := s.market.GetKlines(fetchCtx, pair.Symbol, pair.Timeframe, s.cfg.FetchLimit())
	if err != nil {
		return err
	}
	if len(bars) < s.params.ATRPeriod {
		// мало истории — это не ошибка, сигнала просто нет
		return nil
	}

	sig := indicator.Evaluate(bars, s.params)

	key := Key{UserID: pair.UserID, Symbol: pair.Symbol, Timeframe: pair.Timeframe}
	if !s.cache.ShouldEmit(key, sig) {
		return nil
	}

	logger.Info("new signal %s for %s %s (user %d)", sig, pair.Symbol, pair.Timeframe, pair.UserID)
	s.n.Send(pair.UserID, notify.SignalMessage(pair, sig, cfg.AutoTradeEnabled))

	if cfg.AutoTradeEnabled {
		s.trader.Dispatch(ctx, pair.UserID, pair.Symbol, sig, venues, cfg)
	}
	return nil
}

func releaseVenues(venues []exchange.Named) {
	for _, v := range venues {
		if err := v.Venue.CloseConnection(); err != nil {
			logger.Error("release %s connection: %v", v.Name, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
