package scanner

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"trend_bot/internal/exchange"
	"trend_bot/internal/models"
	"trend_bot/internal/modules/config"
	"trend_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		ScanInterval:       time.Second,
		PairDelay:          0,
		ATRPeriod:          3,
		TrendWindow:        3,
		ReferenceSMAPeriod: 2,
		MinConfirmStreak:   1,
		BarsPerFetch:       12,
	}
}

func tbar(high, low, close float64) models.Bar {
	return models.Bar{High: high, Low: low, Close: close}
}

func flatSeries(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = tbar(101, 99, 100)
	}
	return bars
}

// longSeries — плоская история с пробоем вверх, Evaluate даёт LONG.
func longSeries() []models.Bar {
	bars := flatSeries(10)
	bars = append(bars, tbar(111, 103, 110))
	bars = append(bars, tbar(111, 109, 110))
	return bars
}

// shortSeries — зеркальный пробой вниз, Evaluate даёт SHORT.
func shortSeries() []models.Bar {
	bars := flatSeries(10)
	bars = append(bars, tbar(97, 89, 90))
	bars = append(bars, tbar(91, 89, 90))
	return bars
}

type fakeStore struct {
	pairs   []models.WatchedPair
	configs map[int64]*models.TradingConfig
	apis    map[int64][]models.ExchangeAPI
}

func (f *fakeStore) GetAllWatchedPairs(ctx context.Context) ([]models.WatchedPair, error) {
	return f.pairs, nil
}

func (f *fakeStore) GetTradingConfig(ctx context.Context, userID int64) (*models.TradingConfig, error) {
	return f.configs[userID], nil
}

func (f *fakeStore) GetExchangeAPIs(ctx context.Context, userID int64) ([]models.ExchangeAPI, error) {
	return f.apis[userID], nil
}

type fakeMarket struct {
	bars    map[string][]models.Bar
	failing map[string]bool
	fetches int
}

func (f *fakeMarket) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	f.fetches++
	if f.failing[symbol] {
		return nil, errors.Errorf("%s unavailable", symbol)
	}
	return f.bars[symbol], nil
}

type sent struct {
	chatID int64
	msg    string
}

type fakeNotifier struct {
	sent []sent
}

func (f *fakeNotifier) Send(chatID int64, msg string) {
	f.sent = append(f.sent, sent{chatID: chatID, msg: msg})
}

func (f *fakeNotifier) Sendf(chatID int64, format string, args ...any) {}

type dispatched struct {
	userID int64
	symbol string
	sig    models.Signal
}

type fakeDispatcher struct {
	calls []dispatched
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, userID int64, symbol string, sig models.Signal, venues []exchange.Named, cfg *models.TradingConfig) {
	f.calls = append(f.calls, dispatched{userID: userID, symbol: symbol, sig: sig})
}

func newTestScanner(store *fakeStore, market *fakeMarket) (*Scanner, *fakeNotifier, *fakeDispatcher) {
	n := &fakeNotifier{}
	d := &fakeDispatcher{}
	s := New(testConfig(), store, market, n, d, NewSignalCache())
	return s, n, d
}

func TestCycleEmitsOnceThenDedupes(t *testing.T) {
	store := &fakeStore{
		pairs:   []models.WatchedPair{{UserID: 7, Symbol: "BTCUSDT", Timeframe: "30m"}},
		configs: map[int64]*models.TradingConfig{7: {}},
	}
	market := &fakeMarket{bars: map[string][]models.Bar{"BTCUSDT": longSeries()}}
	s, n, _ := newTestScanner(store, market)

	s.runCycle(context.Background())
	if len(n.sent) != 1 {
		t.Fatalf("sent %d alerts, want 1", len(n.sent))
	}
	if n.sent[0].chatID != 7 || !strings.Contains(n.sent[0].msg, "BTCUSDT") {
		t.Fatalf("bad alert: %+v", n.sent[0])
	}

	// второй цикл с тем же направлением — без алертов
	s.runCycle(context.Background())
	if len(n.sent) != 1 {
		t.Fatalf("sent %d alerts after second cycle, want 1", len(n.sent))
	}
}

func TestDirectionChangeReemits(t *testing.T) {
	store := &fakeStore{
		pairs:   []models.WatchedPair{{UserID: 7, Symbol: "BTCUSDT", Timeframe: "30m"}},
		configs: map[int64]*models.TradingConfig{7: {}},
	}
	market := &fakeMarket{bars: map[string][]models.Bar{"BTCUSDT": longSeries()}}
	s, n, _ := newTestScanner(store, market)

	s.runCycle(context.Background())
	market.bars["BTCUSDT"] = shortSeries()
	s.runCycle(context.Background())

	if len(n.sent) != 2 {
		t.Fatalf("sent %d alerts, want 2 (LONG then SHORT)", len(n.sent))
	}
	if !strings.Contains(n.sent[1].msg, "SHORT") {
		t.Fatalf("second alert is not SHORT: %q", n.sent[1].msg)
	}
}

func TestHoldNeverNotifies(t *testing.T) {
	store := &fakeStore{
		pairs:   []models.WatchedPair{{UserID: 7, Symbol: "BTCUSDT", Timeframe: "30m"}},
		configs: map[int64]*models.TradingConfig{7: {}},
	}
	market := &fakeMarket{bars: map[string][]models.Bar{"BTCUSDT": flatSeries(12)}}
	s, n, d := newTestScanner(store, market)

	s.runCycle(context.Background())

	if len(n.sent) != 0 {
		t.Fatalf("sent %d alerts on flat market, want 0", len(n.sent))
	}
	if len(d.calls) != 0 {
		t.Fatalf("dispatched %d trades on flat market, want 0", len(d.calls))
	}
}

func TestShortHistoryIsNotAnError(t *testing.T) {
	store := &fakeStore{
		pairs:   []models.WatchedPair{{UserID: 7, Symbol: "NEWUSDT", Timeframe: "30m"}},
		configs: map[int64]*models.TradingConfig{7: {}},
	}
	market := &fakeMarket{bars: map[string][]models.Bar{"NEWUSDT": flatSeries(2)}}
	s, n, _ := newTestScanner(store, market)

	s.runCycle(context.Background())

	if len(n.sent) != 0 {
		t.Fatalf("sent %d alerts for pair without history, want 0", len(n.sent))
	}
}

func TestUserWithoutConfigSkipped(t *testing.T) {
	store := &fakeStore{
		pairs:   []models.WatchedPair{{UserID: 7, Symbol: "BTCUSDT", Timeframe: "30m"}},
		configs: map[int64]*models.TradingConfig{},
	}
	market := &fakeMarket{bars: map[string][]models.Bar{"BTCUSDT": longSeries()}}
	s, n, _ := newTestScanner(store, market)

	s.runCycle(context.Background())

	if market.fetches != 0 {
		t.Fatalf("fetched %d times for user without settings, want 0", market.fetches)
	}
	if len(n.sent) != 0 {
		t.Fatalf("sent %d alerts, want 0", len(n.sent))
	}
}

func TestPairErrorDoesNotStopCycle(t *testing.T) {
	store := &fakeStore{
		pairs: []models.WatchedPair{
			{UserID: 7, Symbol: "DEADUSDT", Timeframe: "30m"},
			{UserID: 7, Symbol: "BTCUSDT", Timeframe: "30m"},
		},
		configs: map[int64]*models.TradingConfig{7: {}},
	}
	market := &fakeMarket{
		bars:    map[string][]models.Bar{"BTCUSDT": longSeries()},
		failing: map[string]bool{"DEADUSDT": true},
	}
	s, n, _ := newTestScanner(store, market)

	s.runCycle(context.Background())

	if len(n.sent) != 1 {
		t.Fatalf("sent %d alerts, want 1 from the healthy pair", len(n.sent))
	}
	if !strings.Contains(n.sent[0].msg, "BTCUSDT") {
		t.Fatalf("alert from wrong pair: %q", n.sent[0].msg)
	}
}

func TestAutoTradeDispatchesOnSignal(t *testing.T) {
	store := &fakeStore{
		pairs:   []models.WatchedPair{{UserID: 7, Symbol: "BTCUSDT", Timeframe: "30m"}},
		configs: map[int64]*models.TradingConfig{7: {AutoTradeEnabled: true, Leverage: 10, MarginQty: 100}},
	}
	market := &fakeMarket{bars: map[string][]models.Bar{"BTCUSDT": longSeries()}}
	s, _, d := newTestScanner(store, market)

	s.runCycle(context.Background())

	if len(d.calls) != 1 {
		t.Fatalf("dispatched %d trades, want 1", len(d.calls))
	}
	got := d.calls[0]
	if got.userID != 7 || got.symbol != "BTCUSDT" || got.sig != models.SignalLong {
		t.Fatalf("dispatched %+v, want user 7 BTCUSDT LONG", got)
	}
}

func TestAutoTradeDisabledOnlyNotifies(t *testing.T) {
	store := &fakeStore{
		pairs:   []models.WatchedPair{{UserID: 7, Symbol: "BTCUSDT", Timeframe: "30m"}},
		configs: map[int64]*models.TradingConfig{7: {AutoTradeEnabled: false}},
	}
	market := &fakeMarket{bars: map[string][]models.Bar{"BTCUSDT": longSeries()}}
	s, n, d := newTestScanner(store, market)

	s.runCycle(context.Background())

	if len(n.sent) != 1 {
		t.Fatalf("sent %d alerts, want 1", len(n.sent))
	}
	if len(d.calls) != 0 {
		t.Fatalf("dispatched %d trades with auto-trade off, want 0", len(d.calls))
	}
}
