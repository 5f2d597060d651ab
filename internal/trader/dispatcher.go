package trader

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"trend_bot/internal/exchange"
	"trend_bot/internal/models"
	"trend_bot/pkg/logger"
)

// лимит на все вызовы одной биржи при исполнении сигнала; зависшая
// биржа не должна останавливать обход остальных
const venueTimeout = 15 * time.Second

// PositionStore — куда диспетчер пишет открытые позиции.
type PositionStore interface {
	AddOpenPosition(ctx context.Context, pos models.OpenPosition) error
}

// Dispatcher превращает подтверждённый сигнал в рыночные ордера
// на всех включённых биржах пользователя. Ошибка на одной бирже
// не мешает остальным.
type Dispatcher struct {
	store PositionStore
}

func NewDispatcher(store PositionStore) *Dispatcher {
	return &Dispatcher{store: store}
}

func (d *Dispatcher) Dispatch(
	ctx context.Context,
	userID int64,
	symbol string,
	sig models.Signal,
	venues []exchange.Named,
	cfg *models.TradingConfig,
) {
	if len(venues) == 0 || cfg == nil {
		return
	}

	for _, v := range venues {
		if err := d.dispatchOne(ctx, userID, symbol, sig, v, cfg); err != nil {
			logger.Error("auto-trade on %s for user %d failed: %v", v.Name, userID, err)
			continue
		}
		logger.Info("user %d auto-traded %s %s on %s", userID, symbol, sig, v.Name)
	}
}

func (d *Dispatcher) dispatchOne(
	ctx context.Context,
	userID int64,
	symbol string,
	sig models.Signal,
	v exchange.Named,
	cfg *models.TradingConfig,
) (err error) {
	ctx, cancel := context.WithTimeout(ctx, venueTimeout)
	defer cancel()

	// соединение освобождаем всегда, даже если упали на полпути
	defer func() {
		if cerr := v.Venue.CloseConnection(); cerr != nil {
			logger.Error("close %s connection: %v", v.Name, cerr)
		}
	}()

	bars, err := v.Venue.GetKlines(ctx, symbol, "1m", 1)
	if err != nil {
		return errors.Wrap(err, "fetch price")
	}
	if len(bars) == 0 {
		return errors.New("no price data")
	}
	currentPrice := bars[len(bars)-1].Close
	if currentPrice <= 0 {
		return errors.Errorf("bad current price %.8f", currentPrice)
	}

	quantity := Quantity(cfg.MarginQty, cfg.Leverage, currentPrice)

	order, err := v.Venue.OpenPosition(ctx, symbol, sig, quantity, cfg.Leverage, cfg.MarginMode)
	if err != nil {
		return errors.Wrap(err, "open position")
	}
	if order == nil {
		return errors.New("venue returned no order")
	}

	entry := order.AvgPrice
	if entry == 0 {
		entry = order.Price
	}
	if entry == 0 {
		entry = currentPrice
	}

	tp, sl := TakeProfitStopLoss(entry, sig, cfg.TPPercent, cfg.SLPercent)

	err = d.store.AddOpenPosition(ctx, models.OpenPosition{
		UserID:       userID,
		ExchangeName: v.Name,
		Symbol:       symbol,
		Side:         sig,
		EntryPrice:   entry,
		Quantity:     quantity,
		TPPrice:      tp,
		SLPrice:      sl,
		OrderID:      order.ID,
	})
	if err != nil {
		return errors.Wrap(err, "persist position")
	}
	return nil
}

// Quantity — размер ордера в базовой валюте: нотионал (маржа * плечо),
// делённый на текущую цену.
func Quantity(marginQty float64, leverage int, price float64) float64 {
	return marginQty * float64(leverage) / price
}

// TakeProfitStopLoss считает TP/SL в процентах от входа.
func TakeProfitStopLoss(entry float64, side models.Signal, tpPercent, slPercent float64) (tp, sl float64) {
	if side == models.SignalLong {
		tp = entry * (1 + tpPercent/100)
		sl = entry * (1 - slPercent/100)
	} else {
		tp = entry * (1 - tpPercent/100)
		sl = entry * (1 + slPercent/100)
	}
	return tp, sl
}
