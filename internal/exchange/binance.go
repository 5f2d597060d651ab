package exchange

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"trend_bot/internal/models"
)

// Binance — адаптер USDT-M фьючерсов Binance. Без ключей работает как
// анонимный источник свечей для сканера.
type Binance struct {
	futures *futures.Client
}

func NewBinance(apiKey, apiSecret string) *Binance {
	return &Binance{
		futures: futures.NewClient(apiKey, apiSecret),
	}
}

func (c *Binance) Initialize(ctx context.Context) error {
	if _, err := c.futures.NewServerTimeService().Do(ctx); err != nil {
		return fmt.Errorf("binance ping: %w", err)
	}
	return nil
}

// GetKlines возвращает свечи по возрастанию времени, последняя — текущая.
func (c *Binance) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}

	bars := make([]models.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, models.Bar{
			Timestamp: time.UnixMilli(k.OpenTime),
			Open:      parseF(k.Open),
			High:      parseF(k.High),
			Low:       parseF(k.Low),
			Close:     parseF(k.Close),
			Volume:    parseF(k.Volume),
		})
	}
	return bars, nil
}

// GetKlinesFrom — страничная выборка истории от startTime, для бэктеста.
func (c *Binance) GetKlinesFrom(ctx context.Context, symbol, timeframe string, startTime time.Time, limit int) ([]models.Bar, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		StartTime(startTime.UnixMilli()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}

	bars := make([]models.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, models.Bar{
			Timestamp: time.UnixMilli(k.OpenTime),
			Open:      parseF(k.Open),
			High:      parseF(k.High),
			Low:       parseF(k.Low),
			Close:     parseF(k.Close),
			Volume:    parseF(k.Volume),
		})
	}
	return bars, nil
}

func (c *Binance) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	info, err := c.futures.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset != "USDT" || s.Status != "TRADING" {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	return symbols, nil
}

func (c *Binance) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := c.futures.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("binance set leverage: %w", err)
	}
	return nil
}

func (c *Binance) SetMarginMode(ctx context.Context, symbol, mode string) error {
	marginType := futures.MarginTypeCrossed
	if strings.EqualFold(mode, "isolated") {
		marginType = futures.MarginTypeIsolated
	}
	err := c.futures.NewChangeMarginTypeService().
		Symbol(symbol).
		MarginType(marginType).
		Do(ctx)
	if err != nil {
		// повторная установка того же режима — не ошибка
		if strings.Contains(err.Error(), "No need to change margin type") {
			return nil
		}
		return fmt.Errorf("binance set margin mode: %w", err)
	}
	return nil
}

func (c *Binance) OpenPosition(ctx context.Context, symbol string, side models.Signal, quantity float64, leverage int, marginMode string) (*Order, error) {
	if err := c.SetMarginMode(ctx, symbol, marginMode); err != nil {
		return nil, err
	}
	if err := c.SetLeverage(ctx, symbol, leverage); err != nil {
		return nil, err
	}

	orderSide := futures.SideTypeBuy
	if side == models.SignalShort {
		orderSide = futures.SideTypeSell
	}

	resp, err := c.futures.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(quantity)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance open position: %w", err)
	}

	return &Order{
		ID:       strconv.FormatInt(resp.OrderID, 10),
		AvgPrice: parseF(resp.AvgPrice),
		Price:    parseF(resp.Price),
		Status:   string(resp.Status),
	}, nil
}

func (c *Binance) ClosePosition(ctx context.Context, symbol string, side models.Signal) (*Order, error) {
	positions, err := c.futures.NewGetPositionRiskService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance positions: %w", err)
	}

	for _, p := range positions {
		amt := parseF(p.PositionAmt)
		if amt == 0 {
			continue
		}
		closeSide := futures.SideTypeSell
		if amt < 0 {
			closeSide = futures.SideTypeBuy
		}
		resp, err := c.futures.NewCreateOrderService().
			Symbol(symbol).
			Side(closeSide).
			Type(futures.OrderTypeMarket).
			Quantity(formatQty(math.Abs(amt))).
			ReduceOnly(true).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance close position: %w", err)
		}
		return &Order{
			ID:       strconv.FormatInt(resp.OrderID, 10),
			AvgPrice: parseF(resp.AvgPrice),
			Price:    parseF(resp.Price),
			Status:   string(resp.Status),
		}, nil
	}
	return nil, nil
}

func (c *Binance) GetBalance(ctx context.Context) (float64, error) {
	balances, err := c.futures.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance balance: %w", err)
	}
	for _, b := range balances {
		if b.Asset == "USDT" {
			return parseF(b.Balance), nil
		}
	}
	return 0, nil
}

// CloseConnection — у REST-клиента нет постоянного соединения.
func (c *Binance) CloseConnection() error { return nil }

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
