package models

import "time"

// Signal — направление, которое выдаёт индикатор по последней свече.
type Signal string

const (
	SignalHold  Signal = "HOLD"
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
)

// Bar — закрытая свеча. Серии всегда упорядочены по времени,
// последняя свеча — самая свежая.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// HL2 — середина свечи, от неё считается якорная цена канала.
func (b Bar) HL2() float64 {
	return (b.High + b.Low) / 2
}

// WatchedPair — что сканируем: пользователь + символ + таймфрейм.
type WatchedPair struct {
	UserID    int64  `json:"user_id"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// TradingConfig — торговые настройки пользователя, хранятся в user_settings.
type TradingConfig struct {
	Leverage         int     `json:"leverage"`
	MarginQty        float64 `json:"margin_qty"`
	MarginMode       string  `json:"margin_mode"` // cross | isolated
	TPPercent        float64 `json:"tp_percent"`
	SLPercent        float64 `json:"sl_percent"`
	AutoTradeEnabled bool    `json:"auto_trade_enabled"`
}

// ExchangeAPI — ключи пользователя для одной биржи.
type ExchangeAPI struct {
	UserID       int64  `json:"user_id"`
	ExchangeName string `json:"exchange_name"`
	APIKey       string `json:"api_key"`
	APISecret    string `json:"api_secret"`
	Passphrase   string `json:"passphrase"`
	IsEnabled    bool   `json:"is_enabled"`
}

// OpenPosition — запись об открытой позиции после успешного ордера.
type OpenPosition struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"user_id"`
	ExchangeName string  `json:"exchange_name"`
	Symbol       string  `json:"symbol"`
	Side         Signal  `json:"side"`
	EntryPrice   float64 `json:"entry_price"`
	Quantity     float64 `json:"quantity"`
	TPPrice      float64 `json:"tp_price"`
	SLPrice      float64 `json:"sl_price"`
	OrderID      string  `json:"order_id"`
}
