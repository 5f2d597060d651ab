package exchange

import (
	"context"

	"github.com/pkg/errors"

	"trend_bot/internal/models"
)

// Order — нормализованный ответ биржи на размещение ордера.
// AvgPrice/Price могут быть нулевыми, если биржа их не вернула —
// диспетчер в этом случае подставляет цену до ордера.
type Order struct {
	ID       string
	AvgPrice float64
	Price    float64
	Status   string
}

// Venue — единый контракт адаптера биржи. Одна реализация на биржу,
// выбирается через реестр по имени. Специфику бирж (hedge mode, строки
// маржи, округление количества) адаптеры прячут за этим интерфейсом.
type Venue interface {
	Initialize(ctx context.Context) error
	GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error)
	GetFuturesSymbols(ctx context.Context) ([]string, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol, mode string) error
	OpenPosition(ctx context.Context, symbol string, side models.Signal, quantity float64, leverage int, marginMode string) (*Order, error)
	ClosePosition(ctx context.Context, symbol string, side models.Signal) (*Order, error)
	GetBalance(ctx context.Context) (float64, error)
	// CloseConnection обязан быть идемпотентным и не инвалидировать
	// адаптер: его зовут и диспетчер после каждой отправки, и сканер
	// при освобождении адаптеров цикла.
	CloseConnection() error
}

// Named — адаптер вместе с именем биржи, под которым он записан у юзера.
type Named struct {
	Name  string
	Venue Venue
}

type factory func(apiKey, apiSecret, passphrase string) Venue

var registry = map[string]factory{
	"Binance": func(key, secret, _ string) Venue { return NewBinance(key, secret) },
	"BingX":   func(key, secret, _ string) Venue { return NewBingX(key, secret) },
	"Bybit":   func(key, secret, _ string) Venue { return NewBybit(key, secret) },
	"MEXC":    func(key, secret, _ string) Venue { return NewMEXC(key, secret) },
	"OKX":     func(key, secret, passphrase string) Venue { return NewOKX(key, secret, passphrase) },
}

// New создаёт адаптер по имени биржи.
func New(name, apiKey, apiSecret, passphrase string) (Venue, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown exchange %q", name)
	}
	return f(apiKey, apiSecret, passphrase), nil
}

// ForUser собирает адаптеры по включённым ключам пользователя.
// Неизвестные имена бирж пропускаются.
func ForUser(apis []models.ExchangeAPI) []Named {
	out := make([]Named, 0, len(apis))
	for _, api := range apis {
		if !api.IsEnabled {
			continue
		}
		v, err := New(api.ExchangeName, api.APIKey, api.APISecret, api.Passphrase)
		if err != nil {
			continue
		}
		out = append(out, Named{Name: api.ExchangeName, Venue: v})
	}
	return out
}
