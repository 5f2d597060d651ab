package exchange

import (
	"testing"

	"trend_bot/internal/models"
)

func TestNewKnownAndUnknown(t *testing.T) {
	for _, name := range []string{"Binance", "BingX", "Bybit", "MEXC", "OKX"} {
		v, err := New(name, "k", "s", "p")
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if v == nil {
			t.Fatalf("New(%s) returned nil venue", name)
		}
	}

	if _, err := New("Kraken", "k", "s", ""); err == nil {
		t.Fatal("New(Kraken): want error for unknown exchange")
	}
}

func TestForUserSkipsDisabledAndUnknown(t *testing.T) {
	apis := []models.ExchangeAPI{
		{ExchangeName: "Binance", IsEnabled: true},
		{ExchangeName: "OKX", IsEnabled: false},
		{ExchangeName: "Kraken", IsEnabled: true},
		{ExchangeName: "Bybit", IsEnabled: true},
	}

	venues := ForUser(apis)
	if len(venues) != 2 {
		t.Fatalf("ForUser() = %d venues, want 2", len(venues))
	}
	if venues[0].Name != "Binance" || venues[1].Name != "Bybit" {
		t.Fatalf("ForUser() = %s, %s; want Binance, Bybit", venues[0].Name, venues[1].Name)
	}
}

func TestOKXInstID(t *testing.T) {
	if got := okxInstID("BTCUSDT"); got != "BTC-USDT-SWAP" {
		t.Fatalf("okxInstID(BTCUSDT) = %q", got)
	}
	// не-USDT символ остаётся как есть
	if got := okxInstID("BTCBUSD"); got != "BTCBUSD" {
		t.Fatalf("okxInstID(BTCBUSD) = %q", got)
	}
}

func TestOKXBar(t *testing.T) {
	cases := map[string]string{"1m": "1m", "30m": "30m", "4h": "4H", "1d": "1D"}
	for in, want := range cases {
		if got := okxBar(in); got != want {
			t.Fatalf("okxBar(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestBybitInterval(t *testing.T) {
	cases := map[string]string{
		"1m": "1", "30m": "30",
		"1h": "60", "4h": "240", "12h": "720",
		"1d": "D", "1w": "W",
	}
	for in, want := range cases {
		if got := bybitInterval(in); got != want {
			t.Fatalf("bybitInterval(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestBingXSymbol(t *testing.T) {
	if got := bingxSymbol("BTCUSDT"); got != "BTC-USDT" {
		t.Fatalf("bingxSymbol(BTCUSDT) = %q", got)
	}
	if got := bingxSymbol("BTCBUSD"); got != "BTCBUSD" {
		t.Fatalf("bingxSymbol(BTCBUSD) = %q", got)
	}
}

func TestMEXCSymbol(t *testing.T) {
	if got := mexcSymbol("BTCUSDT"); got != "BTC_USDT" {
		t.Fatalf("mexcSymbol(BTCUSDT) = %q", got)
	}
	if got := mexcSymbol("BTCBUSD"); got != "BTCBUSD" {
		t.Fatalf("mexcSymbol(BTCBUSD) = %q", got)
	}
}

func TestMEXCInterval(t *testing.T) {
	cases := map[string]string{
		"1m": "Min1", "30m": "Min30",
		"1h": "Min60", "4h": "Hour4",
		"1d": "Day1", "1w": "Week1",
	}
	for in, want := range cases {
		if got := mexcInterval(in); got != want {
			t.Fatalf("mexcInterval(%s) = %q, want %q", in, got, want)
		}
	}
	// этих таймфреймов у contract v1 нет
	for _, in := range []string{"3m", "3d"} {
		if got := mexcInterval(in); got != "" {
			t.Fatalf("mexcInterval(%s) = %q, want empty", in, got)
		}
	}
}

func TestFormatQty(t *testing.T) {
	if got := formatQty(0.02); got != "0.02" {
		t.Fatalf("formatQty(0.02) = %q", got)
	}
	if got := formatQty(1); got != "1" {
		t.Fatalf("formatQty(1) = %q", got)
	}
}
