package pairs

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"

	"trend_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeSource struct {
	symbols []string
	err     error
}

func (f *fakeSource) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	return f.symbols, f.err
}

func TestLoadFromLiveSource(t *testing.T) {
	c := NewCache()
	c.Load(context.Background(), &fakeSource{
		symbols: []string{"ETHUSDT", "BTCUSDT", "SOLUSDT", "BTCUSDC"},
	})

	shorts := c.ShortNames()
	want := []string{"BTC", "ETH", "SOL"} // BTCUSDC отфильтрован, порядок алфавитный
	if len(shorts) != len(want) {
		t.Fatalf("ShortNames() = %v, want %v", shorts, want)
	}
	for i := range want {
		if shorts[i] != want[i] {
			t.Fatalf("ShortNames() = %v, want %v", shorts, want)
		}
	}

	full, ok := c.FullSymbol("btc")
	if !ok || full != "BTCUSDT" {
		t.Fatalf("FullSymbol(btc) = %q, %v", full, ok)
	}
	if _, ok := c.FullSymbol("DOGE"); ok {
		t.Fatal("FullSymbol(DOGE): unexpected hit")
	}
}

func TestLoadFallsBackOnError(t *testing.T) {
	c := NewCache()
	c.Load(context.Background(), &fakeSource{err: errors.New("451 blocked")})

	if len(c.ShortNames()) == 0 {
		t.Fatal("fallback list not loaded")
	}
	if full, ok := c.FullSymbol("BTC"); !ok || full != "BTCUSDT" {
		t.Fatalf("FullSymbol(BTC) = %q, %v after fallback", full, ok)
	}
}

func TestLetters(t *testing.T) {
	c := NewCache()
	c.Load(context.Background(), &fakeSource{
		symbols: []string{"ADAUSDT", "APTUSDT", "BTCUSDT"},
	})

	letters := c.Letters()
	if len(letters) != 2 || letters[0] != "A" || letters[1] != "B" {
		t.Fatalf("Letters() = %v, want [A B]", letters)
	}

	byA := c.ByLetter("a")
	if len(byA) != 2 || byA[0] != "ADA" || byA[1] != "APT" {
		t.Fatalf("ByLetter(a) = %v, want [ADA APT]", byA)
	}
}
