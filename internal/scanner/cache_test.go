package scanner

import (
	"testing"

	"trend_bot/internal/models"
)

func TestShouldEmitHoldNever(t *testing.T) {
	c := NewSignalCache()
	k := Key{UserID: 1, Symbol: "BTCUSDT", Timeframe: "30m"}

	if c.ShouldEmit(k, models.SignalHold) {
		t.Fatal("HOLD emitted")
	}
	if _, ok := c.Last(k); ok {
		t.Fatal("HOLD stored in cache")
	}
}

func TestShouldEmitDedupesSameDirection(t *testing.T) {
	c := NewSignalCache()
	k := Key{UserID: 1, Symbol: "BTCUSDT", Timeframe: "30m"}

	if !c.ShouldEmit(k, models.SignalLong) {
		t.Fatal("first LONG suppressed")
	}
	if c.ShouldEmit(k, models.SignalLong) {
		t.Fatal("repeated LONG emitted")
	}
	if got, _ := c.Last(k); got != models.SignalLong {
		t.Fatalf("Last() = %v, want LONG", got)
	}
}

func TestShouldEmitOnDirectionChange(t *testing.T) {
	c := NewSignalCache()
	k := Key{UserID: 1, Symbol: "BTCUSDT", Timeframe: "30m"}

	c.ShouldEmit(k, models.SignalLong)
	if !c.ShouldEmit(k, models.SignalShort) {
		t.Fatal("direction change suppressed")
	}
	// HOLD между сменами кэш не трогает: повторный SHORT всё ещё дубль
	c.ShouldEmit(k, models.SignalHold)
	if c.ShouldEmit(k, models.SignalShort) {
		t.Fatal("SHORT after HOLD emitted, cache must keep last direction")
	}
}

func TestCacheKeysAreIndependent(t *testing.T) {
	c := NewSignalCache()
	k1 := Key{UserID: 1, Symbol: "BTCUSDT", Timeframe: "30m"}
	k2 := Key{UserID: 1, Symbol: "BTCUSDT", Timeframe: "1h"}
	k3 := Key{UserID: 2, Symbol: "BTCUSDT", Timeframe: "30m"}

	c.ShouldEmit(k1, models.SignalLong)
	if !c.ShouldEmit(k2, models.SignalLong) {
		t.Fatal("other timeframe suppressed")
	}
	if !c.ShouldEmit(k3, models.SignalLong) {
		t.Fatal("other user suppressed")
	}
}

func TestReset(t *testing.T) {
	c := NewSignalCache()
	k := Key{UserID: 1, Symbol: "BTCUSDT", Timeframe: "30m"}

	c.ShouldEmit(k, models.SignalLong)
	c.Reset()

	if !c.ShouldEmit(k, models.SignalLong) {
		t.Fatal("LONG suppressed after reset")
	}
}
