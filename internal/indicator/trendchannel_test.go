package indicator

import (
	"math"
	"testing"
	"time"

	"trend_bot/internal/models"
)

// Маленькие параметры, чтобы сценарии считались руками.
var testParams = Params{
	ATRPeriod:          3,
	TrendWindow:        3,
	ReferenceSMAPeriod: 2,
	MinConfirmStreak:   1,
}

func bar(high, low, close float64) models.Bar {
	return models.Bar{High: high, Low: low, Close: close}
}

// flatBars — n одинаковых свечей: close=100, канал 98..102, тренд не определён.
func flatBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = bar(101, 99, 100)
		bars[i].Timestamp = ts.Add(time.Duration(i) * 30 * time.Minute)
	}
	return bars
}

func TestEvaluateShortSeriesHolds(t *testing.T) {
	bars := flatBars(10)
	// дефолтный ATRPeriod=200 — данных заведомо мало
	if got := Evaluate(bars, DefaultParams()); got != models.SignalHold {
		t.Fatalf("Evaluate() = %v, want HOLD for short series", got)
	}
	if got := Evaluate(nil, testParams); got != models.SignalHold {
		t.Fatalf("Evaluate(nil) = %v, want HOLD", got)
	}
}

func TestFlatSeriesStaysUndetermined(t *testing.T) {
	bars := flatBars(20)
	s := Compute(bars, testParams)

	for i := range bars {
		if s.Flip[i] {
			t.Fatalf("unexpected flip at bar %d", i)
		}
		if s.Trend[i] != TrendUndetermined {
			t.Fatalf("Trend[%d] = %v, want UNDETERMINED", i, s.Trend[i])
		}
	}
	if !math.IsNaN(s.Anchor[len(bars)-1]) {
		t.Fatalf("Anchor = %v, want NaN before first flip", s.Anchor[len(bars)-1])
	}
	if got := Evaluate(bars, testParams); got != models.SignalHold {
		t.Fatalf("Evaluate() = %v, want HOLD", got)
	}
}

func TestWarmupHasNoCrossings(t *testing.T) {
	// резкий рост на второй свече: NaN в канале не должны дать пересечение
	bars := flatBars(2)
	bars[1] = bar(121, 113, 120)

	s := Compute(bars, testParams)
	if s.Flip[1] {
		t.Fatal("flip on warmup bar, channel is not ready yet")
	}
}

func TestBreakoutUpFlipsTrend(t *testing.T) {
	bars := flatBars(10)
	// пробой вверх: close=110 > upper=108.33, якорь = hl2 = 107
	bars = append(bars, bar(111, 103, 110))
	// ref SMA догоняет якорь: (107+110)/2 = 108.5 > 107 — свеча цветная
	bars = append(bars, bar(111, 109, 110))

	s := Compute(bars, testParams)

	if !s.Flip[10] {
		t.Fatal("no flip on breakout bar")
	}
	if s.Trend[10] != TrendUp {
		t.Fatalf("Trend[10] = %v, want UP", s.Trend[10])
	}
	if s.Anchor[10] != 107 {
		t.Fatalf("Anchor[10] = %v, want 107 (hl2 of flip bar)", s.Anchor[10])
	}
	// сразу после пробоя якорь выше опорной SMA — серая зона
	if s.Color[10] {
		t.Fatal("flip bar colored, want gray until ref catches up")
	}
	if !s.Color[11] || s.Streak[11] != 1 {
		t.Fatalf("Color[11]=%v Streak[11]=%d, want colored with streak 1", s.Color[11], s.Streak[11])
	}
	if got := Evaluate(bars, testParams); got != models.SignalLong {
		t.Fatalf("Evaluate() = %v, want LONG", got)
	}
}

func TestBreakdownFlipsTrendDown(t *testing.T) {
	bars := flatBars(10)
	// пробой вниз: close=90 < lower=91.67, якорь = hl2 = 93
	bars = append(bars, bar(97, 89, 90))
	// ref = (93+90)/2 = 91.5 < 93 — цветная
	bars = append(bars, bar(91, 89, 90))

	s := Compute(bars, testParams)

	if !s.Flip[10] || s.Trend[10] != TrendDown {
		t.Fatalf("Flip[10]=%v Trend[10]=%v, want flip to DOWN", s.Flip[10], s.Trend[10])
	}
	if s.Anchor[10] != 93 {
		t.Fatalf("Anchor[10] = %v, want 93", s.Anchor[10])
	}
	if got := Evaluate(bars, testParams); got != models.SignalShort {
		t.Fatalf("Evaluate() = %v, want SHORT", got)
	}
}

func TestMinConfirmStreakGatesSignal(t *testing.T) {
	p := testParams
	p.MinConfirmStreak = 3

	bars := flatBars(10)
	bars = append(bars, bar(111, 103, 110)) // пробой, серая
	bars = append(bars, bar(111, 109, 110)) // streak 1
	bars = append(bars, bar(111, 109, 110)) // streak 2

	if got := Evaluate(bars, p); got != models.SignalHold {
		t.Fatalf("Evaluate() = %v, want HOLD with streak below threshold", got)
	}

	bars = append(bars, bar(111, 109, 110)) // streak 3
	if got := Evaluate(bars, p); got != models.SignalLong {
		t.Fatalf("Evaluate() = %v, want LONG once streak reaches 3", got)
	}
}

func TestGrayBarResetsStreak(t *testing.T) {
	bars := flatBars(10)
	bars = append(bars, bar(111, 103, 110)) // пробой, якорь 107
	bars = append(bars, bar(111, 109, 110)) // ref 108.5, цветная
	// ref = (110+104)/2 = 107 == якорь: равенство — серая зона
	bars = append(bars, bar(105, 103, 104))

	s := Compute(bars, testParams)

	if s.Streak[11] != 1 {
		t.Fatalf("Streak[11] = %d, want 1", s.Streak[11])
	}
	if s.Color[12] {
		t.Fatal("bar with anchor == ref colored, want gray")
	}
	if s.Streak[12] != 0 {
		t.Fatalf("Streak[12] = %d, want reset to 0", s.Streak[12])
	}
	if got := Evaluate(bars, testParams); got != models.SignalHold {
		t.Fatalf("Evaluate() = %v, want HOLD on gray bar", got)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	bars := flatBars(10)
	bars = append(bars, bar(111, 103, 110))
	bars = append(bars, bar(111, 109, 110))

	first := Evaluate(bars, testParams)
	second := Evaluate(bars, testParams)
	if first != second {
		t.Fatalf("Evaluate() = %v then %v on the same series", first, second)
	}
	if first != models.SignalLong {
		t.Fatalf("Evaluate() = %v, want LONG", first)
	}
}

func TestRepeatedCrossSameDirectionNoFlip(t *testing.T) {
	bars := flatBars(10)
	bars = append(bars, bar(111, 103, 110))
	bars = append(bars, bar(111, 109, 110))
	// откат под канал не происходит, повторный рост тренд не меняет
	bars = append(bars, bar(121, 113, 120))

	s := Compute(bars, testParams)

	flips := 0
	for _, f := range s.Flip {
		if f {
			flips++
		}
	}
	if flips != 1 {
		t.Fatalf("flips = %d, want exactly 1", flips)
	}
	if s.Anchor[12] != 107 {
		t.Fatalf("Anchor[12] = %v, want anchor of the original flip", s.Anchor[12])
	}
}
