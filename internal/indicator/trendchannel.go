package indicator

import (
	"math"

	"trend_bot/internal/models"
)

// Params — параметры трендового канала.
type Params struct {
	ATRPeriod          int // сглаживание Уайлдера для true range
	TrendWindow        int // окно rolling max ATR и SMA центра канала
	ReferenceSMAPeriod int // короткая SMA середины свечи (hl2)
	MinConfirmStreak   int // сколько подряд "цветных" свечей нужно для сигнала
}

func DefaultParams() Params {
	return Params{
		ATRPeriod:          200,
		TrendWindow:        100,
		ReferenceSMAPeriod: 20,
		MinConfirmStreak:   3,
	}
}

func (p Params) normalize() Params {
	d := DefaultParams()
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = d.ATRPeriod
	}
	if p.TrendWindow <= 0 {
		p.TrendWindow = d.TrendWindow
	}
	if p.ReferenceSMAPeriod <= 0 {
		p.ReferenceSMAPeriod = d.ReferenceSMAPeriod
	}
	if p.MinConfirmStreak <= 0 {
		p.MinConfirmStreak = d.MinConfirmStreak
	}
	return p
}

// TrendState — тройное состояние тренда. До первого пересечения канала
// тренд не определён и сигналов не даёт.
type TrendState int8

const (
	TrendUndetermined TrendState = iota
	TrendUp
	TrendDown
)

func (t TrendState) String() string {
	switch t {
	case TrendUp:
		return "UP"
	case TrendDown:
		return "DOWN"
	default:
		return "UNDETERMINED"
	}
}

// Series — посвечное состояние индикатора. Evaluate пользуется только
// последней свечой, бэктест и тесты смотрят всю историю.
type Series struct {
	Upper  []float64 // NaN пока окно не прогрето
	Lower  []float64
	Trend  []TrendState
	Flip   []bool    // true на свече смены тренда
	Anchor []float64 // hl2 свечи последней смены тренда; NaN до первой
	Ref    []float64 // SMA(hl2, ReferenceSMAPeriod); NaN на прогреве
	Color  []bool    // true = "цветная" свеча (канал имеет наклон)
	Streak []int     // подряд идущие цветные свечи
}

// Evaluate прогоняет серию через канал и возвращает сигнал по последней
// свече. Функция чистая: всё состояние пересчитывается из переданного окна.
func Evaluate(bars []models.Bar, p Params) models.Signal {
	p = p.normalize()
	if len(bars) < p.ATRPeriod {
		return models.SignalHold
	}

	s := Compute(bars, p)
	last := len(bars) - 1

	if !s.Color[last] || s.Streak[last] < p.MinConfirmStreak {
		return models.SignalHold
	}
	switch s.Trend[last] {
	case TrendUp:
		return models.SignalLong
	case TrendDown:
		return models.SignalShort
	}
	return models.SignalHold
}

// Compute считает весь канал по серии. Линейно по длине окна на свечу,
// при 300 свечах и 30-секундном опросе этого достаточно.
func Compute(bars []models.Bar, p Params) *Series {
	p = p.normalize()
	n := len(bars)

	s := &Series{
		Upper:  make([]float64, n),
		Lower:  make([]float64, n),
		Trend:  make([]TrendState, n),
		Flip:   make([]bool, n),
		Anchor: make([]float64, n),
		Ref:    make([]float64, n),
		Color:  make([]bool, n),
		Streak: make([]int, n),
	}
	if n == 0 {
		return s
	}

	atr := wilderATR(bars, p.ATRPeriod)

	// канал: центр = SMA(close, W), полуширина = rolling max ATR за W
	var closeSum float64
	for i := 0; i < n; i++ {
		closeSum += bars[i].Close
		if i >= p.TrendWindow {
			closeSum -= bars[i-p.TrendWindow].Close
		}
		if i < p.TrendWindow-1 {
			s.Upper[i] = math.NaN()
			s.Lower[i] = math.NaN()
			continue
		}
		half := maxSlice(atr[i-p.TrendWindow+1 : i+1])
		center := closeSum / float64(p.TrendWindow)
		s.Upper[i] = center + half
		s.Lower[i] = center - half
	}

	// короткая SMA середины свечи — второй конец канальной линии
	var hl2Sum float64
	for i := 0; i < n; i++ {
		hl2Sum += bars[i].HL2()
		if i >= p.ReferenceSMAPeriod {
			hl2Sum -= bars[i-p.ReferenceSMAPeriod].HL2()
		}
		if i < p.ReferenceSMAPeriod-1 {
			s.Ref[i] = math.NaN()
		} else {
			s.Ref[i] = hl2Sum / float64(p.ReferenceSMAPeriod)
		}
	}

	trend := TrendUndetermined
	anchor := math.NaN()

	for i := 0; i < n; i++ {
		if i > 0 {
			// сравнения с NaN ложны, поэтому на прогреве пересечений нет
			crossUp := bars[i].Close > s.Upper[i] && bars[i-1].Close <= s.Upper[i-1]
			crossDn := bars[i].Close < s.Lower[i] && bars[i-1].Close >= s.Lower[i-1]

			if crossUp && trend != TrendUp {
				trend = TrendUp
				anchor = bars[i].HL2()
				s.Flip[i] = true
			} else if crossDn && trend != TrendDown {
				trend = TrendDown
				anchor = bars[i].HL2()
				s.Flip[i] = true
			}
		}
		s.Trend[i] = trend
		s.Anchor[i] = anchor

		// Цвет канала: есть наклон якоря к опорной SMA.
		// Равенство считается серой зоной.
		switch trend {
		case TrendUp:
			s.Color[i] = anchor < s.Ref[i]
		case TrendDown:
			s.Color[i] = anchor > s.Ref[i]
		}

		if s.Color[i] {
			if i > 0 {
				s.Streak[i] = s.Streak[i-1] + 1
			} else {
				s.Streak[i] = 1
			}
		}
	}

	return s
}

// wilderATR — RMA истинного диапазона со сглаживанием 1/period
// (эквивалент ta.atr в Pine Script).
func wilderATR(bars []models.Bar, period int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	alpha := 1.0 / float64(period)
	out[0] = bars[0].High - bars[0].Low
	for i := 1; i < n; i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr := math.Max(hl, math.Max(hc, lc))
		out[i] = out[i-1] + alpha*(tr-out[i-1])
	}
	return out
}

func maxSlice(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
