package ta

import (
	"errors"

	"github.com/markcheno/go-talib"

	"crypto-trading-bot/internal/types"
)

// ErrInsufficientData is returned when the candle history is too short for
// the requested indicator. Callers skip the cycle instead of crashing.
var ErrInsufficientData = errors.New("insufficient candle data")

func SMA(closes []float64, n int) (float64, error) {
	if n <= 0 || len(closes) < n {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n), nil
}

// RSI uses Wilder smoothing: the first `period` deltas seed the averages,
// every later delta is blended with weight 1/period. Needs period+1 closes.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return 0, ErrInsufficientData
	}
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

func PivotPoints(high, low, close float64) types.PivotLevels {
	pp := (high + low + close) / 3
	return types.PivotLevels{
		PP: pp,
		R1: 2*pp - low,
		R2: pp + (high - low),
		S1: 2*pp - high,
		S2: pp - (high - low),
	}
}

// Crossover compares the short/long SMA relation at the previous close and
// at the latest close. Needs longPeriod+1 closes so both points exist.
func Crossover(closes []float64, shortPeriod, longPeriod int) (types.CrossSignal, error) {
	if len(closes) < longPeriod+1 {
		return types.CrossNone, ErrInsufficientData
	}
	prev := closes[:len(closes)-1]
	prevShort, err := SMA(prev, shortPeriod)
	if err != nil {
		return types.CrossNone, err
	}
	prevLong, err := SMA(prev, longPeriod)
	if err != nil {
		return types.CrossNone, err
	}
	nowShort, _ := SMA(closes, shortPeriod)
	nowLong, _ := SMA(closes, longPeriod)
	switch {
	case prevShort <= prevLong && nowShort > nowLong:
		return types.CrossUp, nil
	case prevShort >= prevLong && nowShort < nowLong:
		return types.CrossDown, nil
	}
	return types.CrossNone, nil
}

// Volatility is the full window range relative to the last close.
func Volatility(candles []types.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	hi, lo := candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	last := candles[len(candles)-1].Close
	if last == 0 {
		return 0
	}
	return (hi - lo) / last
}

// ContextIndicators computes the EMA/MACD values that only feed the advisor
// prompt. Short histories produce zeros, not errors.
func ContextIndicators(closes []float64, emaFast, emaSlow int) (fast, slow, macdHist float64) {
	if len(closes) >= emaFast && emaFast > 1 {
		fast = last(talib.Ema(closes, emaFast))
	}
	if len(closes) >= emaSlow && emaSlow > 1 {
		slow = last(talib.Ema(closes, emaSlow))
	}
	if len(closes) >= 34 {
		_, _, hist := talib.Macd(closes, 12, 26, 9)
		macdHist = last(hist)
	}
	return fast, slow, macdHist
}

func last(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)-1]
}

func Closes(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
