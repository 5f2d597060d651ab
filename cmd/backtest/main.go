// Оффлайн-прогон трендового канала по истории: качает свечи с Binance
// и печатает все смены тренда за период плюс сигнал по последней свече.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"

	"trend_bot/internal/exchange"
	"trend_bot/internal/indicator"
	"trend_bot/internal/models"
	"trend_bot/internal/modules/config"
	"trend_bot/pkg/logger"
)

const pageLimit = 1000

func main() {
	logger.Init()
	logger.SetServiceName("backtest")

	v := viper.New()
	v.SetDefault("symbol", "BTCUSDT")
	v.SetDefault("timeframe", "30m")
	v.SetDefault("since", "2026-01-01")
	v.SetDefault("warmup_days", 90)
	v.AutomaticEnv()

	symbol := v.GetString("symbol")
	timeframe := v.GetString("timeframe")
	warmupDays := v.GetInt("warmup_days")

	since, err := time.Parse("2006-01-02", v.GetString("since"))
	if err != nil {
		log.Fatalf("bad since date: %v", err)
	}
	// прогрев SMA/ATR: качаем историю раньше запрошенного периода
	start := since.AddDate(0, 0, -warmupDays)

	ctx := context.Background()
	binance := exchange.NewBinance("", "")

	fmt.Printf("Loading %s %s from %s...\n", symbol, timeframe, start.Format("2006-01-02"))
	bars, err := fetchHistory(ctx, binance, symbol, timeframe, start)
	if err != nil {
		log.Fatalf("history fetch: %v", err)
	}
	if len(bars) == 0 {
		log.Fatal("no bars returned")
	}

	params := indicator.DefaultParams()
	series := indicator.Compute(bars, params)

	fmt.Printf("\n=== %s %s since %s ===\n", symbol, timeframe, since.Format("2006-01-02"))
	var ups, downs int
	for i, bar := range bars {
		if !series.Flip[i] || bar.Timestamp.Before(since) {
			continue
		}
		if series.Trend[i] == indicator.TrendUp {
			ups++
		} else {
			downs++
		}
		fmt.Printf("  %s | %-4s | close: %.2f\n",
			bar.Timestamp.Format("2006-01-02 15:04"), series.Trend[i], bar.Close)
	}
	fmt.Printf("\nTrend flips UP: %d\n", ups)
	fmt.Printf("Trend flips DOWN: %d\n", downs)
	fmt.Printf("Total: %d\n", ups+downs)
	fmt.Printf("Last bar signal: %s\n", indicator.Evaluate(bars, params))
}

func fetchHistory(ctx context.Context, binance *exchange.Binance, symbol, timeframe string, start time.Time) ([]models.Bar, error) {
	step := config.TimeframeDuration(timeframe)
	if step <= 0 {
		return nil, fmt.Errorf("unknown timeframe %q", timeframe)
	}

	var all []models.Bar
	cursor := start
	for {
		page, err := binance.GetKlinesFrom(ctx, symbol, timeframe, cursor, pageLimit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if len(page) < pageLimit {
			break
		}
		cursor = page[len(page)-1].Timestamp.Add(step)
		time.Sleep(100 * time.Millisecond) // rate limit
	}
	return all, nil
}
