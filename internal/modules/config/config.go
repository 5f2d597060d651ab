package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// SupportedExchanges — биржи, для которых есть адаптер в internal/exchange.
var SupportedExchanges = []string{"Binance", "BingX", "Bybit", "MEXC", "OKX"}

// SupportedTimeframes в нотации Binance.
var SupportedTimeframes = []string{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w",
}

var timeframeMinutes = map[string]int{
	"1m": 1, "3m": 3, "5m": 5, "15m": 15, "30m": 30,
	"1h": 60, "2h": 120, "4h": 240, "6h": 360, "8h": 480, "12h": 720,
	"1d": 1440, "3d": 4320, "1w": 10080,
}

// TimeframeDuration — длительность одной свечи таймфрейма.
func TimeframeDuration(tf string) time.Duration {
	return time.Duration(timeframeMinutes[tf]) * time.Minute
}

// Config ...
type Config struct {
	Telegram struct {
		Token string `yaml:"token"`
	} `yaml:"telegram"`
	DB     string `yaml:"db_dsn"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Сканер
	ScanInterval time.Duration // период цикла сканера
	PairDelay    time.Duration // пауза между парами (rate limit источника)

	// Параметры трендового канала
	ATRPeriod          int
	TrendWindow        int
	ReferenceSMAPeriod int
	MinConfirmStreak   int
	BarsPerFetch       int

	// Откуда сканер берёт свечи (без ключей)
	MarketDataExchange string
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		ScanInterval: durationFromEnv("SCAN_INTERVAL", "30s"),
		PairDelay:    durationFromEnv("PAIR_DELAY", "500ms"),

		ATRPeriod:          intFromEnv("ATR_PERIOD", 200),
		TrendWindow:        intFromEnv("TREND_WINDOW", 100),
		ReferenceSMAPeriod: intFromEnv("REFERENCE_SMA_PERIOD", 20),
		MinConfirmStreak:   intFromEnv("MIN_CONFIRM_STREAK", 3),
		BarsPerFetch:       intFromEnv("BARS_PER_FETCH", 300),

		MarketDataExchange: getenvDefault("MARKET_DATA_EXCHANGE", "Binance"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	return &config, nil
}

// FetchLimit — сколько свечей запрашивать у источника. Всегда не меньше,
// чем нужно индикатору на прогрев.
func (c *Config) FetchLimit() int {
	min := c.ATRPeriod + c.TrendWindow
	if c.BarsPerFetch < min {
		return min
	}
	return c.BarsPerFetch
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
