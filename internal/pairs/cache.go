package pairs

import (
	"context"
	"sort"
	"strings"
	"sync"

	"trend_bot/pkg/logger"
)

// SymbolSource — откуда брать живой список контрактов.
type SymbolSource interface {
	GetFuturesSymbols(ctx context.Context) ([]string, error)
}

// fallback на случай недоступного API (например, гео-блок)
var fallbackShortNames = []string{
	"1000BONK", "1000FLOKI", "1000PEPE", "1000SHIB", "1INCH",
	"AAVE", "ADA", "ALGO", "APE", "APT", "AR", "ARB", "ATOM", "AVAX", "AXS",
	"BCH", "BNB", "BTC",
	"CAKE", "CELO", "CFX", "CHZ", "COMP", "CRV",
	"DASH", "DOGE", "DOT", "DYDX",
	"EGLD", "ENJ", "ENS", "EOS", "ETC", "ETH",
	"FET", "FIL", "FLOW", "FTM",
	"GALA", "GMT", "GRT",
	"HBAR", "ICP", "IMX", "INJ", "IOTA",
	"JTO", "JUP",
	"KAVA", "KSM",
	"LDO", "LINK", "LTC", "LUNA2",
	"MANA", "MASK", "MATIC", "MINA", "MKR",
	"NEAR", "NEO", "NOT",
	"OP", "ORDI",
	"PENDLE", "PEOPLE", "PEPE", "PYTH",
	"QNT", "RNDR", "ROSE", "RUNE",
	"SAND", "SEI", "SNX", "SOL", "STX", "SUI", "SUSHI",
	"TIA", "TON", "TRX",
	"UNI", "VET",
	"WIF", "WLD",
	"XLM", "XMR", "XRP", "XTZ",
	"YFI", "ZEC", "ZIL", "ZRX",
}

// Cache — кэш имён фьючерсных контрактов для быстрого выбора пары.
// Владеет им бот, наполняется на старте; UI-коллаборатор только читает.
type Cache struct {
	mu      sync.RWMutex
	shorts  []string          // BTC, ETH, ... отсортированы
	byShort map[string]string // BTC -> BTCUSDT
}

func NewCache() *Cache {
	return &Cache{byShort: make(map[string]string)}
}

// Load пробует живой список с биржи, при ошибке падает на зашитый.
func (c *Cache) Load(ctx context.Context, src SymbolSource) {
	symbols, err := src.GetFuturesSymbols(ctx)
	if err != nil || len(symbols) == 0 {
		logger.Error("pairs: live symbol fetch failed (%v), using fallback list", err)
		symbols = make([]string, 0, len(fallbackShortNames))
		for _, s := range fallbackShortNames {
			symbols = append(symbols, s+"USDT")
		}
	}

	shorts := make([]string, 0, len(symbols))
	byShort := make(map[string]string, len(symbols))
	for _, full := range symbols {
		short := strings.TrimSuffix(full, "USDT")
		if short == full || short == "" {
			continue
		}
		if _, ok := byShort[short]; ok {
			continue
		}
		byShort[short] = full
		shorts = append(shorts, short)
	}
	sort.Strings(shorts)

	c.mu.Lock()
	c.shorts = shorts
	c.byShort = byShort
	c.mu.Unlock()

	logger.Info("pairs: %d futures symbols cached", len(shorts))
}

// ShortNames — все короткие имена по алфавиту.
func (c *Cache) ShortNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.shorts))
	copy(out, c.shorts)
	return out
}

// FullSymbol — полное имя контракта по короткому.
func (c *Cache) FullSymbol(short string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	full, ok := c.byShort[strings.ToUpper(short)]
	return full, ok
}

// Letters — первые буквы, по которым есть символы.
func (c *Cache) Letters() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	var letters []string
	for _, s := range c.shorts {
		l := s[:1]
		if !seen[l] {
			seen[l] = true
			letters = append(letters, l)
		}
	}
	return letters
}

// ByLetter — короткие имена на заданную букву.
func (c *Cache) ByLetter(letter string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	letter = strings.ToUpper(letter)
	var out []string
	for _, s := range c.shorts {
		if strings.HasPrefix(s, letter) {
			out = append(out, s)
		}
	}
	return out
}
