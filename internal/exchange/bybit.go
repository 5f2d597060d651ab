package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trend_bot/internal/models"
)

const (
	bybitBaseURL    = "https://api.bybit.com"
	bybitRecvWindow = "5000"
)

// Bybit — адаптер Bybit v5 (linear perpetual). Подпись — HMAC-SHA256 hex
// от timestamp+apiKey+recvWindow+payload.
type Bybit struct {
	http *http.Client

	apiKey    string
	apiSecret string

	leverage int // switch-isolated требует плечо, храним последнее
}

func NewBybit(apiKey, apiSecret string) *Bybit {
	return &Bybit{
		http:      &http.Client{Timeout: 15 * time.Second},
		apiKey:    apiKey,
		apiSecret: apiSecret,
		leverage:  1,
	}
}

type bybitResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (c *Bybit) Initialize(ctx context.Context) error {
	_, err := c.get(ctx, "/v5/market/time", "", false)
	return err
}

// GetKlines: Bybit отдаёт список от новых к старым.
func (c *Bybit) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	query := fmt.Sprintf("category=linear&symbol=%s&interval=%s&limit=%d",
		symbol, bybitInterval(timeframe), limit)
	result, err := c.get(ctx, "/v5/market/kline", query, false)
	if err != nil {
		return nil, err
	}

	var out struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("bybit kline: %w", err)
	}

	bars := make([]models.Bar, 0, len(out.List))
	for i := len(out.List) - 1; i >= 0; i-- {
		r := out.List[i]
		if len(r) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(r[0], 10, 64)
		bars = append(bars, models.Bar{
			Timestamp: time.UnixMilli(ts),
			Open:      parseF(r[1]),
			High:      parseF(r[2]),
			Low:       parseF(r[3]),
			Close:     parseF(r[4]),
			Volume:    parseF(r[5]),
		})
	}
	return bars, nil
}

func (c *Bybit) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	result, err := c.get(ctx, "/v5/market/instruments-info", "category=linear&limit=1000", false)
	if err != nil {
		return nil, err
	}

	var out struct {
		List []struct {
			Symbol    string `json:"symbol"`
			QuoteCoin string `json:"quoteCoin"`
			Status    string `json:"status"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("bybit instruments: %w", err)
	}

	symbols := make([]string, 0, len(out.List))
	for _, s := range out.List {
		if s.QuoteCoin != "USDT" || s.Status != "Trading" {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	return symbols, nil
}

func (c *Bybit) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	c.leverage = leverage
	body := fmt.Sprintf(`{"category":"linear","symbol":%q,"buyLeverage":"%d","sellLeverage":"%d"}`,
		symbol, leverage, leverage)
	_, err := c.post(ctx, "/v5/position/set-leverage", body)
	if err != nil && strings.Contains(err.Error(), "leverage not modified") {
		return nil
	}
	return err
}

func (c *Bybit) SetMarginMode(ctx context.Context, symbol, mode string) error {
	tradeMode := 0 // cross
	if strings.EqualFold(mode, "isolated") {
		tradeMode = 1
	}
	body := fmt.Sprintf(`{"category":"linear","symbol":%q,"tradeMode":%d,"buyLeverage":"%d","sellLeverage":"%d"}`,
		symbol, tradeMode, c.leverage, c.leverage)
	_, err := c.post(ctx, "/v5/position/switch-isolated", body)
	if err != nil && strings.Contains(err.Error(), "not modified") {
		return nil
	}
	return err
}

func (c *Bybit) OpenPosition(ctx context.Context, symbol string, side models.Signal, quantity float64, leverage int, marginMode string) (*Order, error) {
	if err := c.SetLeverage(ctx, symbol, leverage); err != nil {
		return nil, err
	}
	if err := c.SetMarginMode(ctx, symbol, marginMode); err != nil {
		return nil, err
	}

	orderSide := "Buy"
	if side == models.SignalShort {
		orderSide = "Sell"
	}
	body := fmt.Sprintf(`{"category":"linear","symbol":%q,"side":%q,"orderType":"Market","qty":%q}`,
		symbol, orderSide, formatQty(quantity))

	result, err := c.post(ctx, "/v5/order/create", body)
	if err != nil {
		return nil, err
	}

	var out struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("bybit order: %w", err)
	}
	// средней цены в ответе нет, диспетчер подставит цену до ордера
	return &Order{ID: out.OrderID, Status: "filled"}, nil
}

func (c *Bybit) ClosePosition(ctx context.Context, symbol string, side models.Signal) (*Order, error) {
	result, err := c.get(ctx, "/v5/position/list", "category=linear&symbol="+symbol, true)
	if err != nil {
		return nil, err
	}

	var out struct {
		List []struct {
			Side string `json:"side"`
			Size string `json:"size"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("bybit positions: %w", err)
	}

	for _, p := range out.List {
		size := parseF(p.Size)
		if size == 0 {
			continue
		}
		closeSide := "Sell"
		if p.Side == "Sell" {
			closeSide = "Buy"
		}
		body := fmt.Sprintf(`{"category":"linear","symbol":%q,"side":%q,"orderType":"Market","qty":%q,"reduceOnly":true}`,
			symbol, closeSide, p.Size)
		orderResult, err := c.post(ctx, "/v5/order/create", body)
		if err != nil {
			return nil, err
		}
		var o struct {
			OrderID string `json:"orderId"`
		}
		_ = json.Unmarshal(orderResult, &o)
		return &Order{ID: o.OrderID, Status: "closed"}, nil
	}
	return nil, nil
}

func (c *Bybit) GetBalance(ctx context.Context) (float64, error) {
	result, err := c.get(ctx, "/v5/account/wallet-balance", "accountType=UNIFIED", true)
	if err != nil {
		return 0, err
	}

	var out struct {
		List []struct {
			Coin []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return 0, fmt.Errorf("bybit balance: %w", err)
	}
	for _, l := range out.List {
		for _, coin := range l.Coin {
			if coin.Coin == "USDT" {
				return parseF(coin.WalletBalance), nil
			}
		}
	}
	return 0, nil
}

func (c *Bybit) CloseConnection() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Bybit) get(ctx context.Context, path, query string, signed bool) (json.RawMessage, error) {
	url := bybitBaseURL + path
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		c.sign(req, query)
	}
	return c.send(req)
}

func (c *Bybit) post(ctx context.Context, path, body string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bybitBaseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, body)
	return c.send(req)
}

func (c *Bybit) sign(req *http.Request, payload string) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(ts + c.apiKey + bybitRecvWindow + payload))

	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	req.Header.Set("X-BAPI-SIGN", hex.EncodeToString(h.Sum(nil)))
}

func (c *Bybit) send(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("bybit http %d: %s", resp.StatusCode, string(rb))
	}

	var out bybitResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return nil, err
	}
	if out.RetCode != 0 {
		return nil, fmt.Errorf("bybit error: code=%d msg=%s", out.RetCode, out.RetMsg)
	}
	return out.Result, nil
}

// bybitInterval — минуты числом, дни/недели буквой.
func bybitInterval(timeframe string) string {
	switch timeframe {
	case "1d":
		return "D"
	case "1w":
		return "W"
	}
	if strings.HasSuffix(timeframe, "m") {
		return strings.TrimSuffix(timeframe, "m")
	}
	if strings.HasSuffix(timeframe, "h") {
		h, _ := strconv.Atoi(strings.TrimSuffix(timeframe, "h"))
		return strconv.Itoa(h * 60)
	}
	return timeframe
}
