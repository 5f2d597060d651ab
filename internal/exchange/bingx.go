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

const bingxBaseURL = "https://open-api.bingx.com"

// BingX — адаптер бессрочных фьючерсов BingX (swap v2/v3). Подпись —
// HMAC-SHA256 hex от строки параметров, ключ в заголовке X-BX-APIKEY.
// Фьючерсный аккаунт BingX всегда в hedge-режиме, поэтому у каждого
// ордера обязателен positionSide.
type BingX struct {
	http *http.Client

	apiKey    string
	apiSecret string
}

func NewBingX(apiKey, apiSecret string) *BingX {
	return &BingX{
		http:      &http.Client{Timeout: 15 * time.Second},
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

type bingxResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *BingX) Initialize(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/openApi/swap/v2/server/time", "", false)
	return err
}

func (c *BingX) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	params := fmt.Sprintf("symbol=%s&interval=%s&limit=%d", bingxSymbol(symbol), timeframe, limit)
	data, err := c.do(ctx, http.MethodGet, "/openApi/swap/v3/quote/klines", params, false)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
		Time   int64  `json:"time"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("bingx klines: %w", err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, models.Bar{
			Timestamp: time.UnixMilli(r.Time),
			Open:      parseF(r.Open),
			High:      parseF(r.High),
			Low:       parseF(r.Low),
			Close:     parseF(r.Close),
			Volume:    parseF(r.Volume),
		})
	}
	// BingX отдаёт свечи от новых к старым
	if len(bars) > 1 && bars[0].Timestamp.After(bars[len(bars)-1].Timestamp) {
		for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
			bars[i], bars[j] = bars[j], bars[i]
		}
	}
	return bars, nil
}

func (c *BingX) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	data, err := c.do(ctx, http.MethodGet, "/openApi/swap/v2/quote/contracts", "", false)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
		Status   int    `json:"status"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("bingx contracts: %w", err)
	}

	symbols := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Currency != "USDT" || r.Status != 1 {
			continue
		}
		symbols = append(symbols, strings.ReplaceAll(r.Symbol, "-", ""))
	}
	return symbols, nil
}

func (c *BingX) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	// в hedge-режиме плечо ставится на каждую сторону отдельно
	for _, side := range []string{"LONG", "SHORT"} {
		params := fmt.Sprintf("symbol=%s&side=%s&leverage=%d", bingxSymbol(symbol), side, leverage)
		if _, err := c.do(ctx, http.MethodPost, "/openApi/swap/v2/trade/leverage", params, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *BingX) SetMarginMode(ctx context.Context, symbol, mode string) error {
	marginType := "CROSSED"
	if strings.EqualFold(mode, "isolated") {
		marginType = "ISOLATED"
	}
	params := fmt.Sprintf("symbol=%s&marginType=%s", bingxSymbol(symbol), marginType)
	_, err := c.do(ctx, http.MethodPost, "/openApi/swap/v2/trade/marginType", params, true)
	if err != nil && strings.Contains(err.Error(), "no need to change") {
		return nil
	}
	return err
}

func (c *BingX) OpenPosition(ctx context.Context, symbol string, side models.Signal, quantity float64, leverage int, marginMode string) (*Order, error) {
	if err := c.SetMarginMode(ctx, symbol, marginMode); err != nil {
		return nil, err
	}
	if err := c.SetLeverage(ctx, symbol, leverage); err != nil {
		return nil, err
	}

	orderSide, positionSide := "BUY", "LONG"
	if side == models.SignalShort {
		orderSide, positionSide = "SELL", "SHORT"
	}
	params := fmt.Sprintf("symbol=%s&side=%s&positionSide=%s&type=MARKET&quantity=%s",
		bingxSymbol(symbol), orderSide, positionSide, formatQty(quantity))

	data, err := c.do(ctx, http.MethodPost, "/openApi/swap/v2/trade/order", params, true)
	if err != nil {
		return nil, err
	}

	var out struct {
		Order struct {
			OrderID int64 `json:"orderId"`
		} `json:"order"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("bingx order: %w", err)
	}
	// цены в ответе нет — диспетчер возьмёт цену до ордера
	return &Order{ID: strconv.FormatInt(out.Order.OrderID, 10), Status: "filled"}, nil
}

func (c *BingX) ClosePosition(ctx context.Context, symbol string, side models.Signal) (*Order, error) {
	data, err := c.do(ctx, http.MethodGet, "/openApi/swap/v2/user/positions",
		"symbol="+bingxSymbol(symbol), true)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		PositionSide string `json:"positionSide"`
		PositionAmt  string `json:"positionAmt"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("bingx positions: %w", err)
	}

	for _, p := range rows {
		amt := parseF(p.PositionAmt)
		if amt == 0 {
			continue
		}
		closeSide := "SELL"
		if p.PositionSide == "SHORT" {
			closeSide = "BUY"
		}
		params := fmt.Sprintf("symbol=%s&side=%s&positionSide=%s&type=MARKET&quantity=%s",
			bingxSymbol(symbol), closeSide, p.PositionSide, formatQty(amt))
		orderData, err := c.do(ctx, http.MethodPost, "/openApi/swap/v2/trade/order", params, true)
		if err != nil {
			return nil, err
		}
		var out struct {
			Order struct {
				OrderID int64 `json:"orderId"`
			} `json:"order"`
		}
		_ = json.Unmarshal(orderData, &out)
		return &Order{ID: strconv.FormatInt(out.Order.OrderID, 10), Status: "closed"}, nil
	}
	return nil, nil
}

func (c *BingX) GetBalance(ctx context.Context) (float64, error) {
	data, err := c.do(ctx, http.MethodGet, "/openApi/swap/v2/user/balance", "", true)
	if err != nil {
		return 0, err
	}

	var out struct {
		Balance struct {
			Asset   string `json:"asset"`
			Balance string `json:"balance"`
		} `json:"balance"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("bingx balance: %w", err)
	}
	if out.Balance.Asset != "USDT" {
		return 0, nil
	}
	return parseF(out.Balance.Balance), nil
}

func (c *BingX) CloseConnection() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *BingX) do(ctx context.Context, method, path, params string, signed bool) (json.RawMessage, error) {
	query := params
	if signed {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if query != "" {
			query += "&"
		}
		query += "timestamp=" + ts

		h := hmac.New(sha256.New, []byte(c.apiSecret))
		h.Write([]byte(query))
		query += "&signature=" + hex.EncodeToString(h.Sum(nil))
	}

	url := bingxBaseURL + path
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-BX-APIKEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("bingx http %d: %s", resp.StatusCode, string(rb))
	}

	var out bingxResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("bingx error: code=%d msg=%s", out.Code, out.Msg)
	}
	return out.Data, nil
}

// bingxSymbol: BTCUSDT -> BTC-USDT.
func bingxSymbol(symbol string) string {
	base := strings.TrimSuffix(symbol, "USDT")
	if base == symbol {
		return symbol
	}
	return base + "-USDT"
}
