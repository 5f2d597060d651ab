package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trend_bot/internal/models"
)

const okxBaseURL = "https://www.okx.com"

// OKX — адаптер OKX v5 (SWAP). Подпись запросов — HMAC-SHA256 от
// timestamp+method+path+body в base64.
type OKX struct {
	http *http.Client

	apiKey    string
	apiSecret string
	passph    string

	marginMode string // последний установленный mgnMode, нужен для ордеров
}

func NewOKX(apiKey, apiSecret, passphrase string) *OKX {
	return &OKX{
		http:       &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passph:     passphrase,
		marginMode: "cross",
	}
}

type okxResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *OKX) Initialize(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/v5/public/time", "", false)
	return err
}

// GetKlines: OKX отдаёт свечи от новых к старым, разворачиваем
// в хронологический порядок.
func (c *OKX) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	path := fmt.Sprintf("/api/v5/market/candles?instId=%s&bar=%s&limit=%d",
		okxInstID(symbol), okxBar(timeframe), limit)
	data, err := c.do(ctx, http.MethodGet, path, "", false)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("okx candles: %w", err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
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

func (c *OKX) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v5/public/instruments?instType=SWAP", "", false)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		InstID string `json:"instId"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("okx instruments: %w", err)
	}

	symbols := make([]string, 0, len(rows))
	for _, r := range rows {
		if !strings.HasSuffix(r.InstID, "-USDT-SWAP") {
			continue
		}
		symbols = append(symbols, strings.ReplaceAll(strings.TrimSuffix(r.InstID, "-SWAP"), "-", ""))
	}
	return symbols, nil
}

func (c *OKX) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := fmt.Sprintf(`{"instId":%q,"lever":"%d","mgnMode":%q}`,
		okxInstID(symbol), leverage, c.marginMode)
	_, err := c.do(ctx, http.MethodPost, "/api/v5/account/set-leverage", body, true)
	return err
}

func (c *OKX) SetMarginMode(ctx context.Context, symbol, mode string) error {
	// отдельного вызова нет: mgnMode передаётся с каждым ордером
	if strings.EqualFold(mode, "isolated") {
		c.marginMode = "isolated"
	} else {
		c.marginMode = "cross"
	}
	return nil
}

func (c *OKX) OpenPosition(ctx context.Context, symbol string, side models.Signal, quantity float64, leverage int, marginMode string) (*Order, error) {
	if err := c.SetMarginMode(ctx, symbol, marginMode); err != nil {
		return nil, err
	}
	if err := c.SetLeverage(ctx, symbol, leverage); err != nil {
		return nil, err
	}

	orderSide := "buy"
	if side == models.SignalShort {
		orderSide = "sell"
	}
	body := fmt.Sprintf(`{"instId":%q,"tdMode":%q,"side":%q,"ordType":"market","sz":%q}`,
		okxInstID(symbol), c.marginMode, orderSide, formatQty(quantity))

	data, err := c.do(ctx, http.MethodPost, "/api/v5/trade/order", body, true)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		OrdID string `json:"ordId"`
		SMsg  string `json:"sMsg"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("okx order: bad response")
	}
	// цены в ответе нет — диспетчер возьмёт цену до ордера
	return &Order{ID: rows[0].OrdID, Status: "filled"}, nil
}

func (c *OKX) ClosePosition(ctx context.Context, symbol string, side models.Signal) (*Order, error) {
	body := fmt.Sprintf(`{"instId":%q,"mgnMode":%q}`, okxInstID(symbol), c.marginMode)
	_, err := c.do(ctx, http.MethodPost, "/api/v5/trade/close-position", body, true)
	if err != nil {
		return nil, err
	}
	return &Order{Status: "closed"}, nil
}

func (c *OKX) GetBalance(ctx context.Context) (float64, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v5/account/balance?ccy=USDT", "", true)
	if err != nil {
		return 0, err
	}

	var rows []struct {
		Details []struct {
			Ccy     string `json:"ccy"`
			CashBal string `json:"cashBal"`
		} `json:"details"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("okx balance: %w", err)
	}
	for _, r := range rows {
		for _, d := range r.Details {
			if d.Ccy == "USDT" {
				return parseF(d.CashBal), nil
			}
		}
	}
	return 0, nil
}

func (c *OKX) CloseConnection() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *OKX) do(ctx context.Context, method, requestPath, body string, signed bool) (json.RawMessage, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, okxBaseURL+requestPath, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
		msg := ts + strings.ToUpper(method) + requestPath + body
		h := hmac.New(sha256.New, []byte(c.apiSecret))
		h.Write([]byte(msg))
		req.Header.Set("OK-ACCESS-KEY", c.apiKey)
		req.Header.Set("OK-ACCESS-SIGN", base64.StdEncoding.EncodeToString(h.Sum(nil)))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.passph)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("okx http %d: %s", resp.StatusCode, string(rb))
	}

	var out okxResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return nil, err
	}
	if out.Code != "0" {
		return nil, fmt.Errorf("okx error: code=%s msg=%s", out.Code, out.Msg)
	}
	return out.Data, nil
}

// okxInstID переводит символ формата Binance в instId OKX:
// BTCUSDT -> BTC-USDT-SWAP.
func okxInstID(symbol string) string {
	base := strings.TrimSuffix(symbol, "USDT")
	if base == symbol {
		return symbol
	}
	return base + "-USDT-SWAP"
}

// okxBar — нотация таймфреймов OKX (часы и дни заглавными).
func okxBar(timeframe string) string {
	if strings.HasSuffix(timeframe, "m") {
		return timeframe
	}
	return strings.ToUpper(timeframe)
}
