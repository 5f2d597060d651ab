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

const mexcBaseURL = "https://contract.mexc.com"

// коды side MEXC: 1 открыть лонг, 2 закрыть шорт, 3 открыть шорт, 4 закрыть лонг
const (
	mexcOpenLong   = 1
	mexcCloseShort = 2
	mexcOpenShort  = 3
	mexcCloseLong  = 4
)

// MEXC — адаптер фьючерсов MEXC (contract v1). Подпись приватных
// запросов — HMAC-SHA256 hex от accessKey+reqTime+paramString в
// заголовках ApiKey / Request-Time / Signature. Отдельных вызовов
// плеча и маржи нет: оба параметра уходят в теле каждого ордера.
type MEXC struct {
	http *http.Client

	apiKey    string
	apiSecret string

	leverage int
	openType int // 1 isolated, 2 cross
}

func NewMEXC(apiKey, apiSecret string) *MEXC {
	return &MEXC{
		http:      &http.Client{Timeout: 15 * time.Second},
		apiKey:    apiKey,
		apiSecret: apiSecret,
		leverage:  1,
		openType:  2,
	}
}

type mexcResponse struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *MEXC) Initialize(ctx context.Context) error {
	_, err := c.get(ctx, "/api/v1/contract/ping", "", false)
	return err
}

// GetKlines: MEXC отдаёт свечи колонками (time[], open[], ...) по
// возрастанию времени.
func (c *MEXC) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	interval := mexcInterval(timeframe)
	if interval == "" {
		return nil, fmt.Errorf("mexc: unsupported timeframe %q", timeframe)
	}
	data, err := c.get(ctx, "/api/v1/contract/kline/"+mexcSymbol(symbol),
		fmt.Sprintf("interval=%s&limit=%d", interval, limit), false)
	if err != nil {
		return nil, err
	}

	var out struct {
		Time  []int64   `json:"time"`
		Open  []float64 `json:"open"`
		High  []float64 `json:"high"`
		Low   []float64 `json:"low"`
		Close []float64 `json:"close"`
		Vol   []float64 `json:"vol"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("mexc kline: %w", err)
	}

	bars := make([]models.Bar, 0, len(out.Time))
	for i := range out.Time {
		if i >= len(out.Open) || i >= len(out.High) || i >= len(out.Low) || i >= len(out.Close) {
			break
		}
		bar := models.Bar{
			Timestamp: time.Unix(out.Time[i], 0),
			Open:      out.Open[i],
			High:      out.High[i],
			Low:       out.Low[i],
			Close:     out.Close[i],
		}
		if i < len(out.Vol) {
			bar.Volume = out.Vol[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (c *MEXC) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	data, err := c.get(ctx, "/api/v1/contract/detail", "", false)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Symbol    string `json:"symbol"`
		QuoteCoin string `json:"quoteCoin"`
		State     int    `json:"state"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("mexc contracts: %w", err)
	}

	symbols := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.QuoteCoin != "USDT" || r.State != 0 || !strings.HasSuffix(r.Symbol, "_USDT") {
			continue
		}
		symbols = append(symbols, strings.ReplaceAll(r.Symbol, "_", ""))
	}
	return symbols, nil
}

func (c *MEXC) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	c.leverage = leverage
	return nil
}

func (c *MEXC) SetMarginMode(ctx context.Context, symbol, mode string) error {
	if strings.EqualFold(mode, "isolated") {
		c.openType = 1
	} else {
		c.openType = 2
	}
	return nil
}

func (c *MEXC) OpenPosition(ctx context.Context, symbol string, side models.Signal, quantity float64, leverage int, marginMode string) (*Order, error) {
	if err := c.SetMarginMode(ctx, symbol, marginMode); err != nil {
		return nil, err
	}
	if err := c.SetLeverage(ctx, symbol, leverage); err != nil {
		return nil, err
	}

	orderSide := mexcOpenLong
	if side == models.SignalShort {
		orderSide = mexcOpenShort
	}
	return c.placeMarket(ctx, mexcSymbol(symbol), quantity, orderSide)
}

func (c *MEXC) ClosePosition(ctx context.Context, symbol string, side models.Signal) (*Order, error) {
	data, err := c.get(ctx, "/api/v1/private/position/open_positions", "", true)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Symbol       string  `json:"symbol"`
		PositionType int     `json:"positionType"` // 1 long, 2 short
		HoldVol      float64 `json:"holdVol"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("mexc positions: %w", err)
	}

	instID := mexcSymbol(symbol)
	for _, p := range rows {
		if p.Symbol != instID || p.HoldVol == 0 {
			continue
		}
		closeSide := mexcCloseLong
		if p.PositionType == 2 {
			closeSide = mexcCloseShort
		}
		order, err := c.placeMarket(ctx, instID, p.HoldVol, closeSide)
		if err != nil {
			return nil, err
		}
		order.Status = "closed"
		return order, nil
	}
	return nil, nil
}

func (c *MEXC) GetBalance(ctx context.Context) (float64, error) {
	data, err := c.get(ctx, "/api/v1/private/account/assets", "", true)
	if err != nil {
		return 0, err
	}

	var rows []struct {
		Currency string  `json:"currency"`
		Equity   float64 `json:"equity"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("mexc balance: %w", err)
	}
	for _, r := range rows {
		if r.Currency == "USDT" {
			return r.Equity, nil
		}
	}
	return 0, nil
}

func (c *MEXC) CloseConnection() error {
	c.http.CloseIdleConnections()
	return nil
}

// placeMarket — рыночный ордер contract v1 (type=5); плечо и режим
// маржи передаются в теле.
func (c *MEXC) placeMarket(ctx context.Context, instID string, vol float64, side int) (*Order, error) {
	body, err := json.Marshal(map[string]any{
		"symbol":   instID,
		"price":    0,
		"vol":      vol,
		"type":     5,
		"side":     side,
		"openType": c.openType,
		"leverage": c.leverage,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		mexcBaseURL+"/api/v1/private/order/create", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, string(body))

	data, err := c.send(req)
	if err != nil {
		return nil, err
	}

	var out struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		// часть ответов отдаёт orderId строкой верхнего уровня
		var id string
		if json.Unmarshal(data, &id) == nil {
			out.OrderID = id
		}
	}
	// цены в ответе нет — диспетчер возьмёт цену до ордера
	return &Order{ID: out.OrderID, Status: "filled"}, nil
}

func (c *MEXC) get(ctx context.Context, path, query string, signed bool) (json.RawMessage, error) {
	url := mexcBaseURL + path
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

func (c *MEXC) sign(req *http.Request, paramString string) {
	reqTime := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(c.apiKey + reqTime + paramString))

	req.Header.Set("ApiKey", c.apiKey)
	req.Header.Set("Request-Time", reqTime)
	req.Header.Set("Signature", hex.EncodeToString(h.Sum(nil)))
}

func (c *MEXC) send(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("mexc http %d: %s", resp.StatusCode, string(rb))
	}

	var out mexcResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("mexc error: code=%d msg=%s", out.Code, out.Message)
	}
	return out.Data, nil
}

// mexcSymbol: BTCUSDT -> BTC_USDT.
func mexcSymbol(symbol string) string {
	base := strings.TrimSuffix(symbol, "USDT")
	if base == symbol {
		return symbol
	}
	return base + "_USDT"
}

// mexcInterval — нотация таймфреймов contract v1; 3m и 3d у MEXC нет.
func mexcInterval(timeframe string) string {
	switch timeframe {
	case "1m":
		return "Min1"
	case "5m":
		return "Min5"
	case "15m":
		return "Min15"
	case "30m":
		return "Min30"
	case "1h":
		return "Min60"
	case "4h":
		return "Hour4"
	case "8h":
		return "Hour8"
	case "1d":
		return "Day1"
	case "1w":
		return "Week1"
	}
	return ""
}
