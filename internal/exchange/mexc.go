package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pmaren/market-sentry/internal/candle"
)

const (
	mexcBaseURL    = "https://api.mexc.com"
	mexcRecvWindow = "50000"
)

// MEXC is a spot REST adapter. When paper is set, order submission
// short-circuits into a synthetic acknowledgment without touching the
// network; market-data calls always go out.
type MEXC struct {
	apiKey  string
	secret  string
	baseURL string
	paper   bool
	httpc   *http.Client
}

func NewMEXC(apiKey, secret string, paper bool, timeout time.Duration) *MEXC {
	return &MEXC{
		apiKey:  apiKey,
		secret:  secret,
		baseURL: mexcBaseURL,
		paper:   paper,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (m *MEXC) Name() string { return "mexc" }

// Sign returns the hex HMAC-SHA256 of the encoded query under the API
// secret. url.Values.Encode sorts keys, matching what the exchange expects.
func (m *MEXC) Sign(query string) string {
	mac := hmac.New(sha256.New, []byte(m.secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *MEXC) request(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		if m.apiKey == "" || m.secret == "" {
			return nil, fmt.Errorf("%w: %s %s", ErrMissingCredentials, method, path)
		}
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", mexcRecvWindow)
		params.Set("signature", m.Sign(params.Encode()))
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MEXC-APIKEY", m.apiKey)

	resp, err := m.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrDataUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrDataUnavailable, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, m.apiError(resp.StatusCode, body)
	}
	return body, nil
}

// apiError maps a non-2xx response onto the error taxonomy. Code -1121 is
// the exchange's "invalid symbol" rejection.
func (m *MEXC) apiError(status int, body []byte) error {
	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Code == -1121 || strings.Contains(strings.ToLower(payload.Msg), "invalid symbol") {
			return fmt.Errorf("%w: %s", ErrUnknownSymbol, payload.Msg)
		}
		if status == http.StatusBadRequest {
			return fmt.Errorf("%w: %s (code %d)", ErrOrderRejected, payload.Msg, payload.Code)
		}
	}
	return fmt.Errorf("%w: status %d: %s", ErrDataUnavailable, status, strings.TrimSpace(string(body)))
}

// withRetry retries transient failures once with a short backoff. Permanent
// rejections pass through immediately.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Msg("exchange retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

func (m *MEXC) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var body []byte
	err := withRetry(ctx, "klines", func() error {
		var err error
		body, err = m.request(ctx, http.MethodGet, "/api/v3/klines", params, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: malformed klines payload: %v", ErrDataUnavailable, err)
	}

	candles := make([]candle.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		c := candle.Candle{
			OpenTime: time.UnixMilli(int64(asFloat(row[0]))).UTC(),
			Open:     asFloat(row[1]),
			High:     asFloat(row[2]),
			Low:      asFloat(row[3]),
			Close:    asFloat(row[4]),
			Volume:   asFloat(row[5]),
			Symbol:   symbol,
			Interval: interval,
		}
		if err := c.Validate(); err != nil {
			continue
		}
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: empty klines response for %s", ErrDataUnavailable, symbol)
	}
	return candles, nil
}

func (m *MEXC) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var body []byte
	err := withRetry(ctx, "ticker", func() error {
		var err error
		body, err = m.request(ctx, http.MethodGet, "/api/v3/ticker/price", params, false)
		return err
	})
	if err != nil {
		return 0, err
	}

	var payload struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("%w: malformed ticker payload: %v", ErrDataUnavailable, err)
	}
	price, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: bad ticker price %q", ErrDataUnavailable, payload.Price)
	}
	return price, nil
}

func (m *MEXC) FetchBalances(ctx context.Context) (map[string]float64, error) {
	body, err := m.request(ctx, http.MethodGet, "/api/v3/account", nil, true)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed account payload: %v", ErrDataUnavailable, err)
	}

	balances := make(map[string]float64)
	for _, b := range payload.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		if free > 0 {
			balances[b.Asset] = free
		}
	}
	return balances, nil
}

func (m *MEXC) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", req.Type)
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	if req.Price > 0 {
		params.Set("price", fmt.Sprintf("%.8f", req.Price))
	}
	if req.StopPrice > 0 {
		params.Set("stopPrice", fmt.Sprintf("%.8f", req.StopPrice))
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}

	if m.paper {
		payload := make(map[string]string, len(params))
		for k := range params {
			payload[k] = params.Get(k)
		}
		return OrderResponse{
			OrderID:   fmt.Sprintf("paper-%d", time.Now().UnixNano()),
			Status:    "PAPER",
			Symbol:    req.Symbol,
			Side:      req.Side,
			Type:      req.Type,
			Price:     req.Price,
			Quantity:  req.Quantity,
			Paper:     true,
			Payload:   payload,
			Timestamp: time.Now().UTC(),
		}, nil
	}

	body, err := m.request(ctx, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return OrderResponse{}, err
	}

	var payload struct {
		OrderID any    `json:"orderId"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return OrderResponse{}, fmt.Errorf("%w: malformed order response: %v", ErrDataUnavailable, err)
	}
	return OrderResponse{
		OrderID:   fmt.Sprint(payload.OrderID),
		Status:    payload.Status,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Timestamp: time.Now().UTC(),
	}, nil
}

// asFloat coerces the mixed number/string cells of a klines row.
func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
