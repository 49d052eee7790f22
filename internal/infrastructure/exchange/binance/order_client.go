package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"tickd/internal/application/port"
)

// OrderClient places and manages orders over the signed REST endpoints.
type OrderClient struct {
	*APIClient
}

func NewOrderClient(client *APIClient) *OrderClient {
	return &OrderClient{APIClient: client}
}

type orderResponse struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	OrigQty string `json:"origQty"`
	Price   string `json:"price"`
}

func (c *OrderClient) PlaceOrder(ctx context.Context, req port.OrderRequest) (*port.OrderResult, error) {
	if req.Symbol == "" {
		return nil, errors.New("order symbol is empty")
	}
	if req.Side != port.SideBuy && req.Side != port.SideSell {
		return nil, fmt.Errorf("invalid order side: %q", req.Side)
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(req.Symbol))
	params.Set("side", req.Side)
	params.Set("quantity", formatQty(req.Quantity))

	switch req.Type {
	case port.TypeMarket:
		params.Set("type", port.TypeMarket)
	case port.TypeLimit:
		params.Set("type", port.TypeLimit)
		tif := req.TimeInForce
		if tif == "" {
			tif = port.TimeInForceGTC
		}
		params.Set("timeInForce", tif)
		params.Set("price", formatQty(req.Price))
	case port.TypeStopMarket:
		params.Set("type", port.TypeStopMarket)
		params.Set("stopPrice", formatQty(req.StopPrice))
	default:
		return nil, fmt.Errorf("invalid order type: %q", req.Type)
	}

	body, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}
	if resp.OrderID == 0 {
		return nil, fmt.Errorf("order rejected: %s", string(body))
	}

	log.Info().
		Str("symbol", resp.Symbol).
		Str("side", resp.Side).
		Str("type", req.Type).
		Float64("quantity", req.Quantity).
		Int64("orderID", resp.OrderID).
		Str("status", resp.Status).
		Msg("order placed")

	return &port.OrderResult{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		Symbol:   resp.Symbol,
		Side:     resp.Side,
		Status:   resp.Status,
		Quantity: parseF(resp.OrigQty),
		Price:    parseF(resp.Price),
	}, nil
}

func (c *OrderClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("orderId", orderID)

	body, err := c.signedRequest(ctx, http.MethodDelete, "/api/v3/order", params)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse cancel response: %w", err)
	}

	log.Info().
		Str("symbol", symbol).
		Str("orderId", orderID).
		Str("status", resp.Status).
		Msg("order cancelled")
	return nil
}

// ListOpenOrders returns open orders; empty symbol means all symbols.
func (c *OrderClient) ListOpenOrders(ctx context.Context, symbol string) ([]port.Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", strings.ToUpper(symbol))
	}

	body, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/openOrders", params)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}

	var resp []orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse open orders: %w", err)
	}

	orders := make([]port.Order, 0, len(resp))
	for _, o := range resp {
		orders = append(orders, port.Order{
			OrderID:  strconv.FormatInt(o.OrderID, 10),
			Symbol:   o.Symbol,
			Side:     o.Side,
			Type:     o.Type,
			Status:   o.Status,
			Quantity: parseF(o.OrigQty),
			Price:    parseF(o.Price),
		})
	}
	return orders, nil
}

// Convenience wrappers for the common order shapes.

func (c *OrderClient) LimitBuy(ctx context.Context, symbol string, quantity, price float64) (*port.OrderResult, error) {
	return c.PlaceOrder(ctx, port.OrderRequest{
		Symbol: symbol, Side: port.SideBuy, Type: port.TypeLimit,
		Quantity: quantity, Price: price, TimeInForce: port.TimeInForceGTC,
	})
}

func (c *OrderClient) LimitSell(ctx context.Context, symbol string, quantity, price float64) (*port.OrderResult, error) {
	return c.PlaceOrder(ctx, port.OrderRequest{
		Symbol: symbol, Side: port.SideSell, Type: port.TypeLimit,
		Quantity: quantity, Price: price, TimeInForce: port.TimeInForceGTC,
	})
}

func (c *OrderClient) MarketBuy(ctx context.Context, symbol string, quantity float64) (*port.OrderResult, error) {
	return c.PlaceOrder(ctx, port.OrderRequest{
		Symbol: symbol, Side: port.SideBuy, Type: port.TypeMarket, Quantity: quantity,
	})
}

func (c *OrderClient) MarketSell(ctx context.Context, symbol string, quantity float64) (*port.OrderResult, error) {
	return c.PlaceOrder(ctx, port.OrderRequest{
		Symbol: symbol, Side: port.SideSell, Type: port.TypeMarket, Quantity: quantity,
	})
}

func (c *OrderClient) StopMarket(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*port.OrderResult, error) {
	return c.PlaceOrder(ctx, port.OrderRequest{
		Symbol: symbol, Side: side, Type: port.TypeStopMarket,
		Quantity: quantity, StopPrice: stopPrice,
	})
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ port.TradingGateway = (*OrderClient)(nil)
