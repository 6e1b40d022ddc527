package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quantive/binance-mcp/internal/account"
	"github.com/quantive/binance-mcp/internal/broker"
)

// orderParams carries normalized order fields shared by the create and edit
// handlers. Quantities and prices stay strings end to end; the exchange API
// takes decimal strings and reformatting through float64 would lose precision.
type orderParams struct {
	symbol     string
	side       string // BUY or SELL
	orderType  string // LIMIT or MARKET
	quantity   string
	price      string
	reduceOnly bool
}

// handleCreateSpotOrder places a spot order with a broker-tagged client order id.
func (s *VaultServer) handleCreateSpotOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	if client.MarketType() != account.MarketTypeSpot {
		return mcp.NewToolResultError(fmt.Sprintf(
			"account %q is a %s account; use binance.create_futures_order for futures accounts",
			client.AccountID(), client.MarketType())), nil
	}

	params, errResult := parseOrderParams(req)
	if errResult != nil {
		return errResult, nil
	}

	res, err := placeSpotOrder(ctx, client, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("order rejected: %v", err)), nil
	}
	return marshalResult(res)
}

// handleCreateFuturesOrder places an order on a USD-M or COIN-M futures account.
func (s *VaultServer) handleCreateFuturesOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	params, errResult := parseOrderParams(req)
	if errResult != nil {
		return errResult, nil
	}
	params.reduceOnly = req.GetBool("reduce_only", false)

	var (
		res any
		err error
	)
	switch client.MarketType() {
	case account.MarketTypeUSDMFutures:
		res, err = placeUSDMOrder(ctx, client, params)
	case account.MarketTypeCoinMFutures:
		res, err = placeCoinMOrder(ctx, client, params)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"account %q is a %s account; futures orders need a usd_m_futures or coin_m_futures account",
			client.AccountID(), client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("order rejected: %v", err)), nil
	}
	return marshalResult(res)
}

// handleCancelOrder cancels an order by exchange id or client order id.
func (s *VaultServer) handleCancelOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	orderID, err := req.RequireString("order_id")
	if err != nil {
		return mcp.NewToolResultError("order_id is required"), nil
	}
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("symbol is required"), nil
	}

	res, err := cancelOrder(ctx, client, symbol, orderID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cancel failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleEditOrder replaces an open order: cancel, then place a new order with
// the requested parameters. Binance has no atomic modify for most markets, so
// a successful cancel followed by a rejected create leaves the order cancelled;
// the response reports both stages.
func (s *VaultServer) handleEditOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	orderID, err := req.RequireString("order_id")
	if err != nil {
		return mcp.NewToolResultError("order_id is required"), nil
	}
	params, errResult := parseOrderParams(req)
	if errResult != nil {
		return errResult, nil
	}

	cancelled, err := cancelOrder(ctx, client, params.symbol, orderID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cancel failed, order unchanged: %v", err)), nil
	}

	var created any
	switch client.MarketType() {
	case account.MarketTypeSpot:
		created, err = placeSpotOrder(ctx, client, params)
	case account.MarketTypeUSDMFutures:
		created, err = placeUSDMOrder(ctx, client, params)
	case account.MarketTypeCoinMFutures:
		created, err = placeCoinMOrder(ctx, client, params)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"edit is not supported for %s accounts", client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"order %s was cancelled but the replacement was rejected: %v", orderID, err)), nil
	}

	return marshalResult(map[string]any{
		"cancelled": cancelled,
		"created":   created,
	})
}

// --- Order placement per market ---

func placeSpotOrder(ctx context.Context, client *broker.Client, p orderParams) (*binance.CreateOrderResponse, error) {
	svc := client.Spot.NewCreateOrderService().
		Symbol(p.symbol).
		Side(binance.SideType(p.side)).
		Type(binance.OrderType(p.orderType)).
		Quantity(p.quantity).
		NewClientOrderID(client.NewOrderID())
	if p.orderType == "LIMIT" {
		svc = svc.Price(p.price).TimeInForce(binance.TimeInForceTypeGTC)
	}
	return svc.Do(ctx)
}

func placeUSDMOrder(ctx context.Context, client *broker.Client, p orderParams) (*futures.CreateOrderResponse, error) {
	svc := client.Futures.NewCreateOrderService().
		Symbol(p.symbol).
		Side(futures.SideType(p.side)).
		Type(futures.OrderType(p.orderType)).
		Quantity(p.quantity).
		NewClientOrderID(client.NewOrderID())
	if p.orderType == "LIMIT" {
		svc = svc.Price(p.price).TimeInForce(futures.TimeInForceTypeGTC)
	}
	if p.reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	return svc.Do(ctx)
}

func placeCoinMOrder(ctx context.Context, client *broker.Client, p orderParams) (*delivery.CreateOrderResponse, error) {
	svc := client.Delivery.NewCreateOrderService().
		Symbol(p.symbol).
		Side(delivery.SideType(p.side)).
		Type(delivery.OrderType(p.orderType)).
		Quantity(p.quantity).
		NewClientOrderID(client.NewOrderID())
	if p.orderType == "LIMIT" {
		svc = svc.Price(p.price).TimeInForce(delivery.TimeInForceTypeGTC)
	}
	if p.reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	return svc.Do(ctx)
}

// cancelOrder cancels by numeric exchange order id when orderID parses as an
// integer, otherwise by client order id.
func cancelOrder(ctx context.Context, client *broker.Client, symbol, orderID string) (any, error) {
	numericID, numErr := strconv.ParseInt(orderID, 10, 64)

	switch client.MarketType() {
	case account.MarketTypeSpot:
		svc := client.Spot.NewCancelOrderService().Symbol(symbol)
		if numErr == nil {
			svc = svc.OrderID(numericID)
		} else {
			svc = svc.OrigClientOrderID(orderID)
		}
		return svc.Do(ctx)
	case account.MarketTypeUSDMFutures:
		svc := client.Futures.NewCancelOrderService().Symbol(symbol)
		if numErr == nil {
			svc = svc.OrderID(numericID)
		} else {
			svc = svc.OrigClientOrderID(orderID)
		}
		return svc.Do(ctx)
	case account.MarketTypeCoinMFutures:
		svc := client.Delivery.NewCancelOrderService().Symbol(symbol)
		if numErr == nil {
			svc = svc.OrderID(numericID)
		} else {
			svc = svc.OrigClientOrderID(orderID)
		}
		return svc.Do(ctx)
	default:
		return nil, fmt.Errorf("cancel is not supported for %s accounts", client.MarketType())
	}
}

// --- Shared helpers ---

// resolveRequired reads the required account_id argument and resolves it to a
// client. The second return value is a ready tool error result when anything
// fails; vault errors carry the error code and account id but never secrets.
func (s *VaultServer) resolveRequired(ctx context.Context, req mcp.CallToolRequest) (*broker.Client, *mcp.CallToolResult) {
	accountID, err := req.RequireString("account_id")
	if err != nil {
		return nil, mcp.NewToolResultError("account_id is required")
	}
	client, err := s.vault.Resolve(ctx, accountID)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return client, nil
}

// resolveDefault resolves the optional account_id argument, falling back to
// the first configured account. Market data tools use this so callers do not
// have to pick an account for public endpoints.
func (s *VaultServer) resolveDefault(ctx context.Context, req mcp.CallToolRequest) (*broker.Client, *mcp.CallToolResult) {
	accountID := req.GetString("account_id", "")
	if accountID == "" {
		accounts, err := s.vault.ListAccounts(ctx)
		if err != nil {
			return nil, mcp.NewToolResultError(err.Error())
		}
		if len(accounts) == 0 {
			return nil, mcp.NewToolResultError("no accounts configured; add one with the config command")
		}
		accountID = accounts[0].ID
	}
	client, err := s.vault.Resolve(ctx, accountID)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return client, nil
}

// parseOrderParams validates the shared order arguments.
func parseOrderParams(req mcp.CallToolRequest) (orderParams, *mcp.CallToolResult) {
	var p orderParams

	symbol, err := req.RequireString("symbol")
	if err != nil {
		return p, mcp.NewToolResultError("symbol is required")
	}
	side, err := req.RequireString("side")
	if err != nil {
		return p, mcp.NewToolResultError("side is required")
	}
	side = strings.ToUpper(side)
	if side != "BUY" && side != "SELL" {
		return p, mcp.NewToolResultError("side must be buy or sell")
	}

	p.symbol = symbol
	p.side = side
	p.orderType = strings.ToUpper(req.GetString("order_type", "limit"))
	p.quantity = decimalArg(req, "amount")
	p.price = decimalArg(req, "price")

	if p.quantity == "" {
		return p, mcp.NewToolResultError("amount is required")
	}
	if p.orderType == "LIMIT" && p.price == "" {
		return p, mcp.NewToolResultError("price is required for limit orders")
	}
	return p, nil
}

// decimalArg reads a numeric argument as a decimal string. Accepts both JSON
// numbers and strings so callers can pass exact decimal values.
func decimalArg(req mcp.CallToolRequest, key string) string {
	switch v := req.GetArguments()[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
