package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quantive/binance-mcp/internal/account"
)

// handleGetTicker fetches 24h ticker statistics. Market data is public, so
// when no account_id is given the first configured account's market is used.
func (s *VaultServer) handleGetTicker(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveDefault(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("symbol is required"), nil
	}

	var res any
	switch client.MarketType() {
	case account.MarketTypeSpot:
		res, err = client.Spot.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	case account.MarketTypeUSDMFutures:
		res, err = client.Futures.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	case account.MarketTypeCoinMFutures:
		res, err = client.Delivery.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"ticker data is not available through %s accounts; pass a spot or futures account_id",
			client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ticker query failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleGetOrderBook fetches order book depth for a symbol.
func (s *VaultServer) handleGetOrderBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveDefault(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("symbol is required"), nil
	}
	limit := req.GetInt("limit", 100)

	var res any
	switch client.MarketType() {
	case account.MarketTypeSpot:
		res, err = client.Spot.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	case account.MarketTypeUSDMFutures:
		res, err = client.Futures.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	case account.MarketTypeCoinMFutures:
		res, err = client.Delivery.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"order book data is not available through %s accounts; pass a spot or futures account_id",
			client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("order book query failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleGetKlines fetches candlestick data for a symbol.
func (s *VaultServer) handleGetKlines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveDefault(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("symbol is required"), nil
	}
	timeframe := req.GetString("timeframe", "1h")
	since := int64(req.GetFloat("since", 0))
	limit := req.GetInt("limit", 100)

	var res any
	switch client.MarketType() {
	case account.MarketTypeSpot:
		svc := client.Spot.NewKlinesService().Symbol(symbol).Interval(timeframe).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeUSDMFutures:
		svc := client.Futures.NewKlinesService().Symbol(symbol).Interval(timeframe).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeCoinMFutures:
		svc := client.Delivery.NewKlinesService().Symbol(symbol).Interval(timeframe).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"kline data is not available through %s accounts; pass a spot or futures account_id",
			client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("kline query failed: %v", err)), nil
	}
	return marshalResult(res)
}
