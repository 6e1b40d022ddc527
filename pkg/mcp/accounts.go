package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quantive/binance-mcp/internal/account"
)

// handleGetBalance fetches balances for whatever market the account targets.
func (s *VaultServer) handleGetBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	var (
		res any
		err error
	)
	switch client.MarketType() {
	case account.MarketTypeSpot:
		res, err = client.Spot.NewGetAccountService().Do(ctx)
	case account.MarketTypeUSDMFutures:
		res, err = client.Futures.NewGetBalanceService().Do(ctx)
	case account.MarketTypeCoinMFutures:
		res, err = client.Delivery.NewGetBalanceService().Do(ctx)
	case account.MarketTypeOptions:
		res, err = client.Options.NewAccountService().Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported market type %q", client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("balance query failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleGetPositions fetches position risk data. Futures only; spot holdings
// appear in get_balance instead.
func (s *VaultServer) handleGetPositions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol := req.GetString("symbol", "")

	var (
		res any
		err error
	)
	switch client.MarketType() {
	case account.MarketTypeUSDMFutures:
		svc := client.Futures.NewGetPositionRiskService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeCoinMFutures:
		svc := client.Delivery.NewGetPositionRiskService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		res, err = svc.Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"account %q is a %s account; positions exist only on futures accounts",
			client.AccountID(), client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("position query failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleGetOrders fetches order history for a symbol.
func (s *VaultServer) handleGetOrders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("symbol is required"), nil
	}
	since := int64(req.GetFloat("since", 0))
	limit := req.GetInt("limit", 50)

	var res any
	switch client.MarketType() {
	case account.MarketTypeSpot:
		svc := client.Spot.NewListOrdersService().Symbol(symbol).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeUSDMFutures:
		svc := client.Futures.NewListOrdersService().Symbol(symbol).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeCoinMFutures:
		svc := client.Delivery.NewListOrdersService().Symbol(symbol).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"order history is not supported for %s accounts", client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("order query failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleGetOpenOrders fetches currently open orders, optionally for one symbol.
func (s *VaultServer) handleGetOpenOrders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol := req.GetString("symbol", "")

	var (
		res any
		err error
	)
	switch client.MarketType() {
	case account.MarketTypeSpot:
		svc := client.Spot.NewListOpenOrdersService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeUSDMFutures:
		svc := client.Futures.NewListOpenOrdersService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeCoinMFutures:
		svc := client.Delivery.NewListOpenOrdersService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		res, err = svc.Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"open orders are not supported for %s accounts", client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open order query failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleGetTrades fetches the account's fills for a symbol.
func (s *VaultServer) handleGetTrades(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("symbol is required"), nil
	}
	since := int64(req.GetFloat("since", 0))
	limit := req.GetInt("limit", 50)

	var res any
	switch client.MarketType() {
	case account.MarketTypeSpot:
		svc := client.Spot.NewListTradesService().Symbol(symbol).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeUSDMFutures:
		svc := client.Futures.NewListAccountTradeService().Symbol(symbol).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeCoinMFutures:
		svc := client.Delivery.NewListAccountTradeService().Symbol(symbol).Limit(limit)
		if since > 0 {
			svc = svc.StartTime(since)
		}
		res, err = svc.Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"trade history is not supported for %s accounts", client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trade query failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleGetTradingFees fetches commission rates. Spot returns fees for all
// symbols (or one); futures markets require a symbol.
func (s *VaultServer) handleGetTradingFees(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol := req.GetString("symbol", "")

	var (
		res any
		err error
	)
	switch client.MarketType() {
	case account.MarketTypeSpot:
		svc := client.Spot.NewTradeFeeService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		res, err = svc.Do(ctx)
	case account.MarketTypeUSDMFutures:
		if symbol == "" {
			return mcp.NewToolResultError("symbol is required for futures fee queries"), nil
		}
		res, err = client.Futures.NewCommissionRateService().Symbol(symbol).Do(ctx)
	case account.MarketTypeCoinMFutures:
		if symbol == "" {
			return mcp.NewToolResultError("symbol is required for futures fee queries"), nil
		}
		res, err = client.Delivery.NewCommissionRateService().Symbol(symbol).Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"fee queries are not supported for %s accounts", client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fee query failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleListAccounts returns secret-free metadata for all configured accounts.
func (s *VaultServer) handleListAccounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accounts, err := s.vault.ListAccounts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(map[string]any{"accounts": accounts})
}

// handleClearCache discards every cached exchange client.
func (s *VaultServer) handleClearCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.vault.ClearCache(ctx)
	return marshalResult(map[string]any{"cleared": true})
}
