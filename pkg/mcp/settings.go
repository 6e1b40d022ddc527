package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quantive/binance-mcp/internal/account"
)

// handleSetLeverage sets initial leverage for a futures contract.
func (s *VaultServer) handleSetLeverage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("symbol is required"), nil
	}
	leverage := req.GetInt("leverage", 0)
	if leverage < 1 {
		return mcp.NewToolResultError("leverage must be a positive integer"), nil
	}

	var res any
	switch client.MarketType() {
	case account.MarketTypeUSDMFutures:
		res, err = client.Futures.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	case account.MarketTypeCoinMFutures:
		res, err = client.Delivery.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"account %q is a %s account; leverage applies only to futures accounts",
			client.AccountID(), client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("set leverage failed: %v", err)), nil
	}
	return marshalResult(res)
}

// handleSetMarginMode sets isolated or cross margin for a futures contract.
func (s *VaultServer) handleSetMarginMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("symbol is required"), nil
	}
	mode, err := req.RequireString("margin_mode")
	if err != nil {
		return mcp.NewToolResultError("margin_mode is required"), nil
	}

	// The exchange API names cross margin "CROSSED".
	marginType := strings.ToUpper(mode)
	if marginType == "CROSS" {
		marginType = "CROSSED"
	}
	if marginType != "ISOLATED" && marginType != "CROSSED" {
		return mcp.NewToolResultError("margin_mode must be isolated or cross"), nil
	}

	switch client.MarketType() {
	case account.MarketTypeUSDMFutures:
		err = client.Futures.NewChangeMarginTypeService().
			Symbol(symbol).MarginType(futures.MarginType(marginType)).Do(ctx)
	case account.MarketTypeCoinMFutures:
		err = client.Delivery.NewChangeMarginTypeService().
			Symbol(symbol).MarginType(delivery.MarginType(marginType)).Do(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"account %q is a %s account; margin mode applies only to futures accounts",
			client.AccountID(), client.MarketType())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("set margin mode failed: %v", err)), nil
	}
	return marshalResult(map[string]any{
		"symbol":      symbol,
		"margin_mode": strings.ToLower(mode),
		"ok":          true,
	})
}

// walletCodes maps tool wallet names to the exchange's universal transfer codes.
var walletCodes = map[string]string{
	"spot":           "MAIN",
	"usd_m_futures":  "UMFUTURE",
	"coin_m_futures": "CMFUTURE",
	"margin":         "MARGIN",
}

// handleTransferFunds moves funds between wallets of the same Binance account
// using the universal transfer endpoint, which lives on the spot API surface.
func (s *VaultServer) handleTransferFunds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, errResult := s.resolveRequired(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	if client.MarketType() != account.MarketTypeSpot {
		return mcp.NewToolResultError(fmt.Sprintf(
			"account %q is a %s account; transfers require a spot account's credentials",
			client.AccountID(), client.MarketType())), nil
	}

	currency, err := req.RequireString("currency")
	if err != nil {
		return mcp.NewToolResultError("currency is required"), nil
	}
	amount := decimalArg(req, "amount")
	if amount == "" {
		return mcp.NewToolResultError("amount is required"), nil
	}
	from, err := req.RequireString("from_account")
	if err != nil {
		return mcp.NewToolResultError("from_account is required"), nil
	}
	to, err := req.RequireString("to_account")
	if err != nil {
		return mcp.NewToolResultError("to_account is required"), nil
	}

	fromCode, ok := walletCodes[from]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown from_account %q", from)), nil
	}
	toCode, ok := walletCodes[to]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown to_account %q", to)), nil
	}
	if fromCode == toCode {
		return mcp.NewToolResultError("from_account and to_account must differ"), nil
	}

	res, err := client.Spot.NewUserUniversalTransferService().
		Type(binance.UserUniversalTransferType(fromCode + "_" + toCode)).
		Asset(currency).
		Amount(amount).
		Do(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("transfer failed: %v", err)), nil
	}
	return marshalResult(res)
}
