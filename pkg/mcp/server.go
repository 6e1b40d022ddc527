package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/quantive/binance-mcp/internal/logging"
	"github.com/quantive/binance-mcp/internal/vault"
)

// VaultServerDeps holds the dependencies for creating a VaultServer.
type VaultServerDeps struct {
	Vault  *vault.Vault
	Logger *slog.Logger
}

// VaultServer wraps an MCP server with Binance trading tool handlers. Every
// tool that touches an account resolves it through the credential vault, so
// credentials are decrypted on demand and never appear in tool output.
type VaultServer struct {
	vault     *vault.Vault
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewVaultServer creates a new VaultServer with all tools registered.
func NewVaultServer(deps VaultServerDeps) *VaultServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &VaultServer{
		vault:  deps.Vault,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"binance-mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Binance trading gateway for configured exchange accounts. Trading and account tools take an account_id (see binance.list_accounts); market data tools work without one. Amounts and prices accept decimal strings to preserve precision."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *VaultServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *VaultServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *VaultServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: createSpotOrderTool(), Handler: s.tool("binance.create_spot_order", s.handleCreateSpotOrder)},
		{Tool: createFuturesOrderTool(), Handler: s.tool("binance.create_futures_order", s.handleCreateFuturesOrder)},
		{Tool: cancelOrderTool(), Handler: s.tool("binance.cancel_order", s.handleCancelOrder)},
		{Tool: editOrderTool(), Handler: s.tool("binance.edit_order", s.handleEditOrder)},
		{Tool: getBalanceTool(), Handler: s.tool("binance.get_balance", s.handleGetBalance)},
		{Tool: getPositionsTool(), Handler: s.tool("binance.get_positions", s.handleGetPositions)},
		{Tool: getOrdersTool(), Handler: s.tool("binance.get_orders", s.handleGetOrders)},
		{Tool: getOpenOrdersTool(), Handler: s.tool("binance.get_open_orders", s.handleGetOpenOrders)},
		{Tool: getTradesTool(), Handler: s.tool("binance.get_trades", s.handleGetTrades)},
		{Tool: getTradingFeesTool(), Handler: s.tool("binance.get_trading_fees", s.handleGetTradingFees)},
		{Tool: getTickerTool(), Handler: s.tool("binance.get_ticker", s.handleGetTicker)},
		{Tool: getOrderBookTool(), Handler: s.tool("binance.get_order_book", s.handleGetOrderBook)},
		{Tool: getKlinesTool(), Handler: s.tool("binance.get_klines", s.handleGetKlines)},
		{Tool: setLeverageTool(), Handler: s.tool("binance.set_leverage", s.handleSetLeverage)},
		{Tool: setMarginModeTool(), Handler: s.tool("binance.set_margin_mode", s.handleSetMarginMode)},
		{Tool: transferFundsTool(), Handler: s.tool("binance.transfer_funds", s.handleTransferFunds)},
		{Tool: listAccountsTool(), Handler: s.tool("binance.list_accounts", s.handleListAccounts)},
		{Tool: clearCacheTool(), Handler: s.tool("binance.clear_cache", s.handleClearCache)},
	}
}

// tool wraps a handler so log records emitted during the call carry the tool name.
func (s *VaultServer) tool(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return h(logging.WithTool(ctx, name), req)
	}
}

// --- Tool definitions ---

func createSpotOrderTool() mcp.Tool {
	return mcp.NewTool("binance.create_spot_order",
		mcp.WithDescription("Place a spot order. The order carries a broker-tagged client order id"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Configured account to trade with (must be a spot account)")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair, e.g. BTCUSDT")),
		mcp.WithString("side", mcp.Required(), mcp.Enum("buy", "sell"), mcp.Description("Order side")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Order quantity in base asset (decimal string also accepted)")),
		mcp.WithString("order_type", mcp.Enum("limit", "market"), mcp.Description("Order type (default: limit)")),
		mcp.WithNumber("price", mcp.Description("Limit price (required for limit orders)")),
	)
}

func createFuturesOrderTool() mcp.Tool {
	return mcp.NewTool("binance.create_futures_order",
		mcp.WithDescription("Place a futures order on a USD-M or COIN-M futures account. The order carries a broker-tagged client order id"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Configured futures account to trade with")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Contract symbol, e.g. BTCUSDT or BTCUSD_PERP")),
		mcp.WithString("side", mcp.Required(), mcp.Enum("buy", "sell"), mcp.Description("Order side")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Order quantity in contracts")),
		mcp.WithString("order_type", mcp.Enum("limit", "market"), mcp.Description("Order type (default: limit)")),
		mcp.WithNumber("price", mcp.Description("Limit price (required for limit orders)")),
		mcp.WithBoolean("reduce_only", mcp.Description("Only reduce an existing position")),
	)
}

func cancelOrderTool() mcp.Tool {
	return mcp.NewTool("binance.cancel_order",
		mcp.WithDescription("Cancel an order by exchange order id or client order id"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Account the order belongs to")),
		mcp.WithString("order_id", mcp.Required(), mcp.Description("Exchange order id (numeric) or client order id")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair of the order")),
	)
}

func editOrderTool() mcp.Tool {
	return mcp.NewTool("binance.edit_order",
		mcp.WithDescription("Replace an open order: cancels it and places a new one with the given parameters"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Account the order belongs to")),
		mcp.WithString("order_id", mcp.Required(), mcp.Description("Order to replace (exchange id or client order id)")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair of the order")),
		mcp.WithString("side", mcp.Required(), mcp.Enum("buy", "sell"), mcp.Description("Side of the replacement order")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Quantity of the replacement order")),
		mcp.WithString("order_type", mcp.Enum("limit", "market"), mcp.Description("Type of the replacement order (default: limit)")),
		mcp.WithNumber("price", mcp.Description("Limit price of the replacement order")),
	)
}

func getBalanceTool() mcp.Tool {
	return mcp.NewTool("binance.get_balance",
		mcp.WithDescription("Fetch balances for an account's market (spot assets, futures margin balances, or options account)"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Account to query")),
	)
}

func getPositionsTool() mcp.Tool {
	return mcp.NewTool("binance.get_positions",
		mcp.WithDescription("Fetch open positions with risk data for a futures account"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("USD-M or COIN-M futures account to query")),
		mcp.WithString("symbol", mcp.Description("Restrict to one contract symbol")),
	)
}

func getOrdersTool() mcp.Tool {
	return mcp.NewTool("binance.get_orders",
		mcp.WithDescription("Fetch order history for a symbol"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Account to query")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair to list orders for")),
		mcp.WithNumber("since", mcp.Description("Only orders after this Unix millisecond timestamp")),
		mcp.WithNumber("limit", mcp.Description("Maximum orders to return (default: 50)")),
	)
}

func getOpenOrdersTool() mcp.Tool {
	return mcp.NewTool("binance.get_open_orders",
		mcp.WithDescription("Fetch currently open orders"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Account to query")),
		mcp.WithString("symbol", mcp.Description("Restrict to one trading pair")),
	)
}

func getTradesTool() mcp.Tool {
	return mcp.NewTool("binance.get_trades",
		mcp.WithDescription("Fetch the account's trade fills for a symbol"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Account to query")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair to list fills for")),
		mcp.WithNumber("since", mcp.Description("Only fills after this Unix millisecond timestamp")),
		mcp.WithNumber("limit", mcp.Description("Maximum fills to return (default: 50)")),
	)
}

func getTradingFeesTool() mcp.Tool {
	return mcp.NewTool("binance.get_trading_fees",
		mcp.WithDescription("Fetch maker/taker commission rates for the account"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Account to query")),
		mcp.WithString("symbol", mcp.Description("Trading pair (required for futures accounts)")),
	)
}

func getTickerTool() mcp.Tool {
	return mcp.NewTool("binance.get_ticker",
		mcp.WithDescription("Fetch 24h ticker statistics for a symbol (public market data)"),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair, e.g. BTCUSDT")),
		mcp.WithString("account_id", mcp.Description("Account whose market to query (default: first configured account)")),
	)
}

func getOrderBookTool() mcp.Tool {
	return mcp.NewTool("binance.get_order_book",
		mcp.WithDescription("Fetch order book depth for a symbol (public market data)"),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair, e.g. BTCUSDT")),
		mcp.WithNumber("limit", mcp.Description("Depth levels to return (default: 100)")),
		mcp.WithString("account_id", mcp.Description("Account whose market to query (default: first configured account)")),
	)
}

func getKlinesTool() mcp.Tool {
	return mcp.NewTool("binance.get_klines",
		mcp.WithDescription("Fetch candlestick data for a symbol (public market data)"),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair, e.g. BTCUSDT")),
		mcp.WithString("timeframe", mcp.Description("Candle interval such as 1m, 5m, 1h, 1d (default: 1h)")),
		mcp.WithNumber("since", mcp.Description("Only candles after this Unix millisecond timestamp")),
		mcp.WithNumber("limit", mcp.Description("Maximum candles to return (default: 100)")),
		mcp.WithString("account_id", mcp.Description("Account whose market to query (default: first configured account)")),
	)
}

func setLeverageTool() mcp.Tool {
	return mcp.NewTool("binance.set_leverage",
		mcp.WithDescription("Set initial leverage for a futures contract"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("USD-M or COIN-M futures account")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Contract symbol")),
		mcp.WithNumber("leverage", mcp.Required(), mcp.Description("Leverage multiplier, e.g. 10")),
	)
}

func setMarginModeTool() mcp.Tool {
	return mcp.NewTool("binance.set_margin_mode",
		mcp.WithDescription("Set the margin mode for a futures contract"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("USD-M or COIN-M futures account")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Contract symbol")),
		mcp.WithString("margin_mode", mcp.Required(), mcp.Enum("isolated", "cross"), mcp.Description("Margin mode")),
	)
}

func transferFundsTool() mcp.Tool {
	return mcp.NewTool("binance.transfer_funds",
		mcp.WithDescription("Transfer funds between wallets of the same Binance account (spot, USD-M futures, COIN-M futures, margin)"),
		mcp.WithString("account_id", mcp.Required(), mcp.Description("Spot account whose credentials authorize the transfer")),
		mcp.WithString("currency", mcp.Required(), mcp.Description("Asset to transfer, e.g. USDT")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount to transfer")),
		mcp.WithString("from_account", mcp.Required(), mcp.Enum("spot", "usd_m_futures", "coin_m_futures", "margin"), mcp.Description("Source wallet")),
		mcp.WithString("to_account", mcp.Required(), mcp.Enum("spot", "usd_m_futures", "coin_m_futures", "margin"), mcp.Description("Destination wallet")),
	)
}

func listAccountsTool() mcp.Tool {
	return mcp.NewTool("binance.list_accounts",
		mcp.WithDescription("List configured accounts: id, market type, sandbox flag, and description. Never returns credentials"),
	)
}

func clearCacheTool() mcp.Tool {
	return mcp.NewTool("binance.clear_cache",
		mcp.WithDescription("Discard all cached exchange clients; the next call for each account re-reads its stored credentials"),
	)
}
