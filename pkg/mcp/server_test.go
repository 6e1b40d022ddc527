package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVaultServer(t *testing.T) {
	s := NewVaultServer(VaultServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
}

func TestToolRegistration(t *testing.T) {
	s := NewVaultServer(VaultServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 18)

	expectedTools := []string{
		"binance.create_spot_order",
		"binance.create_futures_order",
		"binance.cancel_order",
		"binance.edit_order",
		"binance.get_balance",
		"binance.get_positions",
		"binance.get_orders",
		"binance.get_open_orders",
		"binance.get_trades",
		"binance.get_trading_fees",
		"binance.get_ticker",
		"binance.get_order_book",
		"binance.get_klines",
		"binance.set_leverage",
		"binance.set_margin_mode",
		"binance.transfer_funds",
		"binance.list_accounts",
		"binance.clear_cache",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"create_spot_order", "binance.create_spot_order", "Place a spot order. The order carries a broker-tagged client order id"},
		{"get_ticker", "binance.get_ticker", "Fetch 24h ticker statistics for a symbol (public market data)"},
		{"list_accounts", "binance.list_accounts", "List configured accounts: id, market type, sandbox flag, and description. Never returns credentials"},
	}

	s := NewVaultServer(VaultServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
