package broker

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/adshao/go-binance/v2/options"
	"github.com/google/uuid"

	"github.com/quantive/binance-mcp/internal/account"
	"github.com/quantive/binance-mcp/pkg/schema"
)

// Client is an ephemeral authenticated handle bound to one account. Exactly
// one of the underlying go-binance clients is set, selected by the account's
// market type. Instances are owned by the factory cache and discarded on
// eviction; they are never persisted.
type Client struct {
	accountID  string
	marketType account.MarketType
	sandbox    bool
	brokerID   string

	Spot     *binance.Client
	Futures  *futures.Client
	Delivery *delivery.Client
	Options  *options.Client
}

// AccountID returns the account this client authenticates as.
func (c *Client) AccountID() string { return c.accountID }

// MarketType returns the market surface this client targets.
func (c *Client) MarketType() account.MarketType { return c.marketType }

// Sandbox reports whether the client points at testnet endpoints.
func (c *Client) Sandbox() bool { return c.sandbox }

// BrokerID returns the partner identifier injected into this client.
func (c *Client) BrokerID() string { return c.brokerID }

// NewOrderID returns a fresh broker-tagged client order id. Every order
// placed through this vault carries the tag, so executed volume stays
// attributable to the integration. Binance caps client order ids at 36
// characters; the tag plus 22 random characters stays within that.
func (c *Client) NewOrderID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:22]
	return "x-" + c.brokerID + random
}

// ProbeResult reports the outcome of a connectivity probe.
type ProbeResult struct {
	ServerTime time.Time `json:"server_time,omitempty"`
	AuthOK     bool      `json:"auth_ok"`
}

// Ping performs a lightweight connectivity probe: a public server-time fetch
// where the market supports it, then a signed account/balance fetch to prove
// the credentials work. Errors never include credential material.
func (c *Client) Ping(ctx context.Context) (*ProbeResult, error) {
	res := &ProbeResult{}

	switch c.marketType {
	case account.MarketTypeSpot:
		ts, err := c.Spot.NewServerTimeService().Do(ctx)
		if err != nil {
			return nil, probeError(c.accountID, err)
		}
		res.ServerTime = time.UnixMilli(ts)
		if _, err := c.Spot.NewGetAccountService().Do(ctx); err != nil {
			return res, probeError(c.accountID, err)
		}
	case account.MarketTypeUSDMFutures:
		ts, err := c.Futures.NewServerTimeService().Do(ctx)
		if err != nil {
			return nil, probeError(c.accountID, err)
		}
		res.ServerTime = time.UnixMilli(ts)
		if _, err := c.Futures.NewGetBalanceService().Do(ctx); err != nil {
			return res, probeError(c.accountID, err)
		}
	case account.MarketTypeCoinMFutures:
		ts, err := c.Delivery.NewServerTimeService().Do(ctx)
		if err != nil {
			return nil, probeError(c.accountID, err)
		}
		res.ServerTime = time.UnixMilli(ts)
		if _, err := c.Delivery.NewGetBalanceService().Do(ctx); err != nil {
			return res, probeError(c.accountID, err)
		}
	case account.MarketTypeOptions:
		if _, err := c.Options.NewAccountService().Do(ctx); err != nil {
			return res, probeError(c.accountID, err)
		}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeClientConstruction,
			"no probe for market type %q", c.marketType).WithAccount(c.accountID)
	}

	res.AuthOK = true
	return res, nil
}

func probeError(accountID string, err error) error {
	return schema.NewError(schema.ErrCodeClientConstruction, "connectivity probe failed").
		WithAccount(accountID).WithCause(err)
}
