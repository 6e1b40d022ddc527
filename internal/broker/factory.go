package broker

import (
	"log/slog"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/adshao/go-binance/v2/options"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quantive/binance-mcp/internal/account"
	"github.com/quantive/binance-mcp/pkg/schema"
)

// Fixed partner identifiers applied to every constructed client. The end
// user never configures these; they exist so trades executed through this
// vault are attributable for the rebate program.
const (
	spotBrokerID    = "C96E9MGA"
	futuresBrokerID = "eFC56vBf"
)

// Testnet endpoints per market surface. Options has no testnet.
const (
	spotTestnetURL     = "https://testnet.binance.vision"
	futuresTestnetURL  = "https://testnet.binancefuture.com"
	deliveryTestnetURL = "https://testnet.binancefuture.com"
)

// DefaultCacheSize bounds the client cache. Least-recently-used accounts are
// evicted rather than letting the cache grow without limit across many
// accounts.
const DefaultCacheSize = 32

type cacheKey struct {
	accountID string
	sandbox   bool
}

// Factory builds authenticated, broker-tagged exchange clients from
// decrypted accounts and caches them for reuse within a session. All methods
// are safe for concurrent use; a build and a concurrent invalidation of the
// same key never expose a half-constructed client.
type Factory struct {
	mu     sync.Mutex
	cache  *lru.Cache[cacheKey, *Client]
	logger *slog.Logger
}

// NewFactory creates a factory with a bounded LRU client cache.
func NewFactory(cacheSize int, logger *slog.Logger) (*Factory, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[cacheKey, *Client](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Factory{cache: cache, logger: logger}, nil
}

// Build returns a ready-to-use client for the account, reusing a cached
// instance when the account state has not changed since it was built.
// Unsupported market_type/sandbox combinations fail with
// CLIENT_CONSTRUCTION_ERROR naming the combination.
func (f *Factory) Build(acct *account.Account) (*Client, error) {
	key := cacheKey{accountID: acct.ID, sandbox: acct.Sandbox}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache.Get(key); ok && cached.marketType == acct.MarketType {
		return cached, nil
	}

	client, err := f.construct(acct)
	if err != nil {
		return nil, err
	}
	f.cache.Add(key, client)

	f.logger.Info("exchange client built",
		slog.String("account_id", acct.ID),
		slog.String("market_type", acct.MarketType.String()),
		slog.Bool("sandbox", acct.Sandbox),
		slog.String("broker_id", client.brokerID))
	return client, nil
}

func (f *Factory) construct(acct *account.Account) (*Client, error) {
	c := &Client{
		accountID:  acct.ID,
		marketType: acct.MarketType,
		sandbox:    acct.Sandbox,
	}

	switch acct.MarketType {
	case account.MarketTypeSpot:
		c.brokerID = spotBrokerID
		c.Spot = binance.NewClient(acct.APIKey, acct.APISecret)
		if acct.Sandbox {
			c.Spot.BaseURL = spotTestnetURL
		}
	case account.MarketTypeUSDMFutures:
		c.brokerID = futuresBrokerID
		c.Futures = futures.NewClient(acct.APIKey, acct.APISecret)
		if acct.Sandbox {
			c.Futures.BaseURL = futuresTestnetURL
		}
	case account.MarketTypeCoinMFutures:
		c.brokerID = futuresBrokerID
		c.Delivery = delivery.NewClient(acct.APIKey, acct.APISecret)
		if acct.Sandbox {
			c.Delivery.BaseURL = deliveryTestnetURL
		}
	case account.MarketTypeOptions:
		if acct.Sandbox {
			return nil, schema.NewError(schema.ErrCodeClientConstruction,
				"options has no sandbox environment").WithAccount(acct.ID).
				WithDetails(map[string]any{"market_type": acct.MarketType, "sandbox": true})
		}
		c.brokerID = futuresBrokerID
		c.Options = options.NewClient(acct.APIKey, acct.APISecret)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeClientConstruction,
			"unsupported market type %q", acct.MarketType).WithAccount(acct.ID)
	}

	return c, nil
}

// Invalidate drops any cached clients for the account, both environments.
// Called whenever the underlying record is updated or removed so the next
// build re-reads credentials instead of serving a stale client.
func (f *Factory) Invalidate(accountID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Remove(cacheKey{accountID: accountID, sandbox: false})
	f.cache.Remove(cacheKey{accountID: accountID, sandbox: true})
}

// Close discards every cached client and its in-memory credentials.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Purge()
}

// CachedCount returns the number of live cached clients.
func (f *Factory) CachedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Len()
}
