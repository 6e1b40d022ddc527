package vault

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantive/binance-mcp/internal/account"
	"github.com/quantive/binance-mcp/internal/audit"
	"github.com/quantive/binance-mcp/internal/broker"
	"github.com/quantive/binance-mcp/internal/configstore"
	"github.com/quantive/binance-mcp/internal/secrets"
	"github.com/quantive/binance-mcp/pkg/schema"
)

func testVault(t *testing.T) (*Vault, *audit.Log) {
	t.Helper()
	root := t.TempDir()
	store, err := configstore.NewStore(root, 2*time.Second)
	require.NoError(t, err)
	key, err := secrets.LoadKey(root, true)
	require.NoError(t, err)
	cipher, err := secrets.NewAESCipher(key)
	require.NoError(t, err)
	registry := account.NewRegistry(store, cipher, nil)
	factory, err := broker.NewFactory(broker.DefaultCacheSize, nil)
	require.NoError(t, err)
	log, err := audit.Open(context.Background(), "file:"+filepath.Join(root, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return New(registry, factory, log, nil), log
}

func spotMain() account.Account {
	return account.Account{
		ID:         "spot_main",
		APIKey:     "k1",
		APISecret:  "s1",
		MarketType: account.MarketTypeSpot,
	}
}

func TestVault_ResolveEndToEnd(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.AddAccount(ctx, spotMain()))

	client, err := v.Resolve(ctx, "spot_main")
	require.NoError(t, err)
	assert.Equal(t, "spot_main", client.AccountID())
	assert.Equal(t, account.MarketTypeSpot, client.MarketType())
	assert.NotEmpty(t, client.BrokerID())
	assert.NotNil(t, client.Spot)
}

func TestVault_ResolveReusesCachedClient(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.AddAccount(ctx, spotMain()))

	first, err := v.Resolve(ctx, "spot_main")
	require.NoError(t, err)
	second, err := v.Resolve(ctx, "spot_main")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestVault_UpdateInvalidatesCachedClient(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.AddAccount(ctx, spotMain()))
	before, err := v.Resolve(ctx, "spot_main")
	require.NoError(t, err)

	newKey := "k2"
	require.NoError(t, v.UpdateAccount(ctx, "spot_main", account.Update{APIKey: &newKey}))

	after, err := v.Resolve(ctx, "spot_main")
	require.NoError(t, err)
	assert.NotSame(t, before, after)
}

func TestVault_ClearCacheEvictsClients(t *testing.T) {
	v, log := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.AddAccount(ctx, spotMain()))
	before, err := v.Resolve(ctx, "spot_main")
	require.NoError(t, err)

	v.ClearCache(ctx)

	after, err := v.Resolve(ctx, "spot_main")
	require.NoError(t, err)
	assert.NotSame(t, before, after)

	events, err := log.List(ctx, audit.Filter{EventType: audit.EventCacheCleared})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestVault_RemoveThenResolveFails(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.AddAccount(ctx, spotMain()))
	require.NoError(t, v.RemoveAccount(ctx, "spot_main"))

	_, err := v.Resolve(ctx, "spot_main")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeAccountNotFound, schema.CodeOf(err))

	// Non-idempotent removal.
	err = v.RemoveAccount(ctx, "spot_main")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeAccountNotFound, schema.CodeOf(err))
}

func TestVault_ErrorsNeverLeakSecrets(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	acct := spotMain()
	acct.MarketType = account.MarketTypeOptions
	acct.Sandbox = true
	require.NoError(t, v.AddAccount(ctx, acct))

	_, err := v.Resolve(ctx, "spot_main")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeClientConstruction, schema.CodeOf(err))
	assert.NotContains(t, err.Error(), "k1")
	assert.NotContains(t, err.Error(), "s1")
}

func TestVault_AuditTrail(t *testing.T) {
	v, log := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.AddAccount(ctx, spotMain()))
	_, err := v.Resolve(ctx, "spot_main")
	require.NoError(t, err)
	require.NoError(t, v.RemoveAccount(ctx, "spot_main"))
	_, _ = v.Resolve(ctx, "spot_main")

	events, err := log.List(ctx, audit.Filter{AccountID: "spot_main", Limit: 50})
	require.NoError(t, err)

	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, audit.EventAccountAdded)
	assert.Contains(t, types, audit.EventClientBuilt)
	assert.Contains(t, types, audit.EventAccountRemoved)
	assert.Contains(t, types, audit.EventResolveFailed)
}
