package vault

import (
	"context"
	"log/slog"

	"github.com/quantive/binance-mcp/internal/account"
	"github.com/quantive/binance-mcp/internal/audit"
	"github.com/quantive/binance-mcp/internal/broker"
	"github.com/quantive/binance-mcp/internal/logging"
	"github.com/quantive/binance-mcp/pkg/schema"
)

// Vault is the entry point the tool layer consumes: it turns an account id
// into an authenticated, broker-tagged exchange client. All account
// mutations go through the vault too, so the client cache can never serve a
// client built from credentials that have since changed.
type Vault struct {
	registry *account.Registry
	factory  *broker.Factory
	audit    *audit.Log // optional; nil disables auditing
	logger   *slog.Logger
}

// New creates a vault. auditLog may be nil.
func New(registry *account.Registry, factory *broker.Factory, auditLog *audit.Log, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{registry: registry, factory: factory, audit: auditLog, logger: logger}
}

// Resolve returns an authenticated client for the account, building one or
// reusing the cached instance. Errors carry the error kind and account id,
// never raw secret bytes.
func (v *Vault) Resolve(ctx context.Context, accountID string) (*broker.Client, error) {
	ctx = logging.WithAccountID(ctx, accountID)

	acct, err := v.registry.Get(ctx, accountID)
	if err != nil {
		v.record(ctx, accountID, audit.EventResolveFailed, map[string]any{"code": schema.CodeOf(err)})
		return nil, err
	}

	client, err := v.factory.Build(acct)
	if err != nil {
		v.record(ctx, accountID, audit.EventResolveFailed, map[string]any{"code": schema.CodeOf(err)})
		return nil, err
	}

	v.record(ctx, accountID, audit.EventClientBuilt, map[string]any{
		"market_type": acct.MarketType.String(),
		"sandbox":     acct.Sandbox,
	})
	return client, nil
}

// AddAccount registers a new account.
func (v *Vault) AddAccount(ctx context.Context, acct account.Account) error {
	if err := v.registry.Add(ctx, acct); err != nil {
		return err
	}
	v.record(ctx, acct.ID, audit.EventAccountAdded, map[string]any{
		"market_type": acct.MarketType.String(),
		"sandbox":     acct.Sandbox,
	})
	return nil
}

// UpdateAccount applies a partial update and evicts any cached client so the
// next resolve re-reads credentials.
func (v *Vault) UpdateAccount(ctx context.Context, accountID string, upd account.Update) error {
	if err := v.registry.Update(ctx, accountID, upd); err != nil {
		return err
	}
	v.factory.Invalidate(accountID)
	v.record(ctx, accountID, audit.EventAccountUpdated, nil)
	return nil
}

// RemoveAccount deletes the account and evicts any cached client.
func (v *Vault) RemoveAccount(ctx context.Context, accountID string) error {
	if err := v.registry.Remove(ctx, accountID); err != nil {
		return err
	}
	v.factory.Invalidate(accountID)
	v.record(ctx, accountID, audit.EventAccountRemoved, nil)
	return nil
}

// ListAccounts returns secret-free metadata for every account.
func (v *Vault) ListAccounts(ctx context.Context) ([]account.Metadata, error) {
	return v.registry.List(ctx)
}

// ClearCache discards every cached client; the next resolve for each account
// rebuilds from the stored credentials.
func (v *Vault) ClearCache(ctx context.Context) {
	v.factory.Close()
	v.record(ctx, "", audit.EventCacheCleared, nil)
}

// Close discards all cached clients and their in-memory credentials.
func (v *Vault) Close() {
	v.factory.Close()
}

// record appends an audit event. Audit failures are logged and swallowed;
// they must never block the primary operation.
func (v *Vault) record(ctx context.Context, accountID, eventType string, payload map[string]any) {
	if v.audit == nil {
		return
	}
	if err := v.audit.Append(ctx, accountID, eventType, payload); err != nil {
		v.logger.WarnContext(ctx, "audit append failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}
