package account

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sort"
	"time"

	"github.com/quantive/binance-mcp/internal/configstore"
	"github.com/quantive/binance-mcp/internal/secrets"
	"github.com/quantive/binance-mcp/pkg/schema"
)

// Registry provides CRUD over account records on top of the config store.
// Secret fields pass through the cipher on the way in and out; the store
// only ever sees ciphertext.
type Registry struct {
	store  *configstore.Store
	cipher secrets.Cipher
	logger *slog.Logger
}

// NewRegistry creates a registry backed by the given store and cipher.
func NewRegistry(store *configstore.Store, cipher secrets.Cipher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, cipher: cipher, logger: logger}
}

// Add creates a new account. Fails with DUPLICATE_ACCOUNT if the id already
// exists and VALIDATION_ERROR on malformed input. The duplicate check runs
// inside the store's locked mutate cycle, so concurrent adds of the same id
// resolve to exactly one winner.
func (r *Registry) Add(ctx context.Context, acct Account) error {
	if err := validate(acct); err != nil {
		return err
	}

	encKey, err := r.encryptField(acct.APIKey)
	if err != nil {
		return err
	}
	encSecret, err := r.encryptField(acct.APISecret)
	if err != nil {
		return err
	}

	err = r.store.Mutate(ctx, func(doc *configstore.Document) error {
		if _, exists := doc.Accounts[acct.ID]; exists {
			return schema.NewError(schema.ErrCodeDuplicateAccount, "account already exists").
				WithAccount(acct.ID)
		}
		now := time.Now().UTC()
		doc.Accounts[acct.ID] = &configstore.Record{
			EncryptedAPIKey:    encKey,
			EncryptedAPISecret: encSecret,
			MarketType:         acct.MarketType.String(),
			Sandbox:            acct.Sandbox,
			Description:        acct.Description,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "account added",
		slog.String("account_id", acct.ID),
		slog.String("market_type", acct.MarketType.String()),
		slog.Bool("sandbox", acct.Sandbox))
	return nil
}

// Get returns the decrypted view of one account. Fails with
// ACCOUNT_NOT_FOUND if absent and DECRYPTION_ERROR if a secret field cannot
// be decrypted; other accounts stay unaffected either way.
func (r *Registry) Get(ctx context.Context, accountID string) (*Account, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Accounts[accountID]
	if !ok {
		return nil, schema.NewError(schema.ErrCodeAccountNotFound, "account not found").
			WithAccount(accountID)
	}

	apiKey, err := r.decryptField(rec.EncryptedAPIKey)
	if err != nil {
		return nil, attachAccount(err, accountID)
	}
	apiSecret, err := r.decryptField(rec.EncryptedAPISecret)
	if err != nil {
		return nil, attachAccount(err, accountID)
	}

	return &Account{
		ID:          accountID,
		APIKey:      apiKey,
		APISecret:   apiSecret,
		MarketType:  MarketType(rec.MarketType),
		Sandbox:     rec.Sandbox,
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

// List returns secret-free metadata for all accounts, sorted by id. It
// succeeds over whatever metadata is readable even when individual secrets
// would later fail to decrypt.
func (r *Registry) List(ctx context.Context) ([]Metadata, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	metas := make([]Metadata, 0, len(doc.Accounts))
	for id, rec := range doc.Accounts {
		metas = append(metas, Metadata{
			ID:          id,
			MarketType:  MarketType(rec.MarketType),
			Sandbox:     rec.Sandbox,
			Description: rec.Description,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas, nil
}

// Remove deletes an account. A second removal of the same id fails with
// ACCOUNT_NOT_FOUND rather than masking the misuse.
func (r *Registry) Remove(ctx context.Context, accountID string) error {
	err := r.store.Mutate(ctx, func(doc *configstore.Document) error {
		if _, exists := doc.Accounts[accountID]; !exists {
			return schema.NewError(schema.ErrCodeAccountNotFound, "account not found").
				WithAccount(accountID)
		}
		delete(doc.Accounts, accountID)
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "account removed", slog.String("account_id", accountID))
	return nil
}

// Update applies a partial update, re-encrypting only the changed secret
// fields, and refreshes updated_at.
func (r *Registry) Update(ctx context.Context, accountID string, upd Update) error {
	var encKey, encSecret string
	var err error
	if upd.APIKey != nil {
		if *upd.APIKey == "" {
			return schema.NewError(schema.ErrCodeValidation, "api_key must not be empty").
				WithAccount(accountID)
		}
		if encKey, err = r.encryptField(*upd.APIKey); err != nil {
			return err
		}
	}
	if upd.APISecret != nil {
		if *upd.APISecret == "" {
			return schema.NewError(schema.ErrCodeValidation, "api_secret must not be empty").
				WithAccount(accountID)
		}
		if encSecret, err = r.encryptField(*upd.APISecret); err != nil {
			return err
		}
	}
	if upd.MarketType != nil && !upd.MarketType.IsValid() {
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown market type %q", *upd.MarketType).
			WithAccount(accountID)
	}

	err = r.store.Mutate(ctx, func(doc *configstore.Document) error {
		rec, exists := doc.Accounts[accountID]
		if !exists {
			return schema.NewError(schema.ErrCodeAccountNotFound, "account not found").
				WithAccount(accountID)
		}
		if upd.APIKey != nil {
			rec.EncryptedAPIKey = encKey
		}
		if upd.APISecret != nil {
			rec.EncryptedAPISecret = encSecret
		}
		if upd.MarketType != nil {
			rec.MarketType = upd.MarketType.String()
		}
		if upd.Sandbox != nil {
			rec.Sandbox = *upd.Sandbox
		}
		if upd.Description != nil {
			rec.Description = *upd.Description
		}
		rec.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "account updated", slog.String("account_id", accountID))
	return nil
}

// ReencryptAll decrypts every secret field with the registry's cipher and
// re-encrypts it with next, in one locked mutate cycle. Used by key rotation:
// rotating the key without this would invalidate every stored account.
func (r *Registry) ReencryptAll(ctx context.Context, next secrets.Cipher) error {
	return r.store.Mutate(ctx, func(doc *configstore.Document) error {
		for id, rec := range doc.Accounts {
			apiKey, err := r.decryptField(rec.EncryptedAPIKey)
			if err != nil {
				return attachAccount(err, id)
			}
			apiSecret, err := r.decryptField(rec.EncryptedAPISecret)
			if err != nil {
				return attachAccount(err, id)
			}

			ctKey, err := next.Encrypt([]byte(apiKey))
			if err != nil {
				return err
			}
			ctSecret, err := next.Encrypt([]byte(apiSecret))
			if err != nil {
				return err
			}
			rec.EncryptedAPIKey = base64.StdEncoding.EncodeToString(ctKey)
			rec.EncryptedAPISecret = base64.StdEncoding.EncodeToString(ctSecret)
		}
		return nil
	})
}

func (r *Registry) encryptField(plaintext string) (string, error) {
	ct, err := r.cipher.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (r *Registry) decryptField(encoded string) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeDecryption, "ciphertext is not valid base64")
	}
	pt, err := r.cipher.Decrypt(ct)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func validate(acct Account) error {
	if acct.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "account_id must not be empty")
	}
	if acct.APIKey == "" {
		return schema.NewError(schema.ErrCodeValidation, "api_key must not be empty").
			WithAccount(acct.ID)
	}
	if acct.APISecret == "" {
		return schema.NewError(schema.ErrCodeValidation, "api_secret must not be empty").
			WithAccount(acct.ID)
	}
	if !acct.MarketType.IsValid() {
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown market type %q", acct.MarketType).
			WithAccount(acct.ID)
	}
	return nil
}

func attachAccount(err error, accountID string) error {
	if ve, ok := err.(*schema.VaultError); ok && ve.AccountID == "" {
		return ve.WithAccount(accountID)
	}
	return err
}
