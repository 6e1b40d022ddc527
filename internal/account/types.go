package account

import "time"

// MarketType selects which Binance trading surface an account targets.
type MarketType string

const (
	// MarketTypeSpot is spot trading.
	MarketTypeSpot MarketType = "spot"
	// MarketTypeUSDMFutures is USD-margined futures.
	MarketTypeUSDMFutures MarketType = "usd_m_futures"
	// MarketTypeCoinMFutures is coin-margined futures.
	MarketTypeCoinMFutures MarketType = "coin_m_futures"
	// MarketTypeOptions is European options.
	MarketTypeOptions MarketType = "options"
)

// MarketTypes lists all recognized market types.
var MarketTypes = []MarketType{
	MarketTypeSpot,
	MarketTypeUSDMFutures,
	MarketTypeCoinMFutures,
	MarketTypeOptions,
}

func (m MarketType) String() string { return string(m) }

// IsValid reports whether the value is a recognized market type.
func (m MarketType) IsValid() bool {
	switch m {
	case MarketTypeSpot, MarketTypeUSDMFutures, MarketTypeCoinMFutures, MarketTypeOptions:
		return true
	}
	return false
}

// Account is the decrypted view of one configured exchange identity.
// APIKey and APISecret exist only in memory for the duration of client
// construction; they are never logged or persisted in plaintext.
type Account struct {
	ID          string
	APIKey      string
	APISecret   string
	MarketType  MarketType
	Sandbox     bool
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Metadata is the secret-free listing view of an account.
type Metadata struct {
	ID          string     `json:"id"`
	MarketType  MarketType `json:"market_type"`
	Sandbox     bool       `json:"sandbox"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Update describes a partial account update. Nil fields are left unchanged;
// only changed secret fields are re-encrypted.
type Update struct {
	APIKey      *string
	APISecret   *string
	MarketType  *MarketType
	Sandbox     *bool
	Description *string
}
