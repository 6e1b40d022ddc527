package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	ErrCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ErrCodeDecryption         = "DECRYPTION_ERROR"
	ErrCodeKeyMissing         = "KEY_MISSING"
	ErrCodeStoreCorrupt       = "STORE_CORRUPT"
	ErrCodeStoreLockTimeout   = "STORE_LOCK_TIMEOUT"
	ErrCodeClientConstruction = "CLIENT_CONSTRUCTION_ERROR"
	ErrCodeAudit              = "AUDIT_ERROR"
)

// VaultError is the structured error type for all vault operations.
// Messages must never contain key material; the AccountID field exists
// so callers can report which account failed without echoing its secrets.
type VaultError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	AccountID string         `json:"account_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *VaultError) Error() string {
	if e.AccountID != "" {
		return fmt.Sprintf("[%s] account %s: %s", e.Code, e.AccountID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *VaultError) Unwrap() error {
	return e.Cause
}

// NewError creates a new VaultError.
func NewError(code, message string) *VaultError {
	return &VaultError{Code: code, Message: message}
}

// NewErrorf creates a new VaultError with a formatted message.
func NewErrorf(code, format string, args ...any) *VaultError {
	return &VaultError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithAccount attaches an account ID to the error.
func (e *VaultError) WithAccount(accountID string) *VaultError {
	e.AccountID = accountID
	return e
}

// WithCause attaches an underlying cause.
func (e *VaultError) WithCause(err error) *VaultError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *VaultError) WithDetails(details map[string]any) *VaultError {
	e.Details = details
	return e
}

// CodeOf returns the VaultError code of err, or "" if err is not a VaultError.
func CodeOf(err error) string {
	if ve, ok := err.(*VaultError); ok {
		return ve.Code
	}
	return ""
}
