package walletapi

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced wallet, account, user or transaction that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds occurs when a withdrawal or transfer exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCrossSystem rejects transfers between wallets that live on different backends.
	ErrCrossSystem = errors.New("cross-system transfer not permitted")

	// ErrBackend marks a failed call to the external payment processor.
	ErrBackend = errors.New("payment backend failure")
)

// Validationf returns an error matching ErrValidation with the given reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns an error matching ErrNotFound with the given reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InsufficientFundsError reports the balance that was available when a debit was rejected.
type InsufficientFundsError struct {
	Currency  string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s %s, requested %s %s",
		e.Available.StringFixed(2), e.Currency, e.Requested.StringFixed(2), e.Currency)
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// CrossSystemError describes the two systems a rejected transfer tried to bridge.
type CrossSystemError struct {
	Source      System
	Destination System
}

func (e *CrossSystemError) Error() string {
	return fmt.Sprintf("cross-system transfer not permitted: source wallet is on %s, destination wallet is on %s",
		e.Source, e.Destination)
}

// Is makes errors.Is(err, ErrCrossSystem) hold.
func (e *CrossSystemError) Is(target error) bool {
	return target == ErrCrossSystem
}

// BackendError wraps a failed processor call. Detail is kept for operators and
// never included in Error().
type BackendError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment processor %s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("payment processor %s failed", e.Op)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrBackend) hold.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}
