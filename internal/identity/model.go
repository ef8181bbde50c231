package identity

import (
	"errors"
	"time"
)

var (
	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists occurs when the username is already taken.
	ErrUserExists = errors.New("user exists")
)

// User represents a provisioned wallet owner. UsePhantomPay selects the
// backend that holds the user's wallet.
type User struct {
	ID            int64
	Username      string
	FullName      string
	Email         string
	PasswordHash  []byte
	UsePhantomPay bool
	CreatedAt     time.Time
}

// ProvisionInput carries the fields accepted when provisioning a user.
type ProvisionInput struct {
	Username      string
	FullName      string
	Email         string
	Password      string
	UsePhantomPay bool
}
