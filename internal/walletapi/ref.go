package walletapi

import (
	"strings"
)

// PhantomPrefix marks every wallet, account and transaction identifier minted by
// the local mock ledger.
const PhantomPrefix = "phantom-"

// System identifies the backend that owns a wallet.
type System int

const (
	// SystemProcessor is the external payment processor.
	SystemProcessor System = iota + 1
	// SystemPhantom is the database-backed mock ledger.
	SystemPhantom
)

func (s System) String() string {
	switch s {
	case SystemPhantom:
		return "phantom"
	case SystemProcessor:
		return "processor"
	default:
		return "unknown"
	}
}

// Ref is a wallet identifier tagged with the backend that owns it. The zero
// value is invalid; build one with ParseRef.
type Ref struct {
	system System
	id     string
}

// ParseRef resolves the backend of an externally visible wallet identifier.
func ParseRef(id string) (Ref, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Ref{}, Validationf("wallet id is required")
	}
	if strings.HasPrefix(id, PhantomPrefix) {
		if len(id) == len(PhantomPrefix) {
			return Ref{}, Validationf("wallet id %q is incomplete", id)
		}
		return Ref{system: SystemPhantom, id: id}, nil
	}
	return Ref{system: SystemProcessor, id: id}, nil
}

// System returns the owning backend.
func (r Ref) System() System { return r.system }

// ID returns the backend-native identifier.
func (r Ref) ID() string { return r.id }

// IsZero reports whether the ref was never parsed.
func (r Ref) IsZero() bool { return r.system == 0 }

func (r Ref) String() string { return r.id }

// SameSystem reports whether both refs route to the same backend.
func (r Ref) SameSystem(other Ref) bool {
	return r.system == other.system
}
