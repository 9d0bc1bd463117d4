package domain

// SessionState is the session-level lifecycle:
//
//	SignedOut -> AwaitingReconciliation -> Reconciled(role) -> SignedOut
//
// There is no error state; failed background reconciliations leave the state
// untouched.
type SessionState int

const (
	StateSignedOut SessionState = iota
	StateAwaitingReconciliation
	StateReconciled
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingReconciliation:
		return "awaiting_reconciliation"
	case StateReconciled:
		return "reconciled"
	default:
		return "signed_out"
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RoleChange is delivered to subscribers when a reconciliation overwrites the
// cached role.
type RoleChange struct {
	SessionID string
	Previous  Role
	HadRole   bool
	Current   Role
}
