package policy

import "strings"

// Identity is the minimal view of a user the policy engine needs. The
// authentication layer adapts its own user type to this interface.
type Identity interface {
	// PolicyID returns the stable user identifier history is keyed by.
	PolicyID() string
	// IsPersisted reports whether the identity has been durably saved.
	// Transient identities (mid account creation) are skipped entirely.
	IsPersisted() bool
}

// identityOK reports whether history tracking applies to the identity.
// Absent, unsaved, and blank identities are silent skips, not errors, so
// bootstrap flows that have not persisted the user yet are never blocked.
func identityOK(user Identity) bool {
	if user == nil {
		return false
	}
	if !user.IsPersisted() {
		return false
	}
	return strings.TrimSpace(user.PolicyID()) != ""
}
