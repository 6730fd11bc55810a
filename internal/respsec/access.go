package respsec

import (
	"fmt"

	"respgate/internal/auth"
)

// Mismatch scopes reported by Authorize.
const (
	ScopeUser = "user"
	ScopeTeam = "team"
)

// Decision is the outcome of an ownership check.
type Decision struct {
	Allowed bool
	// Scope names the mismatch axis (user | team) for denials and
	// disabled-bypass allows.
	Scope string
	// Bypassed is true when a mismatch was allowed only because the
	// security feature is disabled.
	Bypassed bool
}

// Authorize decides whether caller may use a response owned by owner.
// Admins are always allowed. User mismatch is checked strictly before team
// mismatch; the first mismatch determines the outcome. An owner with no
// constraints is accessible by anyone, since no ownership could be
// established for it.
func Authorize(owner Owner, caller auth.CallerIdentity, securityDisabled bool) Decision {
	if caller.IsAdmin() {
		return Decision{Allowed: true}
	}

	if owner.UserID != "" && owner.UserID != caller.UserID {
		if securityDisabled {
			return Decision{Allowed: true, Scope: ScopeUser, Bypassed: true}
		}
		return Decision{Scope: ScopeUser}
	}

	if owner.TeamID != "" && owner.TeamID != caller.TeamID {
		if securityDisabled {
			return Decision{Allowed: true, Scope: ScopeTeam, Bypassed: true}
		}
		return Decision{Scope: ScopeTeam}
	}

	return Decision{Allowed: true}
}

// AccessDeniedError is returned by the gate when the caller is not
// entitled to the presented response id. The HTTP layer translates it into
// a 403; nothing else in this package touches transport concerns.
type AccessDeniedError struct {
	Scope string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf(
		"forbidden: the response id is not associated with the %s this key belongs to"+
			" (set DISABLE_RESPONSE_ID_SECURITY=true to disable this check)",
		e.Scope,
	)
}
