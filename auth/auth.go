// Package auth defines the permission model for the agent directory.
//
// Operations are gated by ordered tiers: Public < Agent < Admin < AdminPIN.
// The directory consumes authorization as a single decision function (the
// Oracle interface); token issuance, session binding, and lockout live
// behind that boundary.
package auth

import (
	"context"

	"github.com/vinayprograms/agentdir/errors"
)

// Tier is a permission level. Tiers are ordered: a caller holding a tier
// may perform any operation requiring that tier or a lower one.
type Tier int

const (
	// TierPublic grants read-only discovery access.
	TierPublic Tier = iota

	// TierAgent grants self-service operations (register, heartbeat,
	// update own metrics).
	TierAgent

	// TierAdmin grants supervision over all agents.
	TierAdmin

	// TierAdminPIN grants destructive operations (unregister). Requires a
	// second factor in addition to admin credentials.
	TierAdminPIN
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierAgent:
		return "agent"
	case TierAdmin:
		return "admin"
	case TierAdminPIN:
		return "admin_pin"
	default:
		return "unknown"
	}
}

// Satisfies reports whether a caller holding tier t may perform an
// operation requiring the given tier.
func (t Tier) Satisfies(required Tier) bool {
	return t >= required
}

// Identity is the request identity presented by a caller. Anonymous
// requests carry an empty token and resolve to TierPublic.
type Identity struct {
	// Token is the opaque credential presented with the request.
	Token string

	// PIN is the second factor, required only for TierAdminPIN operations.
	PIN string

	// RequestID correlates the authorization decision with server logs.
	RequestID string
}

// Decision is a successful authorization result.
type Decision struct {
	// Tier the identity resolved to.
	Tier Tier

	// ActingID is the agent id the caller acts as. Empty for public and
	// admin callers.
	ActingID string
}

// Oracle makes permission decisions. Implementations must be safe for
// concurrent use.
type Oracle interface {
	// Authorize resolves the identity and checks it against the required
	// tier. It returns ErrCodeUnauthenticated for unknown identities and
	// ErrCodePermissionDenied when the resolved tier is insufficient.
	Authorize(ctx context.Context, ident Identity, required Tier) (Decision, error)
}

// Deny builds the standard denial error for a resolved tier that does not
// satisfy the requirement.
func Deny(resolved, required Tier, requestID string) error {
	return errors.PermissionDenied(
		"operation requires "+required.String()+" tier",
		errors.WithMetadata("resolved_tier", resolved.String()),
		errors.WithRequestID(requestID),
	)
}
