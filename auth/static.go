package auth

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/vinayprograms/agentdir/errors"
)

// StaticOracle resolves identities from a fixed token table. Suitable for
// tests and single-node deployments; production deployments plug in a JWT
// oracle behind the same interface.
type StaticOracle struct {
	mu       sync.RWMutex
	tokens   map[string]Decision
	adminPIN string
}

// NewStaticOracle creates an oracle with no credentials. Anonymous callers
// resolve to TierPublic.
func NewStaticOracle(adminPIN string) *StaticOracle {
	return &StaticOracle{
		tokens:   make(map[string]Decision),
		adminPIN: adminPIN,
	}
}

// GrantAgent registers a token acting as the given agent id.
func (o *StaticOracle) GrantAgent(token, agentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokens[token] = Decision{Tier: TierAgent, ActingID: agentID}
}

// GrantAdmin registers an admin token.
func (o *StaticOracle) GrantAdmin(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokens[token] = Decision{Tier: TierAdmin}
}

// Revoke removes a token.
func (o *StaticOracle) Revoke(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.tokens, token)
}

// Authorize implements Oracle.
func (o *StaticOracle) Authorize(ctx context.Context, ident Identity, required Tier) (Decision, error) {
	resolved := Decision{Tier: TierPublic}

	if ident.Token != "" {
		o.mu.RLock()
		d, ok := o.tokens[ident.Token]
		o.mu.RUnlock()
		if !ok {
			return Decision{}, errors.Unauthenticated("unknown token",
				errors.WithRequestID(ident.RequestID))
		}
		resolved = d
	}

	// Admin tokens may be elevated to AdminPIN with the correct second
	// factor. The PIN comparison is constant-time.
	if resolved.Tier == TierAdmin && ident.PIN != "" && o.adminPIN != "" {
		if subtle.ConstantTimeCompare([]byte(ident.PIN), []byte(o.adminPIN)) == 1 {
			resolved.Tier = TierAdminPIN
		} else {
			return Decision{}, errors.Unauthenticated("invalid pin",
				errors.WithRequestID(ident.RequestID))
		}
	}

	if !resolved.Tier.Satisfies(required) {
		return Decision{}, Deny(resolved.Tier, required, ident.RequestID)
	}
	return resolved, nil
}
