package directory

import (
	"github.com/vinayprograms/agentdir/auth"
	"github.com/vinayprograms/agentdir/registry"
)

// project returns the view of a record the caller is allowed to see.
// Admin and above see everything. An agent sees its own record in full
// and other records projected. Public callers never receive the public
// key, raw metadata, owner, or metrics breakdown; reputation stays
// visible because ranking already exposes it.
func project(rec *registry.Record, d auth.Decision) *registry.Record {
	if d.Tier.Satisfies(auth.TierAdmin) {
		return rec
	}
	if d.Tier == auth.TierAgent && d.ActingID == rec.AgentID {
		return rec
	}

	out := rec.Clone()
	out.PublicKey = ""
	out.Metadata = nil
	out.Owner = ""
	out.Embedding = nil
	out.Metrics = registry.Metrics{Reputation: rec.Metrics.Reputation}
	return out
}
