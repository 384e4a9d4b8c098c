// Package registry holds the authoritative agent records for the directory.
//
// The Store is the single owner of record storage and mutation. All other
// components (ranking, lifecycle, event fanout) operate on snapshots or
// copies and never mutate records in place.
package registry

import (
	"net/url"
	"strings"
	"time"

	"github.com/vinayprograms/agentdir/errors"
)

// Status represents an agent's liveness state. Status is derived from
// heartbeat timestamps, never set directly by a client request.
type Status string

const (
	// StatusAlive means the agent heartbeated within the stale window.
	StatusAlive Status = "alive"

	// StatusStale means no heartbeat for longer than the stale window.
	StatusStale Status = "stale"

	// StatusExpired means no heartbeat for the stale plus expire windows.
	// Expired records are hidden from discovery and eventually removed.
	StatusExpired Status = "expired"
)

// CommunicationMode indicates how the agent is reached.
type CommunicationMode string

const (
	ModeLocal  CommunicationMode = "local"
	ModeRemote CommunicationMode = "remote"
)

// Metrics is the mutable performance block of a record. Updateable only by
// the owning agent or an admin, through the facade.
type Metrics struct {
	// Requests is the total number of requests the agent reported serving.
	Requests int64 `json:"requests"`

	// Successes is the number of requests reported successful.
	Successes int64 `json:"successes"`

	// SuccessRate is Successes/Requests, zero when no requests.
	SuccessRate float64 `json:"success_rate"`

	// AvgLatencyMs is the reported average request latency.
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	// Reputation is the rolling score in [0,1] derived from the above.
	Reputation float64 `json:"reputation"`
}

// Record is one registered agent.
type Record struct {
	// AgentID is the immutable primary key.
	AgentID string `json:"agent_id"`

	Name              string            `json:"name"`
	AgentType         string            `json:"agent_type"`
	Endpoint          string            `json:"endpoint"`
	Capabilities      []string          `json:"capabilities"`
	ContextBrief      string            `json:"context_brief,omitempty"`
	Owner             string            `json:"owner,omitempty"`
	Version           string            `json:"version,omitempty"`
	CommunicationMode CommunicationMode `json:"communication_mode"`
	Metadata          Metadata          `json:"metadata,omitempty"`

	// PublicKey is opaque credential material supplied at registration.
	PublicKey string `json:"public_key,omitempty"`

	// Embedding is the semantic vector derived from ContextBrief and
	// Capabilities. Nil when the embedding gateway was unavailable.
	Embedding []float32 `json:"embedding,omitempty"`

	Status       Status    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
	UpdatedAt    time.Time `json:"updated_at"`

	Metrics Metrics `json:"metrics"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	dup := *r
	if r.Capabilities != nil {
		dup.Capabilities = append([]string(nil), r.Capabilities...)
	}
	if r.Embedding != nil {
		dup.Embedding = append([]float32(nil), r.Embedding...)
	}
	if r.Metadata != nil {
		dup.Metadata = r.Metadata.clone()
	}
	return &dup
}

// HasCapability checks if the record lists a specific capability.
func (r *Record) HasCapability(capability string) bool {
	for _, c := range r.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// EmbeddingText is the text the semantic vector is derived from.
func (r *Record) EmbeddingText() string {
	if len(r.Capabilities) == 0 {
		return r.ContextBrief
	}
	return strings.TrimSpace(r.ContextBrief + " " + strings.Join(r.Capabilities, " "))
}

// Counts summarizes liveness across the store.
type Counts struct {
	Alive   int `json:"alive"`
	Stale   int `json:"stale"`
	Expired int `json:"expired"`
	Total   int `json:"total"`
}

// Filter specifies criteria for listing records.
type Filter struct {
	// Capability filters to records holding this capability. Empty means all.
	Capability string

	// AgentType filters by type. Empty means all.
	AgentType string

	// Status filters by liveness state. Empty means all non-expired.
	Status Status

	// IncludeExpired also returns expired records when Status is empty.
	IncludeExpired bool
}

// Matches checks a record against the filter.
func (f *Filter) Matches(r *Record) bool {
	if f == nil {
		return true
	}
	if f.Capability != "" && !r.HasCapability(f.Capability) {
		return false
	}
	if f.AgentType != "" && r.AgentType != f.AgentType {
		return false
	}
	if f.Status != "" {
		return r.Status == f.Status
	}
	if !f.IncludeExpired && r.Status == StatusExpired {
		return false
	}
	return true
}

// ValidationConfig bounds what registrations are accepted.
type ValidationConfig struct {
	// AllowedTypes is the agent_type allow-list. Empty means any type.
	AllowedTypes []string

	// MinPublicKeyLen is the minimum accepted public key length.
	MinPublicKeyLen int
}

// DefaultValidationConfig returns the default registration constraints.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MinPublicKeyLen: 32,
	}
}

// Validate checks a candidate record against the data-model invariants.
// Structural problems return VALIDATION_FAILED; a disallowed agent type
// returns REGISTRATION_FAILED.
func Validate(r *Record, cfg ValidationConfig) error {
	switch {
	case strings.TrimSpace(r.AgentID) == "":
		return errors.Validation("agent_id is required")
	case strings.TrimSpace(r.Name) == "":
		return errors.Validation("name is required", errors.WithAgentID(r.AgentID))
	case strings.TrimSpace(r.AgentType) == "":
		return errors.Validation("agent_type is required", errors.WithAgentID(r.AgentID))
	case len(r.Capabilities) == 0:
		return errors.Validation("at least one capability is required", errors.WithAgentID(r.AgentID))
	}

	for _, c := range r.Capabilities {
		if strings.TrimSpace(c) == "" {
			return errors.Validation("capabilities must be non-empty strings", errors.WithAgentID(r.AgentID))
		}
	}

	u, err := url.Parse(r.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Validation("endpoint must be an http or https URL", errors.WithAgentID(r.AgentID))
	}

	if r.CommunicationMode != ModeLocal && r.CommunicationMode != ModeRemote {
		return errors.Validation("communication_mode must be local or remote", errors.WithAgentID(r.AgentID))
	}

	if len(r.PublicKey) < cfg.MinPublicKeyLen {
		return errors.Validation("public_key is too short", errors.WithAgentID(r.AgentID))
	}

	if len(cfg.AllowedTypes) > 0 {
		allowed := false
		for _, t := range cfg.AllowedTypes {
			if r.AgentType == t {
				allowed = true
				break
			}
		}
		if !allowed {
			return errors.RegistrationFailed(
				"agent_type "+r.AgentType+" is not allowed",
				errors.WithAgentID(r.AgentID))
		}
	}

	return nil
}

// DeriveStatus computes the liveness state a record should be in, given its
// last heartbeat. Restore paths use this instead of trusting a stored status.
func DeriveStatus(lastSeen, now time.Time, staleAfter, expireAfter time.Duration) Status {
	idle := now.Sub(lastSeen)
	switch {
	case idle > staleAfter+expireAfter:
		return StatusExpired
	case idle > staleAfter:
		return StatusStale
	default:
		return StatusAlive
	}
}
