package bus

import (
	"errors"
	"time"

	"github.com/vinayprograms/agentdir/registry"
)

// Common errors.
var (
	ErrClosed       = errors.New("bus closed")
	ErrInvalidTopic = errors.New("invalid topic")
)

// Topic is an event channel with its own audience and sensitivity level.
type Topic string

const (
	// TopicPublic carries status and count changes only, no sensitive fields.
	TopicPublic Topic = "public"

	// TopicAgent carries full record changes, delivered only to the
	// affected agent or admins.
	TopicAgent Topic = "agent"

	// TopicAdmin carries everything, including lifecycle transitions and
	// security-relevant events.
	TopicAdmin Topic = "admin"
)

// Topics lists all topics in dispatch order.
var Topics = []Topic{TopicPublic, TopicAgent, TopicAdmin}

// Valid reports whether the topic is one of the known topics.
func (t Topic) Valid() bool {
	switch t {
	case TopicPublic, TopicAgent, TopicAdmin:
		return true
	}
	return false
}

// EventType identifies what happened.
type EventType string

const (
	EventRegistered    EventType = "registered"
	EventHeartbeat     EventType = "heartbeat"
	EventStatusChanged EventType = "status_changed"
	EventRemoved       EventType = "removed"
	EventMetrics       EventType = "metrics_updated"
	EventCounts        EventType = "counts"
	EventSecurity      EventType = "security"
)

// Event is one registry mutation or lifecycle transition. Public-topic
// events carry ids, statuses, and counts only; the Record payload appears
// on the agent and admin topics.
type Event struct {
	ID        string          `json:"id"`
	Topic     Topic           `json:"topic"`
	Type      EventType       `json:"type"`
	AgentID   string          `json:"agent_id,omitempty"`
	OldStatus registry.Status `json:"old_status,omitempty"`
	NewStatus registry.Status `json:"new_status,omitempty"`
	Record    *registry.Record `json:"record,omitempty"`
	Counts    *registry.Counts `json:"counts,omitempty"`
	Detail    string          `json:"detail,omitempty"`

	// Origin identifies the publishing node so cross-node mirrors can
	// suppress echoes.
	Origin string `json:"origin,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Bus distributes events to subscribers. Publication never blocks on
// subscriber consumption: slow subscribers lose their oldest buffered
// events and are marked degraded instead.
type Bus interface {
	// Publish queues an event for delivery on its topic.
	Publish(ev Event) error

	// Subscribe attaches a new subscriber to a topic. Delivery to one
	// subscriber is ordered; no order is promised across subscribers.
	Subscribe(topic Topic, opts ...SubscribeOption) (*Subscription, error)

	// Close shuts down dispatch and closes all subscriber channels.
	Close() error
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// WithFilter restricts delivery to events the predicate accepts. Skipped
// events do not count as drops and do not mark the subscriber degraded.
func WithFilter(fn func(Event) bool) SubscribeOption {
	return func(s *Subscription) {
		s.filter = fn
	}
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize is the per-subscriber buffer. When full, the oldest
	// buffered event is dropped and the subscriber is marked degraded.
	// Default: 64
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 64}
}
