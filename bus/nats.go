package bus

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix is the NATS subject prefix for mirrored directory events.
const SubjectPrefix = "agentdir.events."

// NATSBus mirrors a local MemoryBus over NATS so every directory node
// fans out the same mutation stream. Local subscribers get the same
// ordering and backpressure guarantees as with MemoryBus; the mirror only
// adds cross-node delivery.
type NATSBus struct {
	local  *MemoryBus
	conn   *nats.Conn
	nodeID string
	sub    *nats.Subscription
}

// NATSConfig holds NATS mirroring configuration.
type NATSConfig struct {
	Config // Embed base config

	// Conn is the NATS connection to use. Owned by the caller.
	Conn *nats.Conn

	// NodeID identifies this node in mirrored events so its own
	// publications are not re-applied when they echo back.
	NodeID string
}

// NewNATSBus creates a bus that mirrors events across nodes.
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("nats connection required")
	}
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("node id required")
	}

	b := &NATSBus{
		local:  NewMemoryBus(cfg.Config),
		conn:   cfg.Conn,
		nodeID: cfg.NodeID,
	}

	sub, err := cfg.Conn.Subscribe(SubjectPrefix+">", b.onRemote)
	if err != nil {
		b.local.Close()
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	b.sub = sub

	return b, nil
}

// Publish delivers locally and mirrors to other nodes.
func (b *NATSBus) Publish(ev Event) error {
	ev.Origin = b.nodeID
	if err := b.local.Publish(ev); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	// Mirror failures must not fail the mutation that triggered the
	// event; remote nodes recover via snapshot-then-stream.
	if err := b.conn.Publish(SubjectPrefix+string(ev.Topic), data); err != nil {
		return nil
	}
	return nil
}

// onRemote injects events published by other nodes into local dispatch.
func (b *NATSBus) onRemote(msg *nats.Msg) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return
	}
	if ev.Origin == b.nodeID {
		return
	}
	if !ev.Topic.Valid() {
		topic := Topic(strings.TrimPrefix(msg.Subject, SubjectPrefix))
		if !topic.Valid() {
			return
		}
		ev.Topic = topic
	}
	b.local.Publish(ev)
}

// Subscribe attaches a local subscriber to a topic.
func (b *NATSBus) Subscribe(topic Topic, opts ...SubscribeOption) (*Subscription, error) {
	return b.local.Subscribe(topic, opts...)
}

// Close stops mirroring and local dispatch. The NATS connection is owned
// by the caller and is not closed here.
func (b *NATSBus) Close() error {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	return b.local.Close()
}
