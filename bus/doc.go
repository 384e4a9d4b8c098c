// Package bus distributes registry events to live subscribers.
//
// # Topics
//
// Events flow on three topics with different audiences:
//
//   - public: status and count changes only, safe for anonymous callers
//   - agent: full record changes, for the affected agent or admins
//   - admin: everything, including lifecycle transitions and security events
//
// # Delivery Guarantees
//
// Delivery is at-least-once per connected subscriber for the lifetime of
// its connection. Events for one subscriber arrive in publication order;
// no ordering is promised across subscribers or topics. The bus does not
// persist events for disconnected subscribers: a reconnecting client must
// fetch a snapshot through the registry facade and then resume live
// updates (snapshot-then-stream). A subscription created with WithFilter
// receives only events its predicate accepts, which is how agent-topic
// delivery stays scoped to the affected agent.
//
// # Backpressure
//
// A slow subscriber is bounded by a fixed buffer. When the buffer fills,
// the bus drops that subscriber's oldest buffered event and marks the
// subscription degraded rather than blocking the publisher. A degraded
// client should re-snapshot.
//
// # Implementations
//
//   - MemoryBus: in-process dispatch, one dispatcher goroutine per topic
//   - NATSBus: MemoryBus plus cross-node mirroring over NATS subjects
package bus
