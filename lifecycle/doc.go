// Package lifecycle implements the supervisor that ages agent records
// through alive, stale, and expired, and eventually removes them. It
// runs on its own timer, independent of client requests. Sweeps are
// idempotent, every transition publishes one event per audience topic,
// and removal is deferred by a grace window after expiry so clients can
// still observe "just expired" before the record disappears.
package lifecycle
