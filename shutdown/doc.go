// Package shutdown drains the directory's components in a fixed order:
// transport first so no new requests arrive, then the lifecycle
// supervisor, then the event bus, then a final checkpoint, then the
// persistence connections. Handlers within a phase run concurrently and
// a failing handler never prevents later phases from running.
package shutdown
