// Package transport exposes the directory's live event topics over
// websockets. Connections follow snapshot-then-stream: the first frame
// carries current state, every later frame one event. A subscriber that
// falls too far behind gets a degraded frame and must reconnect, which
// re-snapshots it cleanly instead of leaving a gap.
package transport
