// Package ranking orders registry snapshots for discovery queries. The
// score blends embedding cosine similarity, keyword overlap against
// capabilities and the context brief, and reputation, with configurable
// weights. Ordering is deterministic: score descending, then last_seen
// descending, then agent_id ascending, with expired records always
// trailing non-expired ones.
package ranking
