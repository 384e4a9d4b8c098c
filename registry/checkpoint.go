package registry

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/vinayprograms/agentdir/logging"
	"github.com/vinayprograms/agentdir/state"
)

// KeyPrefix namespaces record keys in the state store.
const KeyPrefix = "agents."

// Checkpointer persists store snapshots to a durable key-value backend and
// rebuilds the store from them on startup.
type Checkpointer struct {
	store *Store
	kv    state.Store
	log   *logging.Logger
}

// NewCheckpointer creates a checkpointer. The logger may be nil.
func NewCheckpointer(store *Store, kv state.Store, log *logging.Logger) *Checkpointer {
	if log == nil {
		log = logging.New()
	}
	return &Checkpointer{
		store: store,
		kv:    kv,
		log:   log.WithComponent("checkpoint"),
	}
}

// Save writes the current snapshot and removes keys for records that no
// longer exist. Individual put failures abort the checkpoint; the previous
// checkpoint stays intact for the keys not yet rewritten.
func (c *Checkpointer) Save(ctx context.Context) error {
	snapshot := c.store.Snapshot()

	live := make(map[string]bool, len(snapshot))
	for _, rec := range snapshot {
		live[KeyPrefix+rec.AgentID] = true

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := c.kv.Put(ctx, KeyPrefix+rec.AgentID, data); err != nil {
			return err
		}
	}

	stored, err := c.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return err
	}
	for _, key := range stored {
		if !live[key] {
			if err := c.kv.Delete(ctx, key); err != nil {
				return err
			}
		}
	}

	c.log.Debug("checkpoint saved", map[string]interface{}{"records": len(snapshot)})
	return nil
}

// Restore rebuilds the store from the last checkpoint. Status is re-derived
// from the stored last_seen against the given windows; the stored status
// field is never trusted. Records are restored in registration order so
// snapshot ordering survives a restart. Unreadable entries are skipped,
// not fatal.
func (c *Checkpointer) Restore(ctx context.Context, staleAfter, expireAfter time.Duration) (int, error) {
	keys, err := c.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}

	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		data, err := c.kv.Get(ctx, key)
		if err != nil {
			if err == state.ErrNotFound {
				continue
			}
			return 0, err
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			c.log.Warn("skipping unreadable checkpoint entry", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		if rec.AgentID == "" {
			c.log.Warn("skipping checkpoint entry without agent_id", map[string]interface{}{"key": key})
			continue
		}

		rec.Status = DeriveStatus(rec.LastSeen, c.store.nowFunc(), staleAfter, expireAfter)
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].RegisteredAt.Equal(records[j].RegisteredAt) {
			return records[i].AgentID < records[j].AgentID
		}
		return records[i].RegisteredAt.Before(records[j].RegisteredAt)
	})

	restored := 0
	for _, rec := range records {
		if err := c.store.Restore(rec); err != nil {
			c.log.Warn("skipping duplicate checkpoint entry", map[string]interface{}{
				"agent_id": rec.AgentID,
			})
			continue
		}
		restored++
	}

	c.log.Info("restore complete", map[string]interface{}{"records": restored})
	return restored, nil
}

// Run checkpoints on a fixed interval until the context is canceled. A
// final checkpoint is taken on the way out.
func (c *Checkpointer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := c.Save(saveCtx); err != nil {
				c.log.Error("final checkpoint failed", map[string]interface{}{"error": err.Error()})
			}
			cancel()
			return
		case <-ticker.C:
			if err := c.Save(ctx); err != nil {
				c.log.Warn("checkpoint failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
