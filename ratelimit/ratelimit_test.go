package ratelimit

import (
	"testing"
	"time"
)

func testLimiter(cfg Config) (*MemoryLimiter, *time.Time) {
	m := NewMemoryLimiter(cfg)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.nowFunc = func() time.Time { return now }
	return m, &now
}

func TestAllowWithinCapacity(t *testing.T) {
	m, _ := testLimiter(Config{Capacity: 3, Window: time.Minute})
	defer m.Close()

	for i := 0; i < 3; i++ {
		if !m.Allow("caller") {
			t.Fatalf("call %d denied within capacity", i)
		}
	}
	if m.Allow("caller") {
		t.Error("call allowed past capacity")
	}
}

func TestCallersAreIndependent(t *testing.T) {
	m, _ := testLimiter(Config{Capacity: 1, Window: time.Minute})
	defer m.Close()

	if !m.Allow("a") {
		t.Fatal("first caller denied")
	}
	if m.Allow("a") {
		t.Error("first caller allowed past capacity")
	}
	if !m.Allow("b") {
		t.Error("second caller starved by first caller's bucket")
	}
}

func TestRefillOverTime(t *testing.T) {
	m, now := testLimiter(Config{Capacity: 2, Window: time.Minute})
	defer m.Close()

	m.Allow("caller")
	m.Allow("caller")
	if m.Allow("caller") {
		t.Fatal("bucket not empty")
	}

	// Half a window refills half the capacity.
	*now = now.Add(30 * time.Second)
	if !m.Allow("caller") {
		t.Error("no token after partial refill")
	}
	if m.Allow("caller") {
		t.Error("more tokens than elapsed time allows")
	}
}

func TestRefillCapped(t *testing.T) {
	m, now := testLimiter(Config{Capacity: 2, Window: time.Minute})
	defer m.Close()

	m.Allow("caller")
	*now = now.Add(time.Hour)

	for i := 0; i < 2; i++ {
		if !m.Allow("caller") {
			t.Fatalf("call %d denied after long idle", i)
		}
	}
	if m.Allow("caller") {
		t.Error("refill exceeded capacity")
	}
}

func TestIdleBucketsPruned(t *testing.T) {
	m, now := testLimiter(Config{Capacity: 1, Window: time.Minute, MaxIdle: time.Minute})
	defer m.Close()

	m.Allow("idle")
	*now = now.Add(2 * time.Minute)

	// Creating a new bucket triggers the prune pass.
	m.Allow("fresh")

	m.mu.Lock()
	_, ok := m.buckets["idle"]
	m.mu.Unlock()
	if ok {
		t.Error("idle bucket survived pruning")
	}
}

func TestClosedDeniesAll(t *testing.T) {
	m, _ := testLimiter(Config{})
	m.Close()

	if m.Allow("caller") {
		t.Error("closed limiter allowed a call")
	}
}
