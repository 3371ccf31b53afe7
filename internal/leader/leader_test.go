package leader

import (
	"testing"
	"time"

	"mediafusion/internal/cache"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(cache.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSingleLeader(t *testing.T) {
	c := newTestCache(t)

	a := NewLock(c, 20*time.Second)
	b := NewLock(c, 20*time.Second)

	a.tick()
	b.tick()

	if !a.IsLeader() {
		t.Error("first node should lead")
	}
	if b.IsLeader() {
		t.Error("second node must not lead while first holds the lock")
	}
}

func TestHeartbeatKeepsLeadership(t *testing.T) {
	c := newTestCache(t)

	l := NewLock(c, 20*time.Second)
	l.tick()
	if !l.IsLeader() {
		t.Fatal("expected leadership")
	}
	l.tick()
	if !l.IsLeader() {
		t.Error("heartbeat should retain leadership")
	}
}

func TestFailover(t *testing.T) {
	c := newTestCache(t)

	a := NewLock(c, 20*time.Second)
	a.tick()
	if !a.IsLeader() {
		t.Fatal("expected leadership")
	}

	// Simulate node a dying: its lock lapses.
	if err := c.Del("scheduler:leader"); err != nil {
		t.Fatalf("del: %v", err)
	}

	b := NewLock(c, 20*time.Second)
	b.tick()
	if !b.IsLeader() {
		t.Error("second node should take over after the lock lapses")
	}

	// The stale leader notices on its next heartbeat.
	a.tick()
	if a.IsLeader() {
		t.Error("stale leader should step down")
	}
}

func TestRelease(t *testing.T) {
	c := newTestCache(t)

	a := NewLock(c, 20*time.Second)
	a.tick()
	a.release()
	if a.IsLeader() {
		t.Error("release should drop leadership")
	}

	b := NewLock(c, 20*time.Second)
	b.tick()
	if !b.IsLeader() {
		t.Error("lock should be free after release")
	}
}
