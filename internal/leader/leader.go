// Package leader elects a single scheduler leader using the cache as a lock
// service. The lock key is claimed with a TTL and refreshed on a heartbeat;
// if the holder dies, the TTL lapses and another node takes over.
//
// The embedded cache is per-process, so the lock only spans replicas when
// the cache directory is shared; with isolated caches each process leads its
// own schedule.
package leader

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediafusion/internal/cache"
)

const lockKey = "scheduler:leader"

// Lock coordinates leadership for scheduled work.
type Lock struct {
	cache     *cache.Cache
	nodeID    string
	heartbeat time.Duration

	mu     sync.RWMutex
	leader bool
}

// NewLock creates a lock with a random node identity. heartbeat is the
// refresh cadence; the lock TTL is three heartbeats, so leadership survives
// two missed refreshes before failing over.
func NewLock(c *cache.Cache, heartbeat time.Duration) *Lock {
	if heartbeat <= 0 {
		heartbeat = 20 * time.Second
	}
	return &Lock{
		cache:     c,
		nodeID:    uuid.NewString(),
		heartbeat: heartbeat,
	}
}

// NodeID returns this node's identity.
func (l *Lock) NodeID() string { return l.nodeID }

// IsLeader reports whether this node currently holds the lock.
func (l *Lock) IsLeader() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.leader
}

func (l *Lock) ttl() time.Duration { return 3 * l.heartbeat }

// Run maintains leadership until ctx is cancelled: it tries to acquire the
// lock every heartbeat and, while leading, refreshes it. Lost leadership is
// detected when a refresh finds another holder.
func (l *Lock) Run(ctx context.Context) {
	ticker := time.NewTicker(l.heartbeat)
	defer ticker.Stop()

	l.tick()
	for {
		select {
		case <-ctx.Done():
			l.release()
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Lock) tick() {
	if l.IsLeader() {
		ok, err := l.cache.Extend(lockKey, []byte(l.nodeID), l.ttl())
		if err != nil {
			log.Printf("[leader] heartbeat: %v", err)
			return
		}
		if !ok {
			log.Printf("[leader] lost leadership, node %s stepping down", l.nodeID)
			l.setLeader(false)
		}
		return
	}

	acquired, err := l.cache.SetNX(lockKey, []byte(l.nodeID), l.ttl())
	if err != nil {
		log.Printf("[leader] acquire: %v", err)
		return
	}
	if acquired {
		log.Printf("[leader] node %s acquired leadership", l.nodeID)
		l.setLeader(true)
	}
}

// release gives up the lock on clean shutdown so a peer can take over
// without waiting out the TTL.
func (l *Lock) release() {
	if !l.IsLeader() {
		return
	}
	// Only delete the lock if we still own it.
	if ok, err := l.cache.Extend(lockKey, []byte(l.nodeID), time.Second); err == nil && ok {
		if err := l.cache.Del(lockKey); err != nil {
			log.Printf("[leader] release: %v", err)
		}
	}
	l.setLeader(false)
}

func (l *Lock) setLeader(v bool) {
	l.mu.Lock()
	l.leader = v
	l.mu.Unlock()
}
