// Package cache provides the shared TTL key-value layer backing scrape
// results, debrid availability records, metadata and the scheduler leader
// lock. It is a thin namespace-aware wrapper over a Badger store; every
// value carries a TTL and expired entries are never returned.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a key is missing or expired.
var ErrNotFound = errors.New("cache: key not found")

// Options configures a Cache.
type Options struct {
	// Directory holds the on-disk store. Ignored when InMemory is set.
	Directory string
	// InMemory runs without persistence (tests, ephemeral deploys).
	InMemory bool
	// SweepInterval controls background value-log garbage collection.
	// Zero disables the sweeper.
	SweepInterval time.Duration
}

// Cache is safe for concurrent use.
type Cache struct {
	db *badger.DB

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Open opens (or creates) the store and starts the sweeper.
func Open(opts Options) (*Cache, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Directory)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	c := &Cache{
		db:   db,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go c.sweep(opts.SweepInterval)
	return c, nil
}

// Close stops the sweeper and closes the store.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	return c.db.Close()
}

func (c *Cache) sweep(interval time.Duration) {
	defer close(c.done)
	if interval <= 0 {
		<-c.stop
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			// Badger drops expired keys on compaction; GC reclaims the
			// value log. ErrNoRewrite just means nothing to collect.
			if err := c.db.RunValueLogGC(0.5); err != nil &&
				!errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
				log.Printf("[cache] value log gc: %v", err)
			}
		}
	}
}

// Get returns the value for key, or ErrNotFound.
func (c *Cache) Get(key string) ([]byte, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key with the given TTL. ttl <= 0 stores without
// expiry.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Del removes key. Deleting a missing key is not an error.
func (c *Cache) Del(keys ...string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}

// GetJSON unmarshals the value for key into out.
func (c *Cache) GetJSON(key string, out interface{}) error {
	data, err := c.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cache decode %q: %w", key, err)
	}
	return nil
}

// SetJSON marshals value and stores it under key.
func (c *Cache) SetJSON(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %q: %w", key, err)
	}
	return c.Set(key, data, ttl)
}

// SetNX stores value only when key is absent. Returns true when this call
// acquired the key. This is the primitive behind the scheduler leader lock.
func (c *Cache) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	acquired := false
	err := c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cache setnx %q: %w", key, err)
	}
	return acquired, nil
}

// Extend refreshes key's TTL only when its current value equals expect.
// Returns false when the key is gone or owned by a different value.
func (c *Cache) Extend(key string, expect []byte, ttl time.Duration) (bool, error) {
	extended := false
	err := c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !bytes.Equal(current, expect) {
			return nil
		}
		if err := txn.SetEntry(badger.NewEntry([]byte(key), expect).WithTTL(ttl)); err != nil {
			return err
		}
		extended = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cache extend %q: %w", key, err)
	}
	return extended, nil
}

// Scan returns all keys with the given prefix, sorted.
func (c *Cache) Scan(prefix string) ([]string, error) {
	var keys []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache scan %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Hash fields are stored as subkeys: {key}\x00{field}. Fields inherit the
// TTL given at write time individually.

func hashKey(key, field string) []byte {
	return []byte(key + "\x00" + field)
}

// HSet stores one field of a hash.
func (c *Cache) HSet(key, field string, value []byte, ttl time.Duration) error {
	return c.Set(string(hashKey(key, field)), value, ttl)
}

// HGet returns one field of a hash, or ErrNotFound.
func (c *Cache) HGet(key, field string) ([]byte, error) {
	return c.Get(string(hashKey(key, field)))
}

// HGetAll returns every live field of a hash.
func (c *Cache) HGetAll(key string) (map[string][]byte, error) {
	prefix := key + "\x00"
	fields := make(map[string][]byte)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			fields[string(item.KeyCopy(nil))[len(prefix):]] = value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache hgetall %q: %w", key, err)
	}
	return fields, nil
}

// Scored-set members are stored as {key}\x01{member} with the score as the
// value. Range queries filter and sort in memory; sets stay small (retry
// queues, recency indexes).

func zKey(key, member string) []byte {
	return []byte(key + "\x01" + member)
}

// ZAdd stores member with score.
func (c *Cache) ZAdd(key string, score float64, member string, ttl time.Duration) error {
	value := strconv.FormatFloat(score, 'g', -1, 64)
	return c.Set(string(zKey(key, member)), []byte(value), ttl)
}

// ZRem removes member.
func (c *Cache) ZRem(key, member string) error {
	return c.Del(string(zKey(key, member)))
}

// ScoredMember is one member of a scored set.
type ScoredMember struct {
	Member string
	Score  float64
}

// ZRangeByScore returns members with min <= score <= max, ordered by score
// ascending, ties broken by member.
func (c *Cache) ZRangeByScore(key string, min, max float64) ([]ScoredMember, error) {
	prefix := key + "\x01"
	var members []ScoredMember
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			score, err := strconv.ParseFloat(string(value), 64)
			if err != nil {
				continue
			}
			if score < min || score > max {
				continue
			}
			members = append(members, ScoredMember{
				Member: string(item.KeyCopy(nil))[len(prefix):],
				Score:  score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache zrange %q: %w", key, err)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score < members[j].Score
		}
		return members[i].Member < members[j].Member
	})
	return members, nil
}
