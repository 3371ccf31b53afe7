package cache

import (
	"errors"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetSetDel(t *testing.T) {
	c := newTestCache(t)

	if _, err := c.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}

	if err := c.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := c.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v" {
		t.Errorf("value = %q, want v", value)
	}

	if err := c.Del("k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := c.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after del = %v, want ErrNotFound", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("short", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	if _, err := c.Get("short"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired key = %v, want ErrNotFound", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := newTestCache(t)

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := c.SetJSON("rec", record{Name: "x", Count: 3}, time.Minute); err != nil {
		t.Fatalf("setjson: %v", err)
	}
	var out record
	if err := c.GetJSON("rec", &out); err != nil {
		t.Fatalf("getjson: %v", err)
	}
	if out.Name != "x" || out.Count != 3 {
		t.Errorf("round trip = %+v", out)
	}
}

func TestSetNX(t *testing.T) {
	c := newTestCache(t)

	acquired, err := c.SetNX("lock", []byte("node-a"), time.Minute)
	if err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if !acquired {
		t.Fatal("first setnx should acquire")
	}

	acquired, err = c.SetNX("lock", []byte("node-b"), time.Minute)
	if err != nil {
		t.Fatalf("setnx: %v", err)
	}
	if acquired {
		t.Fatal("second setnx must not acquire")
	}

	value, err := c.Get("lock")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "node-a" {
		t.Errorf("lock holder = %q, want node-a", value)
	}
}

func TestExtend(t *testing.T) {
	c := newTestCache(t)

	if _, err := c.SetNX("lock", []byte("node-a"), time.Minute); err != nil {
		t.Fatalf("setnx: %v", err)
	}

	ok, err := c.Extend("lock", []byte("node-a"), time.Minute)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !ok {
		t.Error("owner extend should succeed")
	}

	ok, err = c.Extend("lock", []byte("node-b"), time.Minute)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if ok {
		t.Error("non-owner extend must fail")
	}

	ok, err = c.Extend("absent", []byte("node-a"), time.Minute)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if ok {
		t.Error("extend of missing key must fail")
	}
}

func TestScan(t *testing.T) {
	c := newTestCache(t)

	for _, key := range []string{"avail:rd:aaa", "avail:rd:bbb", "avail:ad:ccc", "meta:tt1"} {
		if err := c.Set(key, []byte("1"), time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	keys, err := c.Scan("avail:rd:")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "avail:rd:aaa" || keys[1] != "avail:rd:bbb" {
		t.Errorf("scan = %v", keys)
	}
}

func TestHashOps(t *testing.T) {
	c := newTestCache(t)

	if err := c.HSet("session", "token", []byte("abc"), time.Minute); err != nil {
		t.Fatalf("hset: %v", err)
	}
	if err := c.HSet("session", "refresh", []byte("def"), time.Minute); err != nil {
		t.Fatalf("hset: %v", err)
	}

	value, err := c.HGet("session", "token")
	if err != nil {
		t.Fatalf("hget: %v", err)
	}
	if string(value) != "abc" {
		t.Errorf("hget = %q", value)
	}

	all, err := c.HGetAll("session")
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	if len(all) != 2 || string(all["refresh"]) != "def" {
		t.Errorf("hgetall = %v", all)
	}
}

func TestScoredSet(t *testing.T) {
	c := newTestCache(t)

	now := float64(time.Now().Unix())
	for member, offset := range map[string]float64{"a": 0, "b": 10, "c": 20} {
		if err := c.ZAdd("retry", now+offset, member, time.Minute); err != nil {
			t.Fatalf("zadd: %v", err)
		}
	}

	members, err := c.ZRangeByScore("retry", now, now+10)
	if err != nil {
		t.Fatalf("zrange: %v", err)
	}
	if len(members) != 2 || members[0].Member != "a" || members[1].Member != "b" {
		t.Errorf("zrange = %+v", members)
	}

	if err := c.ZRem("retry", "a"); err != nil {
		t.Fatalf("zrem: %v", err)
	}
	members, err = c.ZRangeByScore("retry", now, now+100)
	if err != nil {
		t.Fatalf("zrange: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("after zrem = %+v", members)
	}
}
