package server

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestMultiLimiterBurst(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(2), 2, time.Minute)

	if !ml.allow("key") {
		t.Fatal("first call within burst should pass")
	}
	if !ml.allow("key") {
		t.Fatal("second call within burst should pass")
	}
	if ml.allow("key") {
		t.Fatal("third immediate call should be rate limited")
	}
}

func TestMultiLimiterKeysAreIndependent(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(1), 1, time.Minute)

	if !ml.allow("alice") {
		t.Fatal("alice's first call should pass")
	}
	if ml.allow("alice") {
		t.Fatal("alice's burst is spent")
	}
	if !ml.allow("bob") {
		t.Fatal("bob must not be throttled by alice's bucket")
	}
}

func TestMultiLimiterEvictsIdleBuckets(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(1), 1, 20*time.Millisecond)

	ml.allow("stale")
	time.Sleep(40 * time.Millisecond)
	// Any call sweeps buckets idle past the ttl.
	ml.allow("fresh")

	ml.mu.Lock()
	_, kept := ml.entries["stale"]
	ml.mu.Unlock()
	if kept {
		t.Fatal("idle bucket survived the ttl sweep")
	}
	if !ml.allow("stale") {
		t.Fatal("an evicted key should start over with a full burst")
	}
}
