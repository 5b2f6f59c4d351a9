package cache

import (
	"context"
	"testing"
	"time"
)

func TestScopeKey(t *testing.T) {
	if got := ScopeKey("tb", "u1", "3-99"); got != "tb:scope:u1:3-99" {
		t.Fatalf("ScopeKey = %q", got)
	}
}

func TestDisabledCacheNeverHits(t *testing.T) {
	c := NewRedisScopeCache(nil, "", time.Minute)
	if err := c.Set(context.Background(), "u1", "v1", []string{"u1"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ids, ok, err := c.Get(context.Background(), "u1", "v1")
	if err != nil || ok || ids != nil {
		t.Fatalf("Get = %v, %t, %v; want miss", ids, ok, err)
	}
}
