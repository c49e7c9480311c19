package cache

import (
	"context"
	"testing"
	"time"
)

func TestNoopInsightCacheNeverHits(t *testing.T) {
	var c InsightCache = NoopInsightCache{}
	if err := c.Set(context.Background(), "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(context.Background(), "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}
