package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/role"
)

func TestMemoryRememberRecall(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	if _, ok := c.Recall(ctx, "op1"); ok {
		t.Fatal("expected miss")
	}

	a := &assignment.Assignment{ActorID: "op1", Roles: role.MustSet(role.Dev, role.Manager), Locked: true}
	c.Remember(ctx, a)

	got, ok := c.Recall(ctx, "op1")
	if !ok {
		t.Fatal("expected hit")
	}
	if !got.Roles.Equal(a.Roles) || !got.Locked {
		t.Fatalf("unexpected record %+v", got)
	}

	// Returned records are copies.
	got.Roles[0] = role.Moderator
	again, _ := c.Recall(ctx, "op1")
	if again.Roles[0] == role.Moderator {
		t.Fatal("cache leaked internal state")
	}
}

func TestMemoryMaxAge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(WithMaxAge(time.Minute), WithClock(func() time.Time { return now }))

	c.Remember(ctx, &assignment.Assignment{ActorID: "op1"})
	now = now.Add(30 * time.Second)
	if _, ok := c.Recall(ctx, "op1"); !ok {
		t.Fatal("expected hit within max age")
	}

	now = now.Add(time.Minute)
	if _, ok := c.Recall(ctx, "op1"); ok {
		t.Fatal("expected miss after max age")
	}
	if c.Len() != 0 {
		t.Fatalf("expired record should be dropped, len=%d", c.Len())
	}
}

func TestMemoryMaxSizeEvictsOldest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(WithMaxSize(2), WithClock(func() time.Time { return now }))

	for _, id := range []string{"a", "b", "c"} {
		c.Remember(ctx, &assignment.Assignment{ActorID: id})
		now = now.Add(time.Second)
	}

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Recall(ctx, "a"); ok {
		t.Fatal("oldest entry should be evicted")
	}
	if _, ok := c.Recall(ctx, "c"); !ok {
		t.Fatal("newest entry should be present")
	}
}

func TestMemoryForget(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Remember(ctx, &assignment.Assignment{ActorID: "op1"})
	c.Forget(ctx, "op1")
	if _, ok := c.Recall(ctx, "op1"); ok {
		t.Fatal("expected miss after Forget")
	}
	c.Remember(ctx, nil)
	if c.Len() != 0 {
		t.Fatal("nil record must be ignored")
	}
}
