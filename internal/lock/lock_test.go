package lock

import (
	"context"
	"testing"
	"time"
)

func TestLocalLockerExclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "sweep:binary:2026-01-05", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.Acquire(ctx, "sweep:binary:2026-01-05", time.Minute); ok {
		t.Fatal("expected second acquire of held key to fail")
	}
	if _, ok, _ := l.Acquire(ctx, "sweep:binary:2026-01-12", time.Minute); !ok {
		t.Fatal("expected a different key to be free")
	}

	release()
	release() // idempotent
	if _, ok, _ := l.Acquire(ctx, "sweep:binary:2026-01-05", time.Minute); !ok {
		t.Fatal("expected key to be free after release")
	}
}
