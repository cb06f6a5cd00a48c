package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"marketplace-storefront/internal/cache"
	"marketplace-storefront/internal/domain"
)

func newRedisService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(cache.NewSessions(client)), mr
}

func TestIssueProducesValidIDs(t *testing.T) {
	svc, _ := newRedisService(t)
	a, b := svc.Issue(), svc.Issue()
	if a == b {
		t.Fatalf("expected distinct session ids")
	}
	if !svc.Valid(a) {
		t.Fatalf("expected %q to be valid", a)
	}
	if svc.Valid("") || svc.Valid("not-a-session") {
		t.Fatalf("expected garbage ids to be rejected")
	}
}

func TestCartIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRedisService(t)
	sid := svc.Issue()

	if _, err := svc.CartID(ctx, sid); !errors.Is(err, domain.ErrNoCart) {
		t.Fatalf("expected ErrNoCart, got %v", err)
	}
	if err := svc.AttachCart(ctx, sid, "cart_1"); err != nil {
		t.Fatalf("AttachCart: %v", err)
	}
	id, err := svc.CartID(ctx, sid)
	if err != nil || id != "cart_1" {
		t.Fatalf("expected cart_1, got %q err=%v", id, err)
	}
	if err := svc.ClearCart(ctx, sid); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if _, err := svc.CartID(ctx, sid); !errors.Is(err, domain.ErrNoCart) {
		t.Fatalf("expected cleared cart, got %v", err)
	}
}

func TestExpiredCartIsForgotten(t *testing.T) {
	ctx := context.Background()
	svc, mr := newRedisService(t)
	sid := svc.Issue()
	if err := svc.AttachCart(ctx, sid, "cart_1"); err != nil {
		t.Fatalf("AttachCart: %v", err)
	}
	mr.FastForward(31 * 24 * time.Hour)
	if _, err := svc.CartID(ctx, sid); !errors.Is(err, domain.ErrNoCart) {
		t.Fatalf("expected expired cart to be gone, got %v", err)
	}
}

func TestRedisBackedSessions(t *testing.T) {
	svc, mr := newRedisService(t)
	ctx := context.Background()
	sid := svc.Issue()
	if err := svc.AttachCart(ctx, sid, "cart_9"); err != nil {
		t.Fatalf("AttachCart: %v", err)
	}
	if ttl := mr.TTL("session:" + sid + ":cart"); ttl != 30*24*time.Hour {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	id, err := svc.CartID(ctx, sid)
	if err != nil || id != "cart_9" {
		t.Fatalf("expected cart_9, got %q err=%v", id, err)
	}
}
