package tokengate

import (
	"context"
	"errors"
	"testing"
)

func TestStoreResolverDefaults(t *testing.T) {
	store := newMapStore()
	store.put(CredentialRecord{Username: "alice", PasswordHash: "x"})
	r := NewStoreResolver(store, []string{"ROLE_USER"})

	p, err := r.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.Subject != "alice" || len(p.Authorities) != 1 || p.Authorities[0] != "ROLE_USER" {
		t.Fatalf("unexpected principal %+v", p)
	}

	p.Authorities[0] = "ROLE_ADMIN"
	again, _ := r.Resolve(context.Background(), "alice")
	if again.Authorities[0] != "ROLE_USER" {
		t.Fatal("resolver leaked its default slice")
	}
}

func TestStoreResolverNotFound(t *testing.T) {
	r := NewStoreResolver(newMapStore(), nil)
	if _, err := r.Resolve(context.Background(), "nobody"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestStoreResolverStoreFailure(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("timeout")
	r := NewStoreResolver(store, nil)
	_, err := r.Resolve(context.Background(), "alice")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestStoreResolverNil(t *testing.T) {
	var r *StoreResolver
	if _, err := r.Resolve(context.Background(), "alice"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("empty context must carry no principal")
	}
	p := &Principal{Subject: "alice"}
	got, ok := PrincipalFromContext(WithPrincipal(ctx, p))
	if !ok || got.Subject != "alice" {
		t.Fatalf("unexpected principal %+v", got)
	}
	if _, ok := PrincipalFromContext(WithPrincipal(ctx, nil)); ok {
		t.Fatal("nil principal must not count as present")
	}
}
