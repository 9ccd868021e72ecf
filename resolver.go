package tokengate

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// StoreResolver resolves principals through a [CredentialStore]. A record's
// own authorities win; otherwise DefaultAuthorities are granted.
type StoreResolver struct {
	Store              CredentialStore
	DefaultAuthorities []string
}

// NewStoreResolver returns a resolver backed by store.
func NewStoreResolver(store CredentialStore, defaults []string) *StoreResolver {
	return &StoreResolver{Store: store, DefaultAuthorities: slices.Clone(defaults)}
}

// Resolve looks subject up. A missing record yields [ErrPrincipalNotFound];
// any other store failure is wrapped in [ErrStoreUnavailable].
func (r *StoreResolver) Resolve(ctx context.Context, subject string) (Principal, error) {
	if r == nil || r.Store == nil {
		return Principal{}, ErrEngineNotReady
	}

	rec, err := r.Store.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrPrincipalNotFound
		}
		if errors.Is(err, ErrStoreUnavailable) {
			return Principal{}, err
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	authorities := rec.Authorities
	if len(authorities) == 0 {
		authorities = r.DefaultAuthorities
	}

	return Principal{
		Subject:     subject,
		Authorities: slices.Clone(authorities),
	}, nil
}

// ResolverFunc adapts a function to [PrincipalResolver].
type ResolverFunc func(ctx context.Context, subject string) (Principal, error)

func (f ResolverFunc) Resolve(ctx context.Context, subject string) (Principal, error) {
	return f(ctx, subject)
}
