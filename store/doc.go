// Package store provides identity store adapters implementing
// tokengate.CredentialStore, plus the post repository used by the reference
// service.
//
// Three backends are available: [MemoryStore], [SQLStore] (SQLite via
// modernc.org/sqlite or Postgres via pgx) and [RedisStore]. A missing user
// is always reported as tokengate.ErrUserNotFound and every I/O failure
// wraps tokengate.ErrStoreUnavailable.
package store
