// Package middleware is the authorization gate: HTTP middleware and gRPC
// interceptors that decide, per request, whether a bearer token is required
// and whether the one presented is acceptable.
//
// # Route table
//
// A [RouteTable] lists public and protected routes as glob patterns. The
// first matching entry wins and anything unmatched is protected.
//
// # Responses
//
// Every authentication failure produces the same response, whatever the
// cause: HTTP 401 with body {"error":"unauthorized"} and
// "WWW-Authenticate: Bearer", or codes.Unauthenticated over gRPC. The cause
// is logged at debug level only. A missing route authority produces 403 or
// codes.PermissionDenied.
//
// This package never parses tokens itself; every decision is delegated to a
// [tokengate.TokenValidator].
package middleware
