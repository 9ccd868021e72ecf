// Package jwt issues and validates HS256 bearer tokens signed with a single
// process-wide symmetric key.
//
// Tokens carry sub, iat and exp (and iss when configured). Validation verifies
// the MAC before decoding anything else, then enforces the expiry against the
// caller-supplied clock. There is no leeway, no nbf handling and no
// server-side token state.
package jwt
