// Package server is the reference HTTP service: a login endpoint issuing
// bearer tokens, a public health check, and a small protected posts API,
// all behind the authorization gate.
package server
