// Package audit implements async event dispatching for authentication outcomes.
//
// # Components
//
//   - [Sink] is the interface for event consumers (channel, JSON lines, slog, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is a structured record with ID, timestamp, type, subject, IP and reason.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the engine and the gate do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import tokengate or any sibling internal package.
//   - Record token strings or secrets.
package audit
