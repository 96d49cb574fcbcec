// Package session owns request/response exchanges over the shared stack.
//
// Ownership boundary:
// - readiness gate (link up, then IPv4 address)
//
// - attempt loop: pace -> open -> connect -> write -> read until EOF -> close
//
// - reusable session buffers and response text decoding
//
// Every failure inside an attempt is recoverable. The loop only ends on
// context cancellation or after Config.MaxAttempts attempts.
package session
