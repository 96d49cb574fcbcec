// Package events owns the lifecycle event vocabulary shared by the link,
// stack and session tasks.
//
// Ownership boundary:
// - closed event kind enumeration
//
// - sinks: fan-out and in-memory recording
//
// Components never print directly; they emit events and the process decides
// where the events go (log lines, metrics, status API).
package events
