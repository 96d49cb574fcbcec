// Package statusapi serves the optional read-only HTTP surface: health,
// readiness, the current lifecycle snapshot and prometheus metrics.
package statusapi
