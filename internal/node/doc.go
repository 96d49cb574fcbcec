// Package node owns the network stack and supervises the link manager, the
// stack pump and the session driver for the lifetime of the process.
package node
