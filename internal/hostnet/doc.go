// Package hostnet adapts the host network to the link and netstack
// boundaries: TCP sockets over the kernel stack, and on Linux a
// netlink-backed radio controller and packet engine for one interface.
package hostnet
