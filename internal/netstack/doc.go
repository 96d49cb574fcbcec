// Package netstack owns the shared handle to the packet engine.
//
// Ownership boundary:
// - Engine and Socket contracts (the lower layer implements framing, IP and TCP)
//
// - Stack: the single ownership root shared by the pump and sessions
//
// - Pump: the one task allowed to drive Engine.Run
//
// Invariants:
// - at most one Pump per Stack
//
// - at most MaxSockets sockets open through a Stack at any time
package netstack
