// Package link owns association with the configured access point.
//
// Ownership boundary:
// - station credentials (Config)
//
// - the radio Controller contract
//
// - the Manager loop: start -> associate -> wait for drop -> cool down
//
// The Manager is the only writer of controller state. Other tasks observe the
// result indirectly through the packet engine's link state.
package link
