// Package sim provides an in-process radio and packet engine so the full
// lifecycle can run without wireless hardware.
package sim
