// Package tools runs host commands for adapters that drive system daemons.
package tools
