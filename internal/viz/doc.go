// Package viz renders reactor networks in the terminal.
//
// The package implements an interactive TUI using the Bubble Tea framework:
//
//   - [App]: preset picker that opens a live view of the chosen network
//   - [Model]: live view that advances a network and charts temperatures
//   - [Plot]: static chart of stored or finished runs
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Rebuild the network and restart
//	Tab   - Select a wall or flow device
//	E     - Toggle the selected device at the next sample
//	+/-   - Double or halve the sampling interval
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
