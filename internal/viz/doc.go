// Package viz renders a running fluid in the terminal.
//
// Particles are projected through an orbiting [Camera] onto a braille
// [Canvas] and shaded by density with a [ColorMap]. The live view is a
// Bubble Tea program; [RunInteractive] adds a preset menu in front of it.
//
// # Key Bindings
//
//	Space  - Pause/Resume simulation
//	R      - Reset to the initial scene
//	P/←↑→↓ - Push the fluid
//	[ ]    - Step through recorded frames
//	T      - Cycle color themes
//	G      - Toggle GIF recording
//	?      - Show help overlay
package viz
