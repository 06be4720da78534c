// Package viz draws a running N-body system in the terminal.
//
// [Model] is a Bubble Tea model that steps a [physics.BodiesSystem] on
// every tick and renders the bodies on a braille [Canvas]:
//
//   - [Camera]: rotation, zoom and auto-fit projection of 3D positions
//   - [Canvas]: 2x4 sub-pixel braille grid
//   - an asciigraph chart of total energy for systems small enough to
//     evaluate it every frame
//
// # Key Bindings
//
//	Space  - Pause/Resume
//	N      - Single step while paused
//	R      - Restore the initial bodies
//	F      - Refit the view
//	Arrows - Rotate the view
//	+/-    - Zoom
//	E      - Toggle the energy chart
//	T      - Cycle color themes
//	?      - Show help overlay
//
// A failed step stops the simulation and shows the error in the side
// panel; R clears it.
package viz
