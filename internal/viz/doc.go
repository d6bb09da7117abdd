// Package viz renders simulation results in the terminal.
//
// Static charts ([PlotEnsemble], [PlotEpisode]) use asciigraph; the live
// closed-loop view ([Model]) is a Bubble Tea program styled with lipgloss.
// [Canvas] is a braille pixel grid used for Ca/T phase portraits.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset to the starting state
//	Up/Dn - Nudge Tc (manual controller) or move the T setpoint
//	+/-   - Change tick rate
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
