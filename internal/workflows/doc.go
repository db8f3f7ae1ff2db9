// Package workflows loads ComfyUI workflow graphs and binds their
// parameter slots.
//
// A Template is immutable after load; every execution iteration derives a
// fresh Instance (a deep copy of the graph) before writing the seed, input
// image, output prefix, and optional prompt, so concurrent iterations never
// share mutable template state.
package workflows
