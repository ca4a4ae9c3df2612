// Package midas wires control-surface events to host-side effects
// through a live-editable node graph.
//
// The data model is in package 'graph', the dispatch core is in
// 'engine', and command-line tools are in `cmd`.
package midas
