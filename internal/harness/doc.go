// Package harness runs scripted undo/redo scenarios against the engine.
//
// A scenario is a YAML file that declares scene objects, an optional engine
// config, a list of steps and a list of final assertions:
//
//	name: simple_undo_redo
//	description: property round trip
//	objects:
//	  - name: box
//	    props: {x: 10}
//	steps:
//	  - {op: begin, name: Bump}
//	  - {op: do_property, target: box, property: x, value: 42}
//	  - {op: undo_property, target: box, property: x, value: 10}
//	  - {op: commit}
//	  - {op: undo}
//	assertions:
//	  - {type: final_state, object: box, expect: {x: 10}}
//
// Strings starting with "@" name scene objects and become references.
//
// Every run uses a ManualTicker starting at 0 and sequential action IDs, so
// traces are reproducible and can be compared against golden files with
// RunWithGolden.
package harness
