// Package scene is a small scene-graph host for the undo engine.
//
// A Scene names its nodes and owns the object.Table the engine resolves
// handles against. Nodes speak all three host protocols:
//
//   - properties: any property declared when the node was added, plus "name"
//   - methods: set_name, add_child, remove_child, translate
//   - reference counting: Retain/Release
//
// The CLI and the scenario harness drive the engine against a Scene, and
// tests use it as a realistic host.
package scene
