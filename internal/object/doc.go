// Package object defines the contracts the engine consumes from its host:
// entity handles, the registry that resolves them, and the property, method
// and reference-counting protocols a host object may implement.
//
// Table is a goroutine-safe registry for hosts that do not already have one.
package object
