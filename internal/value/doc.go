// Package value provides the self-describing argument type carried by
// recorded operations.
//
// Every Value knows its own Kind, so the invoker never infers a type from an
// argument's position. The package imports nothing internal; object handles
// appear here only as the Ref kind (a bare uint64) to keep the dependency
// graph one-directional.
//
// Key design constraints:
//   - Values are stored by value and never dereferenced until execution
//   - Dict keys iterate in sorted order (SortedKeys) for deterministic output
//   - MarshalCanonical is the only serialization used for audit payloads
package value
