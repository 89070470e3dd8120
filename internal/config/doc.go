// Package config loads engine configuration from CUE or YAML.
//
// CUE files are unified with an embedded #Config schema, so defaults and
// bounds live in one place:
//
//	max_steps:       50
//	merge_window_ms: 500
//	audit: path: "history.db"
//
// YAML files use the same field names and are decoded strictly: unknown
// keys are errors.
package config
