// Package doubao provides node adapters that forward editor inputs to the Doubao
// chat and vision HTTP APIs. It defines the host node contract (input schema,
// result types, entry point), an explicit node registry, and the error taxonomy
// shared by every adapter.
package doubao
