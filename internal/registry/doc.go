// Package registry provides the central "glue" for the module system.
//
// The Registry maps the processor kinds used in templates (the first label of
// a `processor "kind" "id"` block) to the Go factories that build them.
// Modules under modules/ register their kinds at startup; the template loader
// hands every processor block to Build as a Spec.
package registry
