// Package key assembles query stats keys.
//
// A key nests the query shape of a command under "queryShape" and places the
// command's outer options (batch size, comment, API parameters, hint, ...)
// and execution context (collection type, client metadata) beside it. The
// exact set of fields per command type comes from the classify registry.
package key
