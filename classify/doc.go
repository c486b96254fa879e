// Package classify holds the static option registry used to build query stats
// keys.
//
// Every recognized command type has a Schema: the ordered set of fields nested
// under queryShape, the ordered set of fields beside it, and a table mapping
// each command option to the key field it populates. Schemas are plain data and
// are checked once when a Registry is built, so a request never pays for schema
// validation.
package classify
