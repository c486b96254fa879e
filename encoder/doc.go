// Package encoder produces the canonical byte form of a query stats key.
//
// Two keys encode to the same bytes exactly when they are structurally
// equal. The bytes are the store's lookup key; Hash selects a shard and ID
// derives a short stable identifier for export.
package encoder
