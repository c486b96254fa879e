// Package shape turns command sub-values into query shapes.
//
// A shape keeps everything structural about a query (operator names, field
// paths, sort directions, behavioral flags) and replaces every literal drawn
// from user data with a placeholder carrying only the literal's type, such as
// "?number" or "?string". Two queries that differ only in their literals have
// equal shapes.
//
// Shaped values form a closed union (see Value). The shapifiers in this package
// are pure functions over bson documents and are safe for concurrent use.
package shape
