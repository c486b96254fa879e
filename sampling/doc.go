// Package sampling decides which commands enter the query stats pipeline.
//
// A Sampler is consulted once per command before any key is computed, so
// decisions never depend on the command's shape. Samplers compose with All:
// a uniform ratio, a token bucket mirroring the server's queryStats rate
// limit, and a Breaker that pauses recording after repeated internal
// failures.
package sampling
