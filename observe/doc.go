// Package observe provides the telemetry of the query stats pipeline.
//
// It wires an OpenTelemetry tracer and meter, a structured logger, and the
// pipeline's own instruments. It records how commands move through the
// pipeline; it never sees literal values from the commands themselves.
package observe
