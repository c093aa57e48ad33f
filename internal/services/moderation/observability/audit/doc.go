// Package audit contains durable in-product audit writes for moderation
// engine operations.
//
// This package owns persisted operational audit events that are used for
// security posture, incident analysis, and cross-service debugging. Denied
// commands, rejected appeal grants, and dead-lettered propagation tasks are
// always recorded here; the rows outlive process logs.
//
// For distributed tracing, this service still uses package `internal/platform/otel`.
package audit
