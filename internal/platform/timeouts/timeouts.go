// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// DependencyCall caps a single lookup against an external collaborator,
// such as the issuer directory or a linked-punishment fetch. Callers surface
// DEPENDENCY_UNAVAILABLE when the deadline expires rather than hanging.
const DependencyCall = 2 * time.Second

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// Shutdown limits how long a daemon waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
