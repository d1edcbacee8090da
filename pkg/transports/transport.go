package transports

import "context"

// Transport is a network front end for chat sessions.
// Implementations own their listener lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ReadyReporter exposes readiness metadata (listen address, paths) for
// startup logging.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
