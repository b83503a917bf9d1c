package toolhost

import (
	"log/slog"

	"github.com/hostkit/toolhost/internal/supervisor"
)

// Transport is the process seam between a supervisor and its child
// process. The default implementation spawns a real subprocess.
type Transport = supervisor.Transport

// TransportFactory builds the transport for one server start attempt.
type TransportFactory = supervisor.Factory

// Option configures a Host during construction.
type Option func(*Host)

// WithLogger sets the logger used by the host and everything it owns.
// Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(h *Host) {
		h.log = log
	}
}

// WithTimeouts overrides the default handshake, start, tool-call, and
// stop-grace timeouts. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(h *Host) {
		h.timeouts = t
	}
}

// WithTransportFactory replaces process spawning, e.g. with an in-memory
// transport in tests.
func WithTransportFactory(factory TransportFactory) Option {
	return func(h *Host) {
		h.factory = factory
	}
}
