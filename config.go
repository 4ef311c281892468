package ldapserver

import (
	"net"
	"time"

	"github.com/rs/zerolog"
)

// StartTLSUpgrader wraps a plaintext connection in TLS in response to
// a StartTLS extended request. It is the one piece of the external
// Acceptor boundary (§6, component F) the engine itself calls back
// into, because StartTLS must run synchronously on the dispatch loop
// (RFC 4511 §4.14.1) rather than being handed to an async worker like
// every other extended operation.
type StartTLSUpgrader func(net.Conn) (net.Conn, error)

// Config is the configuration bag handed to a Server, mirroring the
// keys §6 names. The core never parses a file into this struct itself
// — that belongs to the composition root (see cmd/ldapserverd for one
// way to build it with cobra/viper) — it only reads the fields.
type Config struct {
	// Handler is the default handler shared by every connection.
	// Exactly one of Handler or HandlerFactory must be set.
	Handler Handler

	// HandlerFactory builds a fresh Handler per connection, for
	// backends that need per-connection state (the "new(connection,
	// messageID, ...)" factory form from §6).
	HandlerFactory HandlerFactory

	// NamingContexts lists the base DNs this server claims to serve;
	// forwarded to handlers uninterpreted (e.g. for a RootDSE query).
	NamingContexts []string

	// Schema is an opaque object forwarded to handlers uninterpreted.
	Schema interface{}

	// StartTLSUpgrader, if set, enables the StartTLS extended
	// operation. If nil, a StartTLS request is answered with
	// resultCode=unwillingToPerform.
	StartTLSUpgrader StartTLSUpgrader

	// OnNewConnection, if non-nil, is called with the raw connection
	// before the dispatch loop starts; returning a non-nil error
	// closes the connection without serving it.
	OnNewConnection func(net.Conn) error

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger zerolog.Logger
}

func (cfg *Config) logger() zerolog.Logger {
	return cfg.Logger
}

func (cfg *Config) newHandler(conn *Connection) Handler {
	if cfg.HandlerFactory != nil {
		return cfg.HandlerFactory(conn)
	}
	return cfg.Handler
}
