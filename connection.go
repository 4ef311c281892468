package ldapserver

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/nvllz/ldapserver/wire"
)

// Connection is one accepted transport and its dispatch loop (component
// E, §4 and §5). It owns the envelope reader, the response writer, the
// active-request table, and the handler this connection currently
// binds requests to.
type Connection struct {
	Numero int

	conn   net.Conn
	br     *bufio.Reader
	writer *messageWriter
	table  *activeTable

	cfg     *Config
	handler Handler

	readTimeout  time.Duration
	writeTimeout time.Duration

	// wg tracks outstanding async workers so StartTLS can wait for them
	// to drain before touching the transport, and serve can wait for
	// them before closing it.
	wg sync.WaitGroup

	boundDN string
	version int
}

func newConnection(conn net.Conn, cfg *Config) *Connection {
	c := &Connection{
		conn:         conn,
		br:           bufio.NewReader(conn),
		writer:       newMessageWriter(bufio.NewWriter(conn)),
		table:        newActiveTable(),
		cfg:          cfg,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
	c.handler = cfg.newHandler(c)
	return c
}

// RemoteAddr is the connection's peer address, for logging.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Config returns the configuration bag this connection was accepted
// with, so a handler built by a HandlerFactory can read NamingContexts,
// Schema and the other fields.
func (c *Connection) Config() *Config {
	return c.cfg
}

// Close closes the underlying transport. Outstanding workers observe
// the read/write failure that follows and unwind on their own; Close
// does not itself cancel the active table.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// serve runs the dispatch loop (§5) until the transport is closed, an
// Unbind is received, or a protocol error forces a close. It is the
// one goroutine per connection that reads from the wire; every other
// goroutine touching this connection only ever writes, through
// messageWriter's mutex.
//
// Deferred in reverse of their intended order (LIFO): cancelAll must
// run before wg.Wait, since a compliant worker blocks on <-ctx.Done()
// and wg.Wait can only return once every worker has observed its
// cancellation. Running cancelAll after the wait would deadlock on
// any exit path that doesn't already cancel inline (clean EOF, a
// framing error) whenever a handler is still blocked in flight (§7,
// TransportError: abandon all workers, close without notice).
func (c *Connection) serve() {
	defer c.conn.Close()
	defer c.wg.Wait()
	defer c.table.cancelAll()

	if cb := c.cfg.OnNewConnection; cb != nil {
		if err := cb(c.conn); err != nil {
			c.cfg.logger().Info().Err(err).Str("peer", c.peerString()).Msg("connection rejected")
			return
		}
	}

	c.cfg.logger().Info().Int("conn", c.Numero).Str("peer", c.peerString()).Msg("connection accepted")

	for {
		if c.readTimeout != 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		raw, err := wire.ReadElement(c.br)
		if err != nil {
			if err != io.EOF {
				c.cfg.logger().Debug().Int("conn", c.Numero).Err(err).Msg("framing error")
			}
			// Only an indefinite length earns a notice; a stream that
			// closed mid-element or failed to read is dropped without one.
			if err == wire.ErrIndefiniteLength {
				c.sendNotice(ResultProtocolError, err.Error())
			}
			return
		}

		env, err := wire.DecodeEnvelope(raw)
		if err != nil {
			c.cfg.logger().Debug().Int("conn", c.Numero).Err(err).Msg("malformed LDAPMessage")
			c.sendNotice(ResultProtocolError, err.Error())
			return
		}

		if c.writeTimeout != 0 {
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}

		if c.dispatch(env) {
			return
		}
	}
}

// dispatch routes one decoded envelope and reports whether the
// dispatch loop must stop reading (a fatal protocol error, Unbind, or
// a StartTLS transport swap that needs the loop to exit and restart
// with fresh I/O state — handled inline here instead, since re-reading
// through the swapped conn/br is just the next loop iteration).
func (c *Connection) dispatch(env *wire.Envelope) (stop bool) {
	switch env.OpTag {
	case wire.TagBindRequest:
		return c.handleBind(env)
	case wire.TagUnbindRequest:
		c.table.cancelAll()
		c.cfg.logger().Info().Int("conn", c.Numero).Msg("unbind")
		return true
	case wire.TagAbandonRequest:
		return c.handleAbandon(env)
	case wire.TagExtendedRequest:
		return c.handleExtended(env)
	case wire.TagSearchRequest, wire.TagModifyRequest, wire.TagAddRequest,
		wire.TagDelRequest, wire.TagModifyDNRequest, wire.TagCompareRequest:
		c.spawnWorker(env)
		return false
	default:
		c.cfg.logger().Debug().Int("conn", c.Numero).Interface("tag", env.OpTag).Msg("unsupported operation")
		c.sendNotice(ResultProtocolError, "unsupported or unimplemented operation")
		return true
	}
}

// handleBind runs Bind synchronously on the dispatch loop (§4.5): it
// first cancels every outstanding asynchronous request, then invokes
// the handler, then writes exactly one BindResponse. A failed Bind
// leaves the connection's previous bind state untouched, per RFC 4511
// §4.2.
func (c *Connection) handleBind(env *wire.Envelope) (stop bool) {
	c.table.cancelAll()

	req, err := decodeBindRequest(env.Op, env.Controls)
	if err != nil {
		c.cfg.logger().Debug().Int("conn", c.Numero).Err(err).Msg("malformed BindRequest")
		c.sendNotice(ResultProtocolError, err.Error())
		return true
	}

	res, err := c.callBind(context.Background(), req)
	if err != nil {
		lerr := asLDAPError(err)
		_ = c.writer.writeFrame(wire.EncodeEnvelope(env.MessageID, encodeBindResponse(lerr.Code, lerr.MatchedDN, lerr.Message)))
		return false
	}

	c.version = req.Version
	if res != nil {
		c.boundDN = res.DN
	}
	_ = c.writer.writeFrame(wire.EncodeEnvelope(env.MessageID, encodeBindResponse(ResultSuccess, "", "")))
	return false
}

func (c *Connection) callBind(ctx context.Context, req *BindRequest) (res *BindResult, err error) {
	defer recoverHandlerPanic(&err)
	return c.handler.Bind(ctx, req)
}

// handleAbandon cancels the named request's worker, if any is still
// running, and never produces a response of its own (RFC 4511 §4.11).
func (c *Connection) handleAbandon(env *wire.Envelope) (stop bool) {
	target, err := decodeAbandonRequest(env.Op)
	if err != nil {
		c.cfg.logger().Debug().Int("conn", c.Numero).Err(err).Msg("malformed AbandonRequest")
		c.sendNotice(ResultProtocolError, err.Error())
		return true
	}
	c.table.cancel(target)
	return false
}

// handleExtended peeks the decoded requestName to route StartTLS onto
// the synchronous path RFC 4511 §4.14.1 requires; every other OID is
// handed to the ordinary async worker pool like Search or Modify.
func (c *Connection) handleExtended(env *wire.Envelope) (stop bool) {
	req, err := decodeExtendedRequest(env.Op, env.Controls)
	if err != nil {
		c.spawnWorker(env)
		return false
	}
	if req.Name != wire.NoticeOfStartTLS {
		c.spawnWorker(env)
		return false
	}
	return c.handleStartTLS(env.MessageID, req)
}

// handleStartTLS cancels every outstanding request, waits for their
// workers to actually finish (so none can write through the writer
// after its buffer is swapped onto a TLS-wrapped conn), responds
// success in the clear, then upgrades the transport. Failure to
// upgrade forces the connection closed, since the client believes a
// TLS handshake is about to start.
func (c *Connection) handleStartTLS(messageID int, req *ExtendedRequest) (stop bool) {
	c.table.cancelAll()
	c.wg.Wait()

	if c.cfg.StartTLSUpgrader == nil {
		op := wire.EncodeExtendedResponse(ResultUnwillingToPerform, "", "StartTLS not supported", wire.NoticeOfStartTLS, nil)
		_ = c.writer.writeFrame(wire.EncodeEnvelope(messageID, op))
		return false
	}

	op := wire.EncodeExtendedResponse(ResultSuccess, "", "", wire.NoticeOfStartTLS, nil)
	if err := c.writer.writeFrame(wire.EncodeEnvelope(messageID, op)); err != nil {
		return true
	}

	upgraded, err := c.cfg.StartTLSUpgrader(c.conn)
	if err != nil {
		c.cfg.logger().Info().Int("conn", c.Numero).Err(err).Msg("StartTLS upgrade failed")
		return true
	}

	c.conn = upgraded
	c.br = bufio.NewReader(upgraded)
	c.writer = newMessageWriter(bufio.NewWriter(upgraded))
	return false
}

// spawnWorker registers a cancellation token for env.MessageID and
// hands the envelope to a new goroutine (component D). env is a fresh
// allocation from this read iteration (ReadElement never reuses a
// buffer across calls), so handing its pointer to the goroutine before
// reading the next envelope cannot race the next iteration's decode.
func (c *Connection) spawnWorker(env *wire.Envelope) {
	ctx, cancel := context.WithCancel(context.Background())
	c.table.insert(env.MessageID, cancel)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.table.remove(env.MessageID)
		defer cancel()
		(&worker{conn: c, messageID: env.MessageID}).run(ctx, env)
	}()
}

func (c *Connection) peerString() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}
