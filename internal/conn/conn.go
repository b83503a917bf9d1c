package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hostkit/toolhost/internal/errors"
	"github.com/hostkit/toolhost/internal/framing"
	"github.com/hostkit/toolhost/internal/wire"
)

// readChunkSize is the buffer size for reads off the provider's stdout.
// Deliberately small enough that the framer's partial-line handling is
// exercised constantly, large enough to not matter.
const readChunkSize = 32 * 1024

// Transport is the stream seam between a Connection and its child process.
// Satisfied by *subprocess.Process; tests inject in-memory fakes.
type Transport interface {
	// WriteLine writes one framed message to the peer.
	WriteLine(data []byte) error

	// Output returns the stream carrying the peer's framed messages.
	Output() io.Reader

	// Finish releases the peer once Output has drained and reports how
	// the stream ended.
	Finish() error
}

// NotificationHandler receives unsolicited notifications from the peer.
type NotificationHandler func(method string, params json.RawMessage)

// Connection correlates requests with responses over one provider's stdio.
//
// Request ids start at 1 and increase monotonically for the lifetime of the
// Connection; an id is never reused while a request with that id is pending.
// Concurrent outstanding requests are allowed and may complete out of order.
type Connection struct {
	log       *slog.Logger
	transport Transport
	framer    *framing.Framer

	nextID atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan wire.Message

	notifyMu sync.RWMutex
	notify   NotificationHandler

	closeOnce sync.Once
	closed    chan struct{}
	closeMu   sync.Mutex
	closeErr  error

	wg sync.WaitGroup
}

// New creates a Connection over the given transport. Each connection gets a
// ULID used only for log correlation; wire ids stay integers.
func New(log *slog.Logger, transport Transport) *Connection {
	c := &Connection{
		log:       log.With("component", "conn", "conn_id", ulid.Make().String()),
		transport: transport,
		pending:   make(map[int64]chan wire.Message, 8),
		closed:    make(chan struct{}),
	}

	c.framer = framing.New(c.log, c.dispatch)

	return c
}

// OnNotification registers the handler for unsolicited notifications.
// Must be called before Start.
func (c *Connection) OnNotification(fn NotificationHandler) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.notify = fn
}

// Start begins reading the peer's output stream. It returns immediately;
// the read loop runs until the stream ends.
func (c *Connection) Start() {
	c.wg.Add(1)

	go c.readLoop()
}

// readLoop feeds raw chunks into the framer until the output stream ends,
// then reaps the peer and fails every pending request.
func (c *Connection) readLoop() {
	defer c.wg.Done()

	buf := make([]byte, readChunkSize)
	out := c.transport.Output()

	var readErr error

	for {
		n, err := out.Read(buf)
		if n > 0 {
			c.framer.Feed(buf[:n])
		}

		if err != nil {
			if err != io.EOF {
				readErr = err
			}

			break
		}
	}

	finishErr := c.transport.Finish()

	cause := finishErr
	if cause == nil {
		cause = readErr
	}

	c.fail(&errors.ConnectionLostError{Err: cause})
}

// dispatch routes one decoded message by kind.
func (c *Connection) dispatch(msg wire.Message) {
	switch msg.Kind {
	case wire.KindResponse:
		c.resolve(msg)

	case wire.KindNotification:
		c.notifyMu.RLock()
		fn := c.notify
		c.notifyMu.RUnlock()

		if fn != nil {
			fn(msg.Method, msg.Params)

			return
		}

		c.log.Debug("Discarding unsolicited notification", "method", msg.Method)

	case wire.KindRequest:
		// The host declares no server-callable capabilities, so
		// provider-initiated requests are not expected.
		c.log.Debug("Discarding unexpected request from provider",
			"method", msg.Method, "id", msg.ID)
	}
}

// resolve settles the pending request matching the response id, if any.
// A response for an id with no pending entry is discarded: the request
// either timed out or never existed, and a slow provider must not be able
// to resurrect an abandoned call.
func (c *Connection) resolve(msg wire.Message) {
	c.pendingMu.Lock()

	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}

	c.pendingMu.Unlock()

	if !ok {
		c.log.Debug("Discarding response with no pending request", "id", msg.ID)

		return
	}

	// Buffered, the waiter may already have left on ctx cancellation.
	ch <- msg
}

// Notify sends a notification; no response is expected.
func (c *Connection) Notify(method string, params any) error {
	select {
	case <-c.closed:
		return c.lastError()
	default:
	}

	data, err := wire.Encode(wire.NewNotification(method, params))
	if err != nil {
		return err
	}

	return c.transport.WriteLine(data)
}

// Request sends a request and waits for whichever comes first: the
// correlated response, an error response, the timeout, context
// cancellation, or connection loss. On success it returns the response's
// result field.
func (c *Connection) Request(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (json.RawMessage, error) {
	select {
	case <-c.closed:
		return nil, c.lastError()
	default:
	}

	id := c.nextID.Add(1)

	ch := make(chan wire.Message, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	data, err := wire.Encode(wire.NewRequest(id, method, params))
	if err != nil {
		c.removePending(id)

		return nil, err
	}

	c.log.Debug("Sending request", "id", id, "method", method)

	if err := c.transport.WriteLine(data); err != nil {
		c.removePending(id)

		return nil, fmt.Errorf("send request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		if msg.Err != nil {
			c.log.Debug("Request returned error", "id", id, "error", msg.Err.Message)

			return nil, fmt.Errorf("%s: %w", method, msg.Err)
		}

		return msg.Result, nil

	case <-timer.C:
		c.removePending(id)
		c.log.Warn("Request timed out", "id", id, "method", method, "timeout", timeout)

		return nil, fmt.Errorf("%s: %w after %s", method, errors.ErrRequestTimeout, timeout)

	case <-ctx.Done():
		c.removePending(id)

		return nil, ctx.Err()

	case <-c.closed:
		c.removePending(id)

		return nil, c.lastError()
	}
}

// removePending drops the pending entry for id; a response arriving later
// finds no entry and is discarded.
func (c *Connection) removePending(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// fail marks the connection unusable and wakes every pending waiter.
func (c *Connection) fail(err error) {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closeErr = err
		c.closeMu.Unlock()

		close(c.closed)

		c.log.Debug("Connection closed", "error", err)
	})
}

// lastError returns the error recorded when the connection failed.
func (c *Connection) lastError() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closeErr != nil {
		return c.closeErr
	}

	return errors.ErrConnectionClosed
}

// Done is closed when the connection becomes unusable.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// Wait blocks until the read loop has exited.
func (c *Connection) Wait() {
	c.wg.Wait()
}
