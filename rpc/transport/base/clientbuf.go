package base

import (
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
)

var (
	// ErrWouldBlock is returned by a non-blocking IConn when no progress is possible right now
	ErrWouldBlock = errors.New("operation would block")
	// ErrNoOutputSpace is returned by the Send methods when no response can be queued
	ErrNoOutputSpace = errors.New("no output space available")
)

// IConn is the non-blocking byte stream driven by a ClientBuffer.
//
// Read and Write must never block: when no progress is possible they return
// ErrWouldBlock. Read returns io.EOF once the peer has closed its sending side.
type IConn interface {
	io.ReadWriteCloser
}

// IOMode selects the phase a ClientBuffer is in
type IOMode uint8

const (
	ModeInput  IOMode = iota // receiving and parsing a request
	ModeOutput               // flushing a response
)

func (m IOMode) String() string {
	if m == ModeOutput {
		return "output"
	}
	return "input"
}

// --------------------------------------------------------------------------
// Client Buffer
// --------------------------------------------------------------------------

// ClientBuffer is the per-connection state machine of the daemon. It receives one
// request at a time into a fixed buffer, parses it incrementally and afterwards
// flushes the response from the same buffer.
//
// A ClientBuffer is driven by a readiness based dispatcher and must not be used
// from more than one goroutine at a time.
type ClientBuffer struct {
	conn IConn
	buf  []byte

	bufit int // input: parse cursor, output: unused (always 0 after a flush)
	bufsz int // number of valid bytes in buf

	mode   IOMode
	status serializer.State
	eof    bool
	err    error

	request serializer.Request
}

// NewClientBuffer creates a buffer in input mode that can hold messages of up to size bytes.
func NewClientBuffer(conn IConn, size int) *ClientBuffer {
	if size <= 0 {
		size = common.MaxMessageSize
	}
	return &ClientBuffer{
		conn: conn,
		buf:  make([]byte, size),
	}
}

// Mode returns the current phase.
func (c *ClientBuffer) Mode() IOMode { return c.mode }

// Status returns the parse state (input) or flush state (output) of the current message.
func (c *ClientBuffer) Status() serializer.State { return c.status }

// EOF reports whether the peer closed its sending side.
func (c *ClientBuffer) EOF() bool { return c.eof }

// Err returns the I/O error that moved the buffer into the error state, if any.
func (c *ClientBuffer) Err() error { return c.err }

// Request returns the parsed request. It is only meaningful once Status is
// serializer.StateComplete in input mode, and its strings reference the buffer:
// they are invalidated by the next mode change.
func (c *ClientBuffer) Request() *serializer.Request { return &c.request }

// Close closes the underlying connection.
func (c *ClientBuffer) Close() error {
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// State Machine
// --------------------------------------------------------------------------

// Operation performs the pending I/O work after a readiness notification.
//
// In input mode all available bytes are read (the descriptor is edge triggered,
// so it must be drained), then the request is parsed from the saved cursor. In
// output mode the queued response is written until the connection would block.
//
// It returns true when no more work is possible on this connection: the peer
// closed without sending new bytes, an I/O or protocol error occurred, or the
// peer is gone while a response is pending. The caller should then close it.
func (c *ClientBuffer) Operation() (finished bool) {
	if c.eof || c.status == serializer.StateError {
		return true
	}

	if c.mode == ModeOutput {
		return c.flush() != nil
	}

	initial := c.bufsz
	for c.bufsz < len(c.buf) {
		n, err := c.conn.Read(c.buf[c.bufsz:])
		c.bufsz += n

		if errors.Is(err, io.EOF) {
			c.eof = true
			if c.bufsz == initial {
				// nothing new arrived, no more work is possible
				return true
			}
			break
		}
		if errors.Is(err, ErrWouldBlock) {
			break
		}
		if err != nil {
			c.fail(fmt.Errorf("read: %w", err))
			return true
		}
	}

	return c.parse()
}

// parse continues parsing the request from the saved cursor
func (c *ClientBuffer) parse() bool {
	if c.bufsz == 0 {
		return false
	}

	c.bufit, c.status = serializer.ParseRequest(c.buf[:c.bufsz], c.bufit, c.status, &c.request)

	switch {
	case c.status == serializer.StateError:
		c.err = fmt.Errorf("malformed request at offset %d", c.bufit)
		return true
	case c.status != serializer.StateComplete && c.bufsz == len(c.buf):
		// the buffer is full and the request is still not complete
		c.fail(fmt.Errorf("request exceeds %d bytes", len(c.buf)))
		return true
	}
	return false
}

// flush writes as much of the queued response as possible and moves the unsent
// rest to the front of the buffer
func (c *ClientBuffer) flush() error {
	written := 0
	for written < c.bufsz {
		n, err := c.conn.Write(c.buf[written:c.bufsz])
		written += n

		if errors.Is(err, ErrWouldBlock) {
			break
		}
		if err != nil {
			c.fail(fmt.Errorf("write: %w", err))
			return c.err
		}
	}

	c.bufsz = copy(c.buf, c.buf[written:c.bufsz])
	c.bufit = 0
	if c.bufsz == 0 {
		c.status = serializer.StateComplete
	}
	return nil
}

func (c *ClientBuffer) fail(err error) {
	c.status = serializer.StateError
	c.err = err
}

// --------------------------------------------------------------------------
// Mode Transitions
// --------------------------------------------------------------------------

// InputMode switches to receiving the next request. Cursor, fill length and
// parse state are reset, any previously parsed request is discarded.
func (c *ClientBuffer) InputMode() {
	c.mode = ModeInput
	c.bufsz = 0
	c.bufit = 0
	c.status = serializer.StateUnset
	c.request.Reset()
}

// OutputMode switches to sending a response. Cursor, fill length and parse
// state are reset, no further reads happen until InputMode is called.
func (c *ClientBuffer) OutputMode() {
	c.mode = ModeOutput
	c.bufsz = 0
	c.bufit = 0
	c.status = serializer.StateUnset
}

// outputSpan returns the writable part of the buffer, forcing output mode.
// It returns nil if the peer is gone or the buffer is full.
func (c *ClientBuffer) outputSpan() []byte {
	if c.mode != ModeOutput {
		c.OutputMode()
	}
	if c.eof || c.bufsz >= len(c.buf) {
		return nil
	}
	c.status = serializer.StateIncomplete
	return c.buf[c.bufsz:]
}

// --------------------------------------------------------------------------
// Responses (implements transport.IResponder)
// --------------------------------------------------------------------------

// SendError queues an error response and tries to flush it right away.
func (c *ClientBuffer) SendError(text string) error {
	return c.sendText(common.RespError, text)
}

// SendMessage queues a message response and tries to flush it right away.
func (c *ClientBuffer) SendMessage(text string) error {
	return c.sendText(common.RespMessage, text)
}

// SendRecord queues a record response and tries to flush it right away. Fields
// that don't fit into the buffer are omitted. key must not reference the
// request stored in this buffer.
func (c *ClientBuffer) SendRecord(key []byte, rec *store.SessionRecord) error {
	span := c.outputSpan()
	if span == nil {
		return ErrNoOutputSpace
	}
	c.bufsz += serializer.PutResponseRecord(span, key, rec)
	return c.flush()
}

func (c *ClientBuffer) sendText(kind common.ResponseKind, text string) error {
	span := c.outputSpan()
	if span == nil {
		return ErrNoOutputSpace
	}
	c.bufsz += serializer.PutResponseText(span, kind, text)
	return c.flush()
}
