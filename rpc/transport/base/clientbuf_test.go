package base

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
)

// --------------------------------------------------------------------------
// Fake non-blocking connection
// --------------------------------------------------------------------------

// fakeConn serves reads from a list of chunks. A nil chunk ends one readiness
// burst (ErrWouldBlock). Once all chunks are consumed Read returns io.EOF if eof
// is set, ErrWouldBlock otherwise.
//
// Writes accept at most writeBudget bytes (negative = unlimited) before they
// would block.
type fakeConn struct {
	chunks      [][]byte
	eof         bool
	written     bytes.Buffer
	writeBudget int
	writeErr    error
	closed      bool
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.eof {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}

	chunk := c.chunks[0]
	if chunk == nil {
		c.chunks = c.chunks[1:]
		return 0, ErrWouldBlock
	}

	n := copy(p, chunk)
	if n < len(chunk) {
		c.chunks[0] = chunk[n:]
	} else {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	n := len(p)
	if c.writeBudget >= 0 {
		if c.writeBudget == 0 {
			return 0, ErrWouldBlock
		}
		if n > c.writeBudget {
			n = c.writeBudget
		}
		c.writeBudget -= n
	}
	c.written.Write(p[:n])
	return n, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func encode(t *testing.T, req serializer.Request) []byte {
	t.Helper()
	buf := make([]byte, common.MaxMessageSize)
	n, err := serializer.EncodeRequest(buf, &req)
	if err != nil {
		t.Fatalf("Failed to encode request: %v", err)
	}
	return buf[:n]
}

func testRequest() serializer.Request {
	return serializer.Request{
		Op: common.OpCommit,
		Record: store.SessionRecord{
			Key:         []byte("3f2a9c"),
			ID:          1001,
			Username:    []byte("alice"),
			DisplayName: []byte("Alice Liddell"),
			Expire:      1700003600,
			Redirect:    []byte("/after-login"),
			Tag:         []byte("admin"),
		},
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestClientBufferSingleChunk tests parsing a request received at once
func TestClientBufferSingleChunk(t *testing.T) {
	msg := encode(t, testRequest())
	conn := &fakeConn{chunks: [][]byte{msg}, writeBudget: -1}
	cb := NewClientBuffer(conn, common.MaxMessageSize)

	if cb.Operation() {
		t.Fatalf("Unexpected finish: %v", cb.Err())
	}
	if cb.Status() != serializer.StateComplete {
		t.Fatalf("Expected %s, got %s", serializer.StateComplete, cb.Status())
	}

	req := testRequest()
	if got := cb.Request(); got.Op != req.Op || !got.Record.Equal(&req.Record) {
		t.Errorf("Request doesn't match:\nExpected: %+v\nGot:      %+v", req, *got)
	}
}

// TestClientBufferChunkedInput feeds the request split at every position, one
// readiness burst per chunk, and compares with the single chunk result
func TestClientBufferChunkedInput(t *testing.T) {
	msg := encode(t, testRequest())

	whole := NewClientBuffer(&fakeConn{chunks: [][]byte{msg}, writeBudget: -1}, common.MaxMessageSize)
	whole.Operation()
	expected := *whole.Request()

	for split := 1; split < len(msg); split++ {
		conn := &fakeConn{chunks: [][]byte{msg[:split], nil, msg[split:]}, writeBudget: -1}
		cb := NewClientBuffer(conn, common.MaxMessageSize)

		if cb.Operation() {
			t.Fatalf("Split %d: unexpected finish: %v", split, cb.Err())
		}
		if cb.Status() != serializer.StateIncomplete {
			t.Fatalf("Split %d: expected %s after first burst, got %s", split, serializer.StateIncomplete, cb.Status())
		}
		if cb.Operation() {
			t.Fatalf("Split %d: unexpected finish: %v", split, cb.Err())
		}
		if cb.Status() != serializer.StateComplete {
			t.Fatalf("Split %d: expected %s, got %s", split, serializer.StateComplete, cb.Status())
		}
		if !reflect.DeepEqual(*cb.Request(), expected) {
			t.Fatalf("Split %d: request differs:\nExpected: %+v\nGot:      %+v", split, expected, *cb.Request())
		}
	}
}

// TestClientBufferByteBursts delivers every byte in its own readiness burst
func TestClientBufferByteBursts(t *testing.T) {
	msg := encode(t, serializer.Request{Op: common.OpTransfer, TransferSrc: []byte("a"), TransferDst: []byte("b")})

	var chunks [][]byte
	for i := range msg {
		chunks = append(chunks, msg[i:i+1], nil)
	}
	cb := NewClientBuffer(&fakeConn{chunks: chunks, writeBudget: -1}, common.MaxMessageSize)

	for i := 0; i < len(msg); i++ {
		if cb.Operation() {
			t.Fatalf("Unexpected finish after byte %d: %v", i, cb.Err())
		}
	}
	if cb.Status() != serializer.StateComplete {
		t.Fatalf("Expected %s, got %s", serializer.StateComplete, cb.Status())
	}
	req := cb.Request()
	if string(req.TransferSrc) != "a" || string(req.TransferDst) != "b" {
		t.Errorf("Unexpected transfer fields: src=%q dst=%q", req.TransferSrc, req.TransferDst)
	}
}

// TestClientBufferProtocolErrors tests malformed and oversize requests
func TestClientBufferProtocolErrors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		size int
	}{
		{"InvalidOpcode", []byte{0x09, 0x00, 'a', 0x00, 0xff}, common.MaxMessageSize},
		{"UnknownTag", []byte{0x00, 0x42}, common.MaxMessageSize},
		{"Oversize", append([]byte{0x00, 0x00}, bytes.Repeat([]byte("k"), 64)...), 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cb := NewClientBuffer(&fakeConn{chunks: [][]byte{tc.data}, writeBudget: -1}, tc.size)
			if !cb.Operation() {
				t.Fatalf("Expected operation to finish")
			}
			if cb.Status() != serializer.StateError {
				t.Errorf("Expected %s, got %s", serializer.StateError, cb.Status())
			}
			if !cb.Operation() {
				t.Errorf("Expected error state to be terminal")
			}
		})
	}
}

// TestClientBufferEOF tests end of stream handling
func TestClientBufferEOF(t *testing.T) {
	t.Run("NoData", func(t *testing.T) {
		cb := NewClientBuffer(&fakeConn{eof: true, writeBudget: -1}, common.MaxMessageSize)
		if !cb.Operation() {
			t.Errorf("Expected operation to finish on EOF without data")
		}
		if !cb.EOF() {
			t.Errorf("Expected EOF to be recorded")
		}
	})

	t.Run("DataThenEOF", func(t *testing.T) {
		msg := encode(t, serializer.Request{Op: common.OpLookup, Record: store.SessionRecord{Key: []byte("abc")}})
		conn := &fakeConn{chunks: [][]byte{msg}, eof: true, writeBudget: -1}
		cb := NewClientBuffer(conn, common.MaxMessageSize)

		// the request is still parsed
		if cb.Operation() {
			t.Fatalf("Unexpected finish: %v", cb.Err())
		}
		if cb.Status() != serializer.StateComplete {
			t.Fatalf("Expected %s, got %s", serializer.StateComplete, cb.Status())
		}

		// but no response can be sent anymore
		if err := cb.SendMessage("ok"); !errors.Is(err, ErrNoOutputSpace) {
			t.Errorf("Expected ErrNoOutputSpace, got %v", err)
		}
		if conn.written.Len() != 0 {
			t.Errorf("Expected nothing to be written, got %v", conn.written.Bytes())
		}
		if !cb.Operation() {
			t.Errorf("Expected operation to finish")
		}
	})
}

// TestClientBufferPartialWrites flushes a response through short writes and
// compares the stream with a single full write
func TestClientBufferPartialWrites(t *testing.T) {
	rec := testRequest().Record
	key := []byte("3f2a9c")

	expected := make([]byte, common.MaxMessageSize)
	n := serializer.PutResponseRecord(expected, key, &rec)
	expected = expected[:n]

	for _, budget := range []int{1, 3, 7, 16} {
		conn := &fakeConn{writeBudget: budget}
		cb := NewClientBuffer(conn, common.MaxMessageSize)

		if err := cb.SendRecord(key, &rec); err != nil {
			t.Fatalf("Budget %d: failed to send record: %v", budget, err)
		}
		if cb.Mode() != ModeOutput {
			t.Fatalf("Budget %d: expected output mode", budget)
		}

		for i := 0; cb.Status() != serializer.StateComplete; i++ {
			if i > len(expected) {
				t.Fatalf("Budget %d: response was not flushed", budget)
			}
			if cb.Status() != serializer.StateIncomplete {
				t.Fatalf("Budget %d: expected %s, got %s", budget, serializer.StateIncomplete, cb.Status())
			}
			conn.writeBudget = budget
			if cb.Operation() {
				t.Fatalf("Budget %d: unexpected finish: %v", budget, cb.Err())
			}
		}

		if !bytes.Equal(conn.written.Bytes(), expected) {
			t.Errorf("Budget %d: stream differs:\nExpected: %v\nGot:      %v", budget, expected, conn.written.Bytes())
		}
	}
}

// TestClientBufferWriteError tests that a failing write is a connection error
func TestClientBufferWriteError(t *testing.T) {
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	cb := NewClientBuffer(conn, common.MaxMessageSize)

	if err := cb.SendError("not found"); err == nil {
		t.Fatalf("Expected send to fail")
	}
	if cb.Status() != serializer.StateError {
		t.Errorf("Expected %s, got %s", serializer.StateError, cb.Status())
	}
	if !cb.Operation() {
		t.Errorf("Expected operation to finish")
	}
}

// TestClientBufferTruncation tests that responses are cut to the buffer size
func TestClientBufferTruncation(t *testing.T) {
	conn := &fakeConn{writeBudget: -1}
	cb := NewClientBuffer(conn, 8)

	if err := cb.SendMessage("a rather long message"); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	expected := []byte{byte(common.RespMessage), 'a', ' ', 'r', 'a', 't', 'h', 0x00}
	if !bytes.Equal(conn.written.Bytes(), expected) {
		t.Errorf("Expected %v, got %v", expected, conn.written.Bytes())
	}

	var resp serializer.Response
	if res := serializer.DecodeResponse(conn.written.Bytes(), &resp); res != serializer.ResultOK {
		t.Errorf("Truncated response is not decodable: %s", res)
	}
}

// TestClientBufferRequestResponseCycle runs two requests over one connection
func TestClientBufferRequestResponseCycle(t *testing.T) {
	first := encode(t, serializer.Request{Op: common.OpLookup, Record: store.SessionRecord{Key: []byte("one")}})
	second := encode(t, serializer.Request{Op: common.OpLookup, Record: store.SessionRecord{Key: []byte("two")}})

	conn := &fakeConn{chunks: [][]byte{first, nil, second}, writeBudget: -1}
	cb := NewClientBuffer(conn, common.MaxMessageSize)

	for _, key := range []string{"one", "two"} {
		if cb.Operation() {
			t.Fatalf("Unexpected finish: %v", cb.Err())
		}
		if cb.Status() != serializer.StateComplete {
			t.Fatalf("Expected %s, got %s", serializer.StateComplete, cb.Status())
		}
		if got := string(cb.Request().Record.Key); got != key {
			t.Fatalf("Expected key %q, got %q", key, got)
		}

		if err := cb.SendError("not found"); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
		if cb.Status() != serializer.StateComplete {
			t.Fatalf("Expected response to be flushed")
		}
		cb.InputMode()
	}

	if cb.Request().Record.Key != nil {
		t.Errorf("Expected request to be reset by InputMode")
	}
}
