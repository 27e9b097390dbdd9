package serializer

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
)

var (
	// ErrOversizeMessage is returned when a message does not fit into common.MaxMessageSize
	ErrOversizeMessage = errors.New("protocol message is too large")
	// ErrEmbeddedNull is returned when a string field contains a zero byte and can't be framed
	ErrEmbeddedNull = errors.New("string field contains a null byte")
)

// --------------------------------------------------------------------------
// Read Results
// --------------------------------------------------------------------------

// Result is the outcome of a decode step.
type Result uint8

const (
	// ResultIncomplete means more bytes are needed. Nothing was consumed.
	ResultIncomplete Result = iota
	// ResultOK means the value was decoded and the cursor advanced past it.
	ResultOK
	// ResultError means the bytes can never form a valid message.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultIncomplete:
		return "incomplete"
	case ResultOK:
		return "ok"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Cursor (decoding)
// --------------------------------------------------------------------------

// Cursor reads fields from a byte slice starting at a saved position.
// A read that returns ResultIncomplete or ResultError leaves the position unchanged.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor creates a cursor over buf positioned at pos.
func NewCursor(buf []byte, pos int) *Cursor {
	return &Cursor{buf: buf, pos: pos}
}

// Pos returns the current read position.
func (c *Cursor) Pos() int {
	return c.pos
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Peek returns the next byte without consuming it.
func (c *Cursor) Peek() (byte, bool) {
	if c.pos >= len(c.buf) {
		return 0, false
	}
	return c.buf[c.pos], true
}

// Consume advances the cursor by n bytes.
func (c *Cursor) Consume(n int) {
	c.pos += n
}

// ReadString reads a zero terminated string. The returned slice references the
// underlying buffer and excludes the terminator.
func (c *Cursor) ReadString() ([]byte, Result) {
	n := bytes.IndexByte(c.buf[c.pos:], 0)
	if n < 0 {
		return nil, ResultIncomplete
	}
	value := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n + 1
	return value, ResultOK
}

// ReadInt32 reads a 4 byte little endian integer.
func (c *Cursor) ReadInt32() (int32, Result) {
	if c.Remaining() < common.IntSize {
		return 0, ResultIncomplete
	}
	value := int32(binary.LittleEndian.Uint32(c.buf[c.pos:]))
	c.pos += common.IntSize
	return value, ResultOK
}

// ReadTime reads an 8 byte little endian time value.
func (c *Cursor) ReadTime() (int64, Result) {
	if c.Remaining() < common.TimeSize {
		return 0, ResultIncomplete
	}
	value := int64(binary.LittleEndian.Uint64(c.buf[c.pos:]))
	c.pos += common.TimeSize
	return value, ResultOK
}

// ReadRecordField reads one tagged record field into rec.
// An unknown tag is a protocol error regardless of how many bytes follow it.
func (c *Cursor) ReadRecordField(rec *store.SessionRecord) Result {
	return c.readField(rec, nil)
}

// ReadRequestField reads one tagged field of a request, this includes the
// record fields and the transfer fields.
func (c *Cursor) ReadRequestField(req *Request) Result {
	return c.readField(&req.Record, req)
}

func (c *Cursor) readField(rec *store.SessionRecord, req *Request) Result {
	tag, ok := c.Peek()
	if !ok {
		return ResultIncomplete
	}

	// work on a copy so an incomplete field doesn't move the caller's cursor
	sub := Cursor{buf: c.buf, pos: c.pos + 1}
	var res Result

	switch common.FieldTag(tag) {
	case common.FieldKey:
		rec.Key, res = readStringInto(&sub, rec.Key)
	case common.FieldID:
		var v int32
		if v, res = sub.ReadInt32(); res == ResultOK {
			rec.ID = v
		}
	case common.FieldUser:
		rec.Username, res = readStringInto(&sub, rec.Username)
	case common.FieldDisplay:
		rec.DisplayName, res = readStringInto(&sub, rec.DisplayName)
	case common.FieldExpire:
		var v int64
		if v, res = sub.ReadTime(); res == ResultOK {
			rec.Expire = v
		}
	case common.FieldRedirect:
		rec.Redirect, res = readStringInto(&sub, rec.Redirect)
	case common.FieldRecordTag:
		rec.Tag, res = readStringInto(&sub, rec.Tag)
	case common.FieldTransSrc:
		if req == nil {
			return ResultError
		}
		req.TransferSrc, res = readStringInto(&sub, req.TransferSrc)
	case common.FieldTransDst:
		if req == nil {
			return ResultError
		}
		req.TransferDst, res = readStringInto(&sub, req.TransferDst)
	default:
		return ResultError
	}

	if res == ResultOK {
		c.pos = sub.pos
	}
	return res
}

// readStringInto reads a string and keeps the previous value when the field is incomplete
func readStringInto(c *Cursor, prev []byte) ([]byte, Result) {
	v, res := c.ReadString()
	if res != ResultOK {
		return prev, res
	}
	return v, res
}

// --------------------------------------------------------------------------
// Writer (strict encoding)
// --------------------------------------------------------------------------

// Writer appends fields to a fixed-capacity buffer. Every Put method checks
// the remaining capacity first and returns false without writing on overflow.
type Writer struct {
	buf []byte
	n   int
}

// NewWriter creates a writer whose capacity is len(buf).
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.n
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.n]
}

// Remaining returns the free capacity.
func (w *Writer) Remaining() int {
	return len(w.buf) - w.n
}

// PutByte writes a single byte (opcode or response kind).
func (w *Writer) PutByte(b byte) bool {
	if w.Remaining() < 1 {
		return false
	}
	w.buf[w.n] = b
	w.n++
	return true
}

// PutString writes tag, the string bytes and a zero terminator.
func (w *Writer) PutString(tag common.FieldTag, s []byte) bool {
	if w.Remaining() < len(s)+2 {
		return false
	}
	w.buf[w.n] = byte(tag)
	w.n++
	w.n += copy(w.buf[w.n:], s)
	w.buf[w.n] = 0
	w.n++
	return true
}

// PutInt32 writes tag and a 4 byte little endian integer.
func (w *Writer) PutInt32(tag common.FieldTag, v int32) bool {
	if w.Remaining() < 1+common.IntSize {
		return false
	}
	w.buf[w.n] = byte(tag)
	binary.LittleEndian.PutUint32(w.buf[w.n+1:], uint32(v))
	w.n += 1 + common.IntSize
	return true
}

// PutTime writes tag and an 8 byte little endian time value.
func (w *Writer) PutTime(tag common.FieldTag, v int64) bool {
	if w.Remaining() < 1+common.TimeSize {
		return false
	}
	w.buf[w.n] = byte(tag)
	binary.LittleEndian.PutUint64(w.buf[w.n+1:], uint64(v))
	w.n += 1 + common.TimeSize
	return true
}

// PutEnd writes the end marker.
func (w *Writer) PutEnd() bool {
	return w.PutByte(byte(common.FieldEnd))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// checkString makes sure s can be framed as a zero terminated string
func checkString(s []byte) error {
	if bytes.IndexByte(s, 0) >= 0 {
		return ErrEmbeddedNull
	}
	return nil
}
