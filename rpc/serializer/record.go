package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
)

// --------------------------------------------------------------------------
// Message Structures
// --------------------------------------------------------------------------

// Request is a decoded (or to be encoded) request message.
// Which fields are used depends on the opcode:
//   - lookup: Record.Key
//   - commit, create: Record
//   - transfer: TransferSrc, TransferDst
type Request struct {
	Op          common.Opcode
	Record      store.SessionRecord
	TransferSrc []byte
	TransferDst []byte
}

// Reset clears the request so it can be reused for the next message.
func (r *Request) Reset() {
	*r = Request{}
}

// Response is a decoded response message. Exactly one of Text (message, error)
// or Record (record) is meaningful, selected by Kind.
type Response struct {
	Kind   common.ResponseKind
	Text   []byte
	Record store.SessionRecord
}

// --------------------------------------------------------------------------
// Parse State
// --------------------------------------------------------------------------

// State is the parse status of an incrementally received message.
// StateComplete and StateError are terminal for the current message.
type State uint8

const (
	StateUnset      State = iota // no byte of the message has been seen
	StateIncomplete              // opcode read, fields still missing
	StateComplete                // end marker reached
	StateError                   // protocol error, the connection must be dropped
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateIncomplete:
		return "incomplete"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Request Encoding (client side, strict)
// --------------------------------------------------------------------------

// EncodeRequest writes the complete request message into buf and returns its size.
// If the message doesn't fit, ErrOversizeMessage is returned and the content of
// buf must not be sent.
func EncodeRequest(buf []byte, req *Request) (int, error) {
	w := NewWriter(buf)
	if !w.PutByte(byte(req.Op)) {
		return 0, ErrOversizeMessage
	}

	var err error
	switch req.Op {
	case common.OpLookup:
		err = putStrings(w, common.FieldKey, req.Record.Key)
	case common.OpCommit, common.OpCreate:
		err = encodeRecord(w, &req.Record)
	case common.OpTransfer:
		if err = putStrings(w, common.FieldTransSrc, req.TransferSrc); err == nil {
			err = putStrings(w, common.FieldTransDst, req.TransferDst)
		}
	default:
		return 0, fmt.Errorf("cannot encode request with opcode %d", req.Op)
	}
	if err != nil {
		return 0, err
	}

	if !w.PutEnd() {
		return 0, ErrOversizeMessage
	}
	return w.Len(), nil
}

// EncodeRecord writes the fields of rec followed by the end marker.
// Fields are written in canonical order and only if present. Any failing
// field write aborts the whole record.
func EncodeRecord(w *Writer, rec *store.SessionRecord) error {
	if err := encodeRecord(w, rec); err != nil {
		return err
	}
	if !w.PutEnd() {
		return ErrOversizeMessage
	}
	return nil
}

func encodeRecord(w *Writer, rec *store.SessionRecord) error {
	if len(rec.Key) > 0 {
		if err := putStrings(w, common.FieldKey, rec.Key); err != nil {
			return err
		}
	}
	if rec.ID != 0 && !w.PutInt32(common.FieldID, rec.ID) {
		return ErrOversizeMessage
	}
	if rec.Username != nil {
		if err := putStrings(w, common.FieldUser, rec.Username); err != nil {
			return err
		}
	}
	if rec.DisplayName != nil {
		if err := putStrings(w, common.FieldDisplay, rec.DisplayName); err != nil {
			return err
		}
	}
	if rec.Expire != 0 && !w.PutTime(common.FieldExpire, rec.Expire) {
		return ErrOversizeMessage
	}
	if rec.Redirect != nil {
		if err := putStrings(w, common.FieldRedirect, rec.Redirect); err != nil {
			return err
		}
	}
	if rec.Tag != nil {
		if err := putStrings(w, common.FieldRecordTag, rec.Tag); err != nil {
			return err
		}
	}
	return nil
}

func putStrings(w *Writer, tag common.FieldTag, s []byte) error {
	if err := checkString(s); err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}
	if !w.PutString(tag, s) {
		return ErrOversizeMessage
	}
	return nil
}

// --------------------------------------------------------------------------
// Request Parsing (daemon side, incremental)
// --------------------------------------------------------------------------

// ParseRequest continues parsing the request contained in buf at pos.
// buf holds every byte received for the message so far, pos and state are the
// values returned by the previous call (0 and StateUnset for a new message).
//
// The returned position points at the start of the first incomplete field, so
// the next call resumes exactly there once more bytes have been appended.
// Decoded strings reference buf.
func ParseRequest(buf []byte, pos int, state State, req *Request) (int, State) {
	if pos >= len(buf) || state == StateComplete || state == StateError {
		return pos, state
	}

	// Read the opcode if we haven't already
	if state == StateUnset {
		op := common.Opcode(buf[pos])
		if !op.IsValid() {
			return pos, StateError
		}
		req.Op = op
		pos++
		state = StateIncomplete
	}

	c := NewCursor(buf, pos)
	for c.Remaining() > 0 {
		if tag, _ := c.Peek(); common.FieldTag(tag) == common.FieldEnd {
			c.Consume(1)
			return c.Pos(), StateComplete
		}

		switch c.ReadRequestField(req) {
		case ResultIncomplete:
			return c.Pos(), StateIncomplete
		case ResultError:
			return c.Pos(), StateError
		}
	}

	return c.Pos(), state
}

// --------------------------------------------------------------------------
// Response Decoding (client side)
// --------------------------------------------------------------------------

// DecodeResponse recognizes and decodes the response held in buf.
// The first byte selects the kind: message and error carry one terminated
// string, record carries fields up to the end marker. Any other leading byte
// or an unknown field tag is a protocol error.
func DecodeResponse(buf []byte, resp *Response) Result {
	if len(buf) == 0 {
		return ResultIncomplete
	}

	kind := common.ResponseKind(buf[0])
	c := NewCursor(buf, 1)

	switch kind {
	case common.RespMessage, common.RespError:
		text, res := c.ReadString()
		if res != ResultOK {
			return res
		}
		*resp = Response{Kind: kind, Text: text}
		return ResultOK

	case common.RespRecord:
		var rec store.SessionRecord
		for c.Remaining() > 0 {
			if tag, _ := c.Peek(); common.FieldTag(tag) == common.FieldEnd {
				*resp = Response{Kind: kind, Record: rec}
				return ResultOK
			}
			if res := c.ReadRecordField(&rec); res != ResultOK {
				return res
			}
		}
		return ResultIncomplete

	default:
		return ResultError
	}
}

// --------------------------------------------------------------------------
// Response Encoding (daemon side, truncating)
// --------------------------------------------------------------------------

// PutResponseText writes a message or error response into dst and returns the
// number of bytes written. The text is shortened to the available space, the
// terminator is kept whenever at least two bytes are available.
func PutResponseText(dst []byte, kind common.ResponseKind, text string) int {
	if len(dst) == 0 {
		return 0
	}
	dst[0] = byte(kind)
	if len(dst) == 1 {
		return 1
	}

	room := len(dst) - 2
	body := cutAtNull([]byte(text))
	if len(body) > room {
		body = body[:room]
	}
	n := 1 + copy(dst[1:], body)
	dst[n] = 0
	return n + 1
}

// PutResponseRecord writes a record response into dst and returns the number of
// bytes written. Fields are written in canonical order while they fit, the first
// field that doesn't fit is omitted together with all following fields. One byte
// is reserved so the end marker is always written. Nothing is written if dst
// can't hold at least the kind and the end marker.
//
// Presence rules follow the daemon's view of a record: the key is written if
// non-nil, the id only if positive and the expire time if non-negative.
func PutResponseRecord(dst []byte, key []byte, rec *store.SessionRecord) int {
	if len(dst) < 2 {
		return 0
	}

	w := truncWriter{buf: dst[:len(dst)-1]}
	w.putByte(byte(common.RespRecord))

	if key != nil {
		w.putString(common.FieldKey, key)
	}
	if rec.ID > 0 {
		w.putInt32(common.FieldID, rec.ID)
	}
	if rec.Username != nil {
		w.putString(common.FieldUser, rec.Username)
	}
	if rec.DisplayName != nil {
		w.putString(common.FieldDisplay, rec.DisplayName)
	}
	if rec.Expire >= 0 {
		w.putTime(common.FieldExpire, rec.Expire)
	}
	if rec.Redirect != nil {
		w.putString(common.FieldRedirect, rec.Redirect)
	}
	if rec.Tag != nil {
		w.putString(common.FieldRecordTag, rec.Tag)
	}

	dst[w.n] = byte(common.FieldEnd)
	return w.n + 1
}

// truncWriter writes whole fields until the first one doesn't fit
type truncWriter struct {
	buf  []byte
	n    int
	full bool
}

func (w *truncWriter) fits(size int) bool {
	if w.full || len(w.buf)-w.n < size {
		w.full = true
		return false
	}
	return true
}

func (w *truncWriter) putByte(b byte) {
	if w.fits(1) {
		w.buf[w.n] = b
		w.n++
	}
}

func (w *truncWriter) putString(tag common.FieldTag, s []byte) {
	s = cutAtNull(s)
	if w.fits(len(s) + 2) {
		w.buf[w.n] = byte(tag)
		w.n++
		w.n += copy(w.buf[w.n:], s)
		w.buf[w.n] = 0
		w.n++
	}
}

func (w *truncWriter) putInt32(tag common.FieldTag, v int32) {
	if w.fits(1 + common.IntSize) {
		w.buf[w.n] = byte(tag)
		binary.LittleEndian.PutUint32(w.buf[w.n+1:], uint32(v))
		w.n += 1 + common.IntSize
	}
}

func (w *truncWriter) putTime(tag common.FieldTag, v int64) {
	if w.fits(1 + common.TimeSize) {
		w.buf[w.n] = byte(tag)
		binary.LittleEndian.PutUint64(w.buf[w.n+1:], uint64(v))
		w.n += 1 + common.TimeSize
	}
}

// cutAtNull returns the prefix of s up to the first zero byte
func cutAtNull(s []byte) []byte {
	if i := bytes.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}
