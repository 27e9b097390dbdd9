package serializer

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
)

// TestWriterLittleEndian checks the byte layout of integer and time fields
func TestWriterLittleEndian(t *testing.T) {
	buf := make([]byte, 32)
	w := NewWriter(buf)

	if !w.PutInt32(common.FieldID, 0x01020304) {
		t.Fatalf("PutInt32 failed")
	}
	if !w.PutTime(common.FieldExpire, 1700000000) {
		t.Fatalf("PutTime failed")
	}
	if !w.PutInt32(common.FieldID, -2) {
		t.Fatalf("PutInt32 failed")
	}

	expected := []byte{
		0x01, 0x04, 0x03, 0x02, 0x01,
		0x04, 0x00, 0xf1, 0x53, 0x65, 0x00, 0x00, 0x00, 0x00,
		0x01, 0xfe, 0xff, 0xff, 0xff,
	}
	if !bytes.Equal(w.Bytes(), expected) {
		t.Errorf("Unexpected encoding:\nExpected: %v\nGot:      %v", expected, w.Bytes())
	}
}

// TestWriterOverflow tests that a failing write leaves the buffer untouched
func TestWriterOverflow(t *testing.T) {
	testCases := []struct {
		name  string
		size  int
		write func(w *Writer) bool
	}{
		{"String", 4, func(w *Writer) bool { return w.PutString(common.FieldKey, []byte("abc")) }},
		{"Int32", 4, func(w *Writer) bool { return w.PutInt32(common.FieldID, 1) }},
		{"Time", 8, func(w *Writer) bool { return w.PutTime(common.FieldExpire, 1) }},
		{"End", 0, func(w *Writer) bool { return w.PutEnd() }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter(make([]byte, tc.size))
			if tc.write(w) {
				t.Fatalf("Expected write to fail")
			}
			if w.Len() != 0 {
				t.Errorf("Expected nothing to be written, got %d bytes", w.Len())
			}
		})
	}

	// exact fit
	w := NewWriter(make([]byte, 5))
	if !w.PutString(common.FieldKey, []byte("abc")) {
		t.Errorf("Expected string to fit exactly")
	}
	if w.Remaining() != 0 {
		t.Errorf("Expected no remaining space, got %d", w.Remaining())
	}
}

// TestCursorIncomplete tests that incomplete reads don't move the cursor
func TestCursorIncomplete(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"Empty", []byte{}},
		{"TagOnly", []byte{byte(common.FieldUser)}},
		{"UnterminatedString", []byte{byte(common.FieldUser), 'a', 'l'}},
		{"ShortInt", []byte{byte(common.FieldID), 1, 0, 0}},
		{"ShortTime", []byte{byte(common.FieldExpire), 1, 0, 0, 0, 0, 0, 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var rec store.SessionRecord
			c := NewCursor(tc.data, 0)
			if res := c.ReadRecordField(&rec); res != ResultIncomplete {
				t.Fatalf("Expected %s, got %s", ResultIncomplete, res)
			}
			if c.Pos() != 0 {
				t.Errorf("Cursor moved to %d", c.Pos())
			}
			if !rec.Equal(&store.SessionRecord{}) {
				t.Errorf("Record was modified: %+v", rec)
			}
		})
	}
}

// TestCursorUnknownTag tests that an unknown tag is an error, never incomplete
func TestCursorUnknownTag(t *testing.T) {
	var rec store.SessionRecord

	for _, data := range [][]byte{{0x42}, {0x42, 'x', 0}, {byte(common.FieldTransSrc), 'a', 0}} {
		c := NewCursor(data, 0)
		if res := c.ReadRecordField(&rec); res != ResultError {
			t.Errorf("Expected %s for %v, got %s", ResultError, data, res)
		}
		if c.Pos() != 0 {
			t.Errorf("Cursor moved to %d for %v", c.Pos(), data)
		}
	}

	// transfer fields are valid in requests
	var req Request
	c := NewCursor([]byte{byte(common.FieldTransSrc), 'a', 0}, 0)
	if res := c.ReadRequestField(&req); res != ResultOK {
		t.Fatalf("Expected %s, got %s", ResultOK, res)
	}
	if string(req.TransferSrc) != "a" || c.Pos() != 3 {
		t.Errorf("Unexpected result: src=%q pos=%d", req.TransferSrc, c.Pos())
	}
}

// TestCursorReadString tests string reads and their presence semantics
func TestCursorReadString(t *testing.T) {
	data := []byte{byte(common.FieldUser), 0, byte(common.FieldDisplay), 'B', 'o', 'b', 0}
	c := NewCursor(data, 0)

	var rec store.SessionRecord
	if res := c.ReadRecordField(&rec); res != ResultOK {
		t.Fatalf("Expected %s, got %s", ResultOK, res)
	}
	if res := c.ReadRecordField(&rec); res != ResultOK {
		t.Fatalf("Expected %s, got %s", ResultOK, res)
	}

	if rec.Username == nil || len(rec.Username) != 0 {
		t.Errorf("Expected present empty username, got %#v", rec.Username)
	}
	if string(rec.DisplayName) != "Bob" {
		t.Errorf("Expected display name 'Bob', got %q", rec.DisplayName)
	}
	if c.Remaining() != 0 {
		t.Errorf("Expected all bytes to be consumed, %d remain", c.Remaining())
	}

	// decoded strings reference the source buffer
	data[4] = 'X'
	if string(rec.DisplayName) != "BXb" {
		t.Errorf("Expected decoded string to reference the buffer, got %q", rec.DisplayName)
	}
}
