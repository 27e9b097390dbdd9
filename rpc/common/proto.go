package common

// --------------------------------------------------------------------------
// Protocol Limits
// --------------------------------------------------------------------------

const (
	// MaxMessageSize is the upper bound for a complete request or response
	// message (opcode, fields and end marker). Client and daemon share it.
	MaxMessageSize = 4096

	// IntSize is the wire size of an integer field value (little endian)
	IntSize = 4
	// TimeSize is the wire size of a time field value (little endian)
	TimeSize = 8
)

// --------------------------------------------------------------------------
// Request Opcodes
// --------------------------------------------------------------------------

// Opcode is the leading byte of a request message.
type Opcode uint8

const (
	OpLookup   Opcode = iota // Look up a session by key
	OpCommit                 // Update an existing session
	OpCreate                 // Create a new session
	OpTransfer               // Transfer identity from one session to another

	opTop // first invalid request opcode
)

// IsValid reports whether the opcode names a known request.
func (o Opcode) IsValid() bool {
	return o < opTop
}

// String returns the string representation of an Opcode.
func (o Opcode) String() string {
	switch o {
	case OpLookup:
		return "lookup"
	case OpCommit:
		return "commit"
	case OpCreate:
		return "create"
	case OpTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Response Kinds
// --------------------------------------------------------------------------

// ResponseKind is the leading byte of a response message.
// Responses use their own namespace: the same byte value means different
// things depending on the direction of the message.
type ResponseKind uint8

const (
	RespMessage ResponseKind = iota // Informational text, request succeeded
	RespError                       // Text, request failed
	RespRecord                      // Full or partial session record
)

// String returns the string representation of a ResponseKind.
func (k ResponseKind) String() string {
	switch k {
	case RespMessage:
		return "message"
	case RespError:
		return "error"
	case RespRecord:
		return "record"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Field Tags
// --------------------------------------------------------------------------

// FieldTag identifies the field that follows it in a message.
type FieldTag uint8

const (
	// Record fields

	FieldKey       FieldTag = 0x00 // terminated string
	FieldID        FieldTag = 0x01 // 4 byte little endian integer
	FieldUser      FieldTag = 0x02 // terminated string
	FieldDisplay   FieldTag = 0x03 // terminated string
	FieldExpire    FieldTag = 0x04 // 8 byte little endian time
	FieldRedirect  FieldTag = 0x05 // terminated string
	FieldRecordTag FieldTag = 0x06 // terminated string

	// Request only fields (transfer)

	FieldTransSrc FieldTag = 0x10 // terminated string
	FieldTransDst FieldTag = 0x11 // terminated string

	// FieldEnd terminates the field sequence of every message
	FieldEnd FieldTag = 0xff
)

// String returns the string representation of a FieldTag.
func (t FieldTag) String() string {
	switch t {
	case FieldKey:
		return "key"
	case FieldID:
		return "id"
	case FieldUser:
		return "user"
	case FieldDisplay:
		return "display"
	case FieldExpire:
		return "expire"
	case FieldRedirect:
		return "redirect"
	case FieldRecordTag:
		return "tag"
	case FieldTransSrc:
		return "transsrc"
	case FieldTransDst:
		return "transdst"
	case FieldEnd:
		return "end"
	default:
		return "unknown"
	}
}
