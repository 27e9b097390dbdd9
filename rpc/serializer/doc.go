// Package serializer implements the uniauth wire format shared by the client
// library and the daemon.
//
// Every message is a single leading byte (request opcode or response kind)
// followed by tagged fields and a terminating end marker:
//
//	[opcode][tag value]*[END]
//
// Field values are either zero terminated strings, 4 byte little endian integers
// or 8 byte little endian time values. There is no length prefix, a receiver
// learns that a message is complete only by reaching the end marker.
//
// The package is split in two layers:
//
//   - Field codec (field.go): Cursor reads single fields and reports one of
//     ResultIncomplete, ResultOK or ResultError. An incomplete read never moves
//     the cursor, so a decoder can stop, wait for more bytes and resume at the
//     same position. Writer appends fields to a fixed capacity buffer and
//     refuses any write that would overflow it.
//
//   - Record grammar (record.go): EncodeRequest builds complete requests on the
//     client side and fails with ErrOversizeMessage instead of emitting a partial
//     message. ParseRequest parses requests incrementally on the daemon side.
//     DecodeResponse decodes responses on the client side. PutResponseText and
//     PutResponseRecord build responses on the daemon side and truncate to the
//     space that is available.
//
// Thread Safety:
//
//	All functions are stateless. A Cursor or Writer must not be shared between
//	goroutines.
package serializer
