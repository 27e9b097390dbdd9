package transport

import (
	"context"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IResponder writes the response to the request that is currently handled.
// Exactly one Send method should be called per request. The message is
// truncated to the space left in the connection buffer.
type IResponder interface {
	// SendError queues an error response with the given text
	SendError(text string) error
	// SendMessage queues an informational (success) response with the given text
	SendMessage(text string) error
	// SendRecord queues a record response carrying key and the fields of rec
	SendRecord(key []byte, rec *store.SessionRecord) error
}

// ServerHandleFunc is called by a server transport for every complete request.
// The request references the connection buffer and is only valid during the call.
type ServerHandleFunc func(req *serializer.Request, resp IResponder)

// IRPCServerTransport is the interface for the daemon side transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler that is called for each complete request
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport and serves connections until ctx is done
	Listen(ctx context.Context, config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// ResponseReader is fed the bytes of a response received so far, starting at
// the first byte of the response. It returns true once the response is complete
// and an error if the bytes can never form a valid response.
type ResponseReader func(buf []byte) (complete bool, err error)

// IRPCClientTransport is the interface for the client side transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send writes one encoded request and reads until recv reports a complete response
	Send(req []byte, recv ResponseReader) error
	// Close closes the transport connection
	Close() error
}
