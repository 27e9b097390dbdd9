package server

import (
	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
	"github.com/ValentinKolb/uniauth/rpc/transport"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle performs the operation requested by req on the store and sends
	// exactly one response via resp. Store failures are sent as error responses.
	Handle(req *serializer.Request, resp transport.IResponder, store store.ISessionStore)
}
