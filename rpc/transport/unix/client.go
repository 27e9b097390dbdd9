package unix

import (
	"net"

	"github.com/ValentinKolb/uniauth/rpc/transport"
	"github.com/ValentinKolb/uniauth/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

// Connect dials the daemon. A leading '@' addresses the abstract namespace.
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialUnix("unix", nil, &net.UnixAddr{Name: endpoint, Net: "unix"})
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a new Unix client transport
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
