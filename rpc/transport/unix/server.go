//go:build linux

package unix

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/transport"
	"github.com/ValentinKolb/uniauth/rpc/transport/base"
	"golang.org/x/sys/unix"
)

// listenBacklog is the queue length for pending connections
const listenBacklog = unix.SOMAXCONN

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Listen(config common.ServerConfig) (int, error) {
	endpoint := config.Endpoint
	abstract := common.IsAbstractEndpoint(endpoint)

	// Remove existing socket file if it exists
	if !abstract {
		if err := os.RemoveAll(endpoint); err != nil {
			return -1, fmt.Errorf("failed to remove existing socket: %v", err)
		}
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("failed to create Unix socket: %v", err)
	}

	// SockaddrUnix rewrites a leading '@' to a null byte and trims the address length
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: endpoint}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("failed to bind Unix socket %s: %v", endpoint, err)
	}

	// Trust is conferred by the file permissions of the socket
	if !abstract && config.SocketMode != 0 {
		if err := os.Chmod(endpoint, config.SocketMode.Perm()); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("failed to set socket mode: %v", err)
		}
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("failed to listen on Unix socket %s: %v", endpoint, err)
	}

	return fd, nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixServerTransport creates a new Unix server transport that serves at most
// maxConnections clients at once (0 = unlimited)
func NewUnixServerTransport(maxConnections int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, maxConnections)
}
