//go:build linux

package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
	"github.com/ValentinKolb/uniauth/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"golang.org/x/sys/unix"
)

const (
	// epollWaitMs bounds how long the event loop sleeps before it checks the context again
	epollWaitMs = 100
	// maxEvents is the number of readiness events handled per wait
	maxEvents = 128
	// connEvents are the events every client connection is registered for
	connEvents = unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET
)

var (
	connectionsAccepted = metrics.GetOrCreateCounter("uniauth_connections_accepted_total")
	connectionsRejected = metrics.GetOrCreateCounter("uniauth_connections_rejected_total")
	connectionsClosed   = metrics.GetOrCreateCounter("uniauth_connections_closed_total")
	protocolErrors      = metrics.GetOrCreateCounter("uniauth_protocol_errors_total")
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a non-blocking listening socket and returns its descriptor
	Listen(config common.ServerConfig) (fd int, err error)

	// GetName returns the name of the transport type (e.g., "unix")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverConn is one accepted client connection
type serverConn struct {
	fd  int
	buf *ClientBuffer
}

// serverTransport implements an edge-triggered, single threaded event loop.
// Each connection is owned by the loop, so no locking is needed.
type serverTransport struct {
	connector      IServerConnector
	handler        transport.ServerHandleFunc
	maxConnections int
	epfd           int
	conns          map[int]*serverConn
}

// -----------------------------------------------------------
// Transport Factory Method
// -----------------------------------------------------------

// NewBaseServerTransport creates a new event loop server transport. maxConnections
// limits the number of open client connections (0 = unlimited).
func NewBaseServerTransport(connector IServerConnector, maxConnections int) transport.IRPCServerTransport {
	if maxConnections < 0 {
		maxConnections = 0
	}
	return &serverTransport{
		connector:      connector,
		maxConnections: maxConnections,
		epfd:           -1,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	// Create the listening socket using the connector
	lfd, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	defer unix.Close(lfd)

	t.epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("failed to create epoll instance: %w", err)
	}
	defer func() {
		unix.Close(t.epfd)
		t.epfd = -1
	}()

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(lfd)}
	if err := unix.EpollCtl(t.epfd, unix.EPOLL_CTL_ADD, lfd, &ev); err != nil {
		return fmt.Errorf("failed to register listener: %w", err)
	}

	t.conns = make(map[int]*serverConn)
	defer t.closeAll()

	Logger.Infof("Starting %s server on %s (max connections: %d)", t.connector.GetName(), config.Endpoint, t.maxConnections)

	events := make([]unix.EpollEvent, maxEvents)
	for {
		if ctx.Err() != nil {
			Logger.Infof("Stopping %s server on %s", t.connector.GetName(), config.Endpoint)
			return nil
		}

		n, err := unix.EpollWait(t.epfd, events, epollWaitMs)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("epoll wait failed: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == lfd {
				t.acceptAll(lfd)
				continue
			}
			if conn, ok := t.conns[fd]; ok {
				t.process(conn)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acceptAll accepts every pending connection (the listener is edge triggered)
func (t *serverTransport) acceptAll(lfd int) {
	for {
		fd, _, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return
		}
		if err != nil {
			Logger.Errorf("Accept error: %v", err)
			return
		}

		if t.maxConnections > 0 && len(t.conns) >= t.maxConnections {
			Logger.Warningf("Rejecting connection: limit of %d connections reached", t.maxConnections)
			connectionsRejected.Inc()
			unix.Close(fd)
			continue
		}

		// readiness that already exists is reported right after registration
		ev := unix.EpollEvent{Events: connEvents, Fd: int32(fd)}
		if err := unix.EpollCtl(t.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			Logger.Errorf("Failed to register connection: %v", err)
			unix.Close(fd)
			continue
		}

		t.conns[fd] = &serverConn{
			fd:  fd,
			buf: NewClientBuffer(&fdConn{fd: fd}, common.MaxMessageSize),
		}
		connectionsAccepted.Inc()
		Logger.Debugf("Accepted connection (fd %d, %d open)", fd, len(t.conns))
	}
}

// process drives the state machine of one connection until it has to wait for
// the next readiness notification
func (t *serverTransport) process(conn *serverConn) {
	for {
		if conn.buf.Operation() {
			t.closeConn(conn)
			return
		}

		if conn.buf.Mode() == ModeInput {
			if conn.buf.Status() != serializer.StateComplete {
				// the peer stopped sending before the request was complete,
				// no further readiness event will arrive for it
				if conn.buf.EOF() {
					t.closeConn(conn)
				}
				return
			}
			t.dispatch(conn)
			// flush the rest of the response or notice the peer is gone
			continue
		}

		if conn.buf.Status() != serializer.StateComplete {
			// wait until the socket is writable again
			return
		}

		// response sent, bytes of the next request may already be waiting
		conn.buf.InputMode()
	}
}

// dispatch passes a complete request to the handler and makes sure a response is queued
func (t *serverTransport) dispatch(conn *serverConn) {
	req := conn.buf.Request()
	Logger.Debugf("Handling %s request (fd %d)", req.Op, conn.fd)

	t.handler(req, conn.buf)

	if conn.buf.Mode() != ModeOutput {
		Logger.Errorf("Handler sent no response to %s request", req.Op)
		if err := conn.buf.SendError("internal error"); err != nil {
			Logger.Debugf("Failed to send error response: %v", err)
		}
	}
}

// closeConn removes a connection from the event loop and closes it
func (t *serverTransport) closeConn(conn *serverConn) {
	if conn.buf.Status() == serializer.StateError {
		protocolErrors.Inc()
		Logger.Warningf("Closing connection (fd %d): %v", conn.fd, conn.buf.Err())
	} else {
		Logger.Debugf("Connection closed by client (fd %d)", conn.fd)
	}

	// closing the descriptor removes it from the epoll set as well
	if err := unix.EpollCtl(t.epfd, unix.EPOLL_CTL_DEL, conn.fd, nil); err != nil {
		Logger.Debugf("Failed to deregister connection (fd %d): %v", conn.fd, err)
	}
	if err := conn.buf.Close(); err != nil {
		Logger.Debugf("Failed to close connection (fd %d): %v", conn.fd, err)
	}

	delete(t.conns, conn.fd)
	connectionsClosed.Inc()
}

// closeAll closes every open connection
func (t *serverTransport) closeAll() {
	for _, conn := range t.conns {
		t.closeConn(conn)
	}
}
