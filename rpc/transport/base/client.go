package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	// ErrTransport wraps failures of the connection to the daemon (dial, read, write)
	ErrTransport = errors.New("transport error")
	// ErrProtocol wraps responses from the daemon that are not correctly formatted
	ErrProtocol = errors.New("protocol error")
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single blocking connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport is a pool of one: a single cached connection that is reused
// for every exchange and replaced when it turns out to be stale.
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	mu   sync.Mutex // one exchange at a time, guards conn and buf
	conn net.Conn
	buf  [common.MaxMessageSize]byte
}

// -----------------------------------------------------------
// Transport Factory Method (used for unix)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

// Connect stores the configuration. The connection itself is established by the
// first Send and re-established whenever the cached one is stale.
func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.dropConnection()
	t.config = config

	Logger.Debugf("Using %s transport for endpoint %s", t.connector.GetName(), config.Endpoint)
	return nil
}

func (t *clientTransport) Send(req []byte, recv transport.ResponseReader) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.acquireConnection()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	// Bound the whole exchange if a timeout is configured
	var deadline time.Time
	if t.config.TimeoutSecond > 0 {
		deadline = time.Now().Add(time.Duration(t.config.TimeoutSecond) * time.Second)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		t.dropConnection()
		return fmt.Errorf("%w: failed to set deadline: %v", ErrTransport, err)
	}

	// The socket is blocking, a short write is an error
	if _, err := conn.Write(req); err != nil {
		t.dropConnection()
		return fmt.Errorf("%w: failed to write request: %v", ErrTransport, err)
	}

	// Read until the response is complete
	size := 0
	for {
		if size == len(t.buf) {
			t.dropConnection()
			return fmt.Errorf("%w: response exceeds %d bytes", ErrProtocol, len(t.buf))
		}

		n, err := conn.Read(t.buf[size:])
		size += n

		if n > 0 {
			complete, perr := recv(t.buf[:size])
			if perr != nil {
				t.dropConnection()
				return fmt.Errorf("%w: %v", ErrProtocol, perr)
			}
			if complete {
				return nil
			}
		}

		if errors.Is(err, io.EOF) {
			t.dropConnection()
			return fmt.Errorf("%w: connection closed by daemon", ErrTransport)
		}
		if err != nil {
			t.dropConnection()
			return fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
		}
	}
}

func (t *clientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acquireConnection returns the cached connection if it is still usable,
// otherwise a new connection is established and cached.
func (t *clientTransport) acquireConnection() (net.Conn, error) {
	if t.conn != nil {
		if !isStale(t.conn) {
			return t.conn, nil
		}
		Logger.Warningf("Connection to %s is stale, reconnecting", t.config.Endpoint)
		t.dropConnection()
	}

	if t.config.Endpoint == "" {
		return nil, fmt.Errorf("transport is not connected")
	}

	conn, err := t.connector.Connect(t.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", t.config.Endpoint, err)
	}

	t.conn = conn
	return conn, nil
}

// dropConnection closes and forgets the cached connection
func (t *clientTransport) dropConnection() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}
