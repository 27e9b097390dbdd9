package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the well-known daemon address. A leading '@' selects the
// Linux abstract socket namespace instead of a filesystem path.
const DefaultEndpoint = "@uniauth"

// DefaultGCInterval is the time between two runs of the session expiry collector
const DefaultGCInterval = time.Minute

// IsAbstractEndpoint reports whether the endpoint lives in the abstract namespace.
// For such addresses the leading '@' is rewritten to a null byte when the socket
// address is built and the address length is trimmed to the name's real length.
func IsAbstractEndpoint(endpoint string) bool {
	return len(endpoint) > 0 && endpoint[0] == '@'
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the uniauth daemon.
type ServerConfig struct {
	// Endpoint is the unix socket path (or @name for the abstract namespace)
	Endpoint string
	// SocketMode is applied to filesystem sockets, trust is conferred by these permissions
	SocketMode os.FileMode
	// MaxConnections limits concurrently open client connections (0 = unlimited)
	MaxConnections int

	// GCInterval is the time between runs of the session expiry collector
	GCInterval time.Duration

	// MetricsEndpoint is the http address serving /metrics (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Socket settings
	addSection("Daemon Socket")
	addField("Endpoint", c.Endpoint)
	if IsAbstractEndpoint(c.Endpoint) {
		addField("Namespace", "abstract")
	} else {
		addField("Namespace", "filesystem")
		addField("Socket Mode", fmt.Sprintf("%#o", c.SocketMode.Perm()))
	}
	if c.MaxConnections > 0 {
		addField("Max Connections", strconv.Itoa(c.MaxConnections))
	} else {
		addField("Max Connections", "unlimited")
	}

	// Store settings
	addSection("Session Store")
	addField("GC Interval", c.GCInterval.String())

	// Metrics
	addSection("Metrics")
	if c.MetricsEndpoint != "" {
		addField("Endpoint", c.MetricsEndpoint)
	} else {
		addField("Endpoint", "disabled")
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	// Endpoint is the daemon address (path or @name)
	Endpoint string
	// TimeoutSecond bounds one request/response exchange (0 = no deadline)
	TimeoutSecond int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	return sb.String()
}
