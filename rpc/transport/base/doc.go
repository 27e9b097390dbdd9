// Package base provides the medium independent parts of the uniauth transport:
// the client RPC engine, the per-connection state machine of the daemon and the
// event loop that drives it. Protocol specific connectors (see package unix)
// plug into it via IClientConnector and IServerConnector.
//
// Key Components:
//
//   - clientTransport: Synchronous client engine with a pool of one connection.
//     Before each exchange the cached connection is polled without waiting; any
//     reported event means the daemon closed it (or sent something unexpected)
//     and the connection is replaced. A request is written in full and bytes are
//     read until the response is complete. Requests are never pipelined and a
//     failed exchange drops the connection, so the next call starts fresh.
//
//   - ClientBuffer: Daemon side state machine for one connection. It alternates
//     between an input phase (drain the socket, parse the request incrementally
//     from the saved cursor) and an output phase (flush the response, compact
//     unsent bytes to the front). A request that doesn't fit into the buffer is
//     a protocol error.
//
//   - serverTransport: Single threaded, edge-triggered epoll loop (Linux). Every
//     connection is registered for input, output and peer hang up. A readiness
//     notification runs the connection's state machine until it would block;
//     after a response is flushed the connection immediately switches back to
//     input, since the next request may already be waiting.
//
// Thread Safety:
//
//	The client transport serializes exchanges with a mutex. ClientBuffer and the
//	server transport are owned by the event loop goroutine and are not safe for
//	concurrent use.
package base
