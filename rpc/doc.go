// Package rpc implements the uniauth wire protocol spoken between web applications
// and the session daemon over a local stream socket.
//
// The package is organized into several subpackages:
//
//   - common: Opcodes, field tags, response kinds, configuration and logging setup.
//
//   - serializer: The field codec and the record grammar. Requests and responses
//     are a kind byte followed by tagged fields and terminated by an END marker.
//
//   - transport: The client engine (one lazily dialed connection that is replaced
//     when the daemon hung up) and the non-blocking, edge-triggered server event loop.
//
//   - client: The session client offering Lookup, Create, Commit and Transfer.
//
//   - server: The daemon, dispatching decoded requests to the session store.
package rpc
