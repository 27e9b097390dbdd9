// Package unix implements the uniauth transport over Unix domain stream sockets.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting the client engine and the daemon event loop from package base.
//
// Key Components:
//
//   - clientConnector: Dials the daemon with a blocking connection
//
//   - serverConnector: Creates the non-blocking listening socket (Linux)
//
// Addressing:
//
//   - An endpoint starting with '@' lives in the Linux abstract namespace. The '@'
//     is replaced by a null byte and nothing is created on the filesystem.
//   - Any other endpoint is a filesystem path. A stale socket file is removed
//     before binding and the configured file mode is applied, so access to the
//     daemon is controlled by regular file permissions.
package unix
