// Package common provides the constants, configuration structures and logging
// shared by the uniauth client library and the daemon.
//
// The package focuses on:
//   - The wire vocabulary: request opcodes, response kinds, field tags and the
//     maximum message size. Both ends must agree on these values bit for bit.
//   - Configuration structures for the daemon and the client
//   - Custom logging implementation integrated with Dragonboat's logger facade
//
// Key Components:
//
//   - Opcode: leading byte of a request (lookup, commit, create, transfer).
//
//   - ResponseKind: leading byte of a response (message, error, record).
//
//   - FieldTag: single byte preceding every field. Record fields and the
//     transfer-only fields live in disjoint ranges, FieldEnd closes a message.
//
//   - ServerConfig / ClientConfig: socket endpoint (filesystem path or @name for
//     the abstract namespace), permissions, limits, timeouts and log level.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger.ILogger so all packages share one format.
package common
