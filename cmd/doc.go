// Package cmd implements the command-line interface of uniauth. It provides
// a hierarchical command structure for running the daemon and for talking to
// it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the uniauth daemon
//   - session: Client commands (lookup, create, commit, transfer, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See uniauth -help for a list of all commands.
package cmd
