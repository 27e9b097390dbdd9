// Package server implements the uniauth daemon on top of a server transport.
//
// Incoming requests are decoded by the transport and handed to an IRPCServerAdapter,
// which runs them against a store.ISessionStore and answers through the
// transport.IResponder of the connection:
//
//   - LOOKUP answers with a RECORD, or an ERROR when the session is unknown or expired.
//   - CREATE, COMMIT and TRANSFER answer with the MESSAGE "ok" or an ERROR
//     carrying the reason the store rejected the request.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:       "@uniauth",
//	  MaxConnections: 1024,
//	  GCInterval:     time.Minute,
//	  LogLevel:       "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  unix.NewUnixServerTransport(config.MaxConnections),
//	  lstore.NewLocalStore(&lstore.Options{GCInterval: config.GCInterval}),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// If ServerConfig.MetricsEndpoint is set, Serve also exposes the request and
// connection counters in the Prometheus text format on http://<endpoint>/metrics.
//
// Thread Safety:
//
//	Requests are handled one at a time by the event loop of the transport.
//	Serve should be called only once.
package server
