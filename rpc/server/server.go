package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
	"github.com/ValentinKolb/uniauth/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and the session store as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		unix.NewUnixServerTransport(config.MaxConnections),
//		lstore.NewLocalStore(&lstore.Options{GCInterval: config.GCInterval}),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	store store.ISessionStore,
) rpcServer {
	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return rpcServer{
		config:    config,
		transport: transport,
		store:     store,
		adapter:   NewSessionServerAdapter(),
	}
}

type rpcServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	store     store.ISessionStore
	adapter   IRPCServerAdapter
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req *serializer.Request, resp transport.IResponder) {
		s.adapter.Handle(req, resp, s.store)
	})
}

// Serve starts the RPC server and blocks until ctx is done or the transport fails.
// If a metrics endpoint is configured, the counters are served there as well.
func (s *rpcServer) Serve(ctx context.Context) error {
	if s.config.LogLevel != "" {
		if err := common.InitLoggers(s.config.LogLevel); err != nil {
			return err
		}
	}

	s.registerTransportHandler()

	if s.config.MetricsEndpoint != "" {
		stop, err := s.serveMetrics()
		if err != nil {
			return err
		}
		defer stop()
	}

	Logger.Infof("uniauth daemon ready")
	return s.transport.Listen(ctx, s.config)
}

// serveMetrics starts the http server exposing /metrics and returns a function stopping it
func (s *rpcServer) serveMetrics() (func(), error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	srv := &http.Server{
		Addr:              s.config.MetricsEndpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// fail early if the address can't be used
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("failed to start metrics server on %s: %w", s.config.MetricsEndpoint, err)
	case <-time.After(100 * time.Millisecond):
	}

	Logger.Infof("Serving metrics on http://%s/metrics", s.config.MetricsEndpoint)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Warningf("Failed to stop metrics server: %v", err)
		}
	}, nil
}
