//go:build linux

package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	cmdUtil "github.com/ValentinKolb/uniauth/cmd/util"
	"github.com/ValentinKolb/uniauth/lib/store/lstore"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/server"
	"github.com/ValentinKolb/uniauth/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the uniauth daemon",
		Long:    `Start the uniauth daemon with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is UNIAUTH_<flag> (e.g. UNIAUTH_MAX_CONNECTIONS=512)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, common.DefaultEndpoint, cmdUtil.WrapString("The socket the daemon listens on. A leading @ selects the abstract namespace (e.g. @uniauth, /run/uniauth.sock)"))

	key = "socket-mode"
	ServeCmd.PersistentFlags().String(key, "0666", cmdUtil.WrapString("Octal file mode of the socket (ignored for the abstract namespace). Access to the daemon is granted by these permissions"))

	key = "max-connections"
	ServeCmd.PersistentFlags().Int(key, 1024, cmdUtil.WrapString("Maximum number of open client connections (0 = unlimited)"))

	key = "gc-interval"
	ServeCmd.PersistentFlags().Duration(key, common.DefaultGCInterval, cmdUtil.WrapString("Time between two runs of the collector removing expired sessions"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the http server exposing /metrics (e.g. localhost:9090, empty = disabled)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	mode, err := strconv.ParseUint(viper.GetString("socket-mode"), 8, 32)
	if err != nil || mode > 0o777 {
		return fmt.Errorf("invalid socket mode %q (expected octal permissions, e.g. 0660)", viper.GetString("socket-mode"))
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.SocketMode = os.FileMode(mode)
	serveCmdConfig.MaxConnections = viper.GetInt("max-connections")
	serveCmdConfig.GCInterval = viper.GetDuration("gc-interval")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if serveCmdConfig.MaxConnections < 0 {
		return fmt.Errorf("max-connections must not be negative")
	}

	return nil
}

// run starts the uniauth daemon and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := lstore.NewLocalStore(&lstore.Options{GCInterval: serveCmdConfig.GCInterval})
	defer s.Close()

	serv := server.NewRPCServer(
		*serveCmdConfig,
		unix.NewUnixServerTransport(serveCmdConfig.MaxConnections),
		s,
	)

	return serv.Serve(ctx)
}
