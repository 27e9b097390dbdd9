package session

import (
	"github.com/ValentinKolb/uniauth/cmd/util"
	"github.com/ValentinKolb/uniauth/rpc/client"
	"github.com/ValentinKolb/uniauth/rpc/transport/unix"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.SessionClient

	// SessionCommands represents the session command group
	SessionCommands = &cobra.Command{
		Use:                "session",
		Short:              "Perform session directory operations",
		PersistentPreRunE:  setupSessionClient,
		PersistentPostRunE: closeSessionClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the session command
	util.SetupRPCClientFlags(SessionCommands)

	// Add subcommands
	SessionCommands.AddCommand(lookupCmd)
	SessionCommands.AddCommand(createCmd)
	SessionCommands.AddCommand(commitCmd)
	SessionCommands.AddCommand(transferCmd)
	SessionCommands.AddCommand(perfTestCmd)
}

// setupSessionClient initializes the session client
func setupSessionClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	rpcClient, err = client.NewSessionClient(
		*util.GetClientConfig(),
		unix.NewUnixClientTransport(),
	)
	return err
}

func closeSessionClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}
