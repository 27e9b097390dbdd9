package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/uniauth/cmd/serve"
	"github.com/ValentinKolb/uniauth/cmd/session"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "uniauth",
		Short: "single sign-on session directory",
		Long: fmt.Sprintf(`uniauth (v%s)

A single sign-on session directory. The daemon keeps the sessions of all
web applications on a host and serves them over a local unix socket.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of uniauth",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("uniauth v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(session.SessionCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
