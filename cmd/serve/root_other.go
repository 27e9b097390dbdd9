//go:build !linux

package serve

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// ServeCmd is a placeholder, the daemon event loop is built on epoll
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the uniauth daemon (linux only)",
	RunE: func(_ *cobra.Command, _ []string) error {
		return fmt.Errorf("the uniauth daemon is not supported on %s", runtime.GOOS)
	},
}
