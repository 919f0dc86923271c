package localmanager

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elastic/apm-integration-testing/internal/docker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the container status for each running service",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Status for all services:")
		fmt.Println()
		if err := (docker.Compose{}).PS(cmd.Context()); err != nil {
			fmt.Printf("Status failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop all running services and their containers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Stopping all stack services..")
		fmt.Println()
		if err := (docker.Compose{}).Stop(cmd.Context()); err != nil {
			fmt.Printf("Stop failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
}
