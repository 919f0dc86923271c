package localmanager

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elastic/apm-integration-testing/internal/docker"
	"github.com/elastic/apm-integration-testing/internal/stack"
)

var dashboardsCmd = &cobra.Command{
	Use:   "load-dashboards",
	Short: "Load APM dashboards into Kibana using APM Server",
	Long: "Loads APM dashboards into Kibana using APM Server. " +
		"APM Server, Elasticsearch, and Kibana must be running.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runLoadDashboards(cmd.Context()); err != nil {
			fmt.Printf("Loading dashboards failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(dashboardsCmd)
}

func runLoadDashboards(ctx context.Context) error {
	ids, err := docker.ContainerIDs(ctx, "kibana")
	if err != nil {
		return fmt.Errorf("make sure Docker is running before running this command: %w", err)
	}
	runningVersion := ""
	if len(ids) > 0 {
		versions, err := docker.Inspect(ctx, "{{ index .Config.Labels \""+stack.VersionLabel+"\" }}", ids...)
		if err != nil {
			return err
		}
		if len(versions) > 0 {
			runningVersion = versions[0]
		}
	}
	if runningVersion == "" {
		return fmt.Errorf("no kibana container is running, start the stack before importing dashboards")
	}

	fmt.Println("Loading Kibana dashboards using APM Server:")
	fmt.Println()
	return (docker.Compose{}).Run(ctx, "apm-server",
		"-e", "setup", "-E", "setup.kibana.host=kibana:5601")
}
