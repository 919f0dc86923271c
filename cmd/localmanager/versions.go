package localmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elastic/apm-integration-testing/internal/docker"
	"github.com/elastic/apm-integration-testing/internal/stack"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Print version (and build) numbers of each running service",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runVersions(cmd.Context()); err != nil {
			fmt.Printf("Versions failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

// runningContainer describes one localtesting container worth reporting.
type runningContainer struct {
	service string
	created string
}

func runVersions(ctx context.Context) error {
	ids, err := docker.ContainerIDs(ctx, "localtesting")
	if err != nil {
		return fmt.Errorf("make sure Docker is running before running this command: %w", err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no containers are running, start the stack before checking versions")
	}

	format := "{{ index .Config.Labels \"" + stack.VersionLabel + "\" }}\t{{ .Image }}\t{{ .Name }}"
	lines, err := docker.Inspect(ctx, format, ids...)
	if err != nil {
		return err
	}

	running := map[string]runningContainer{}
	for _, line := range lines {
		parts := strings.Split(line, "\t")
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		created, err := docker.Inspect(ctx, "{{ .Created }}", parts[1])
		if err != nil || len(created) == 0 {
			continue
		}
		name := parts[2]
		service := name[strings.LastIndex(name, "_")+1:]
		running[service] = runningContainer{
			service: service,
			created: strings.SplitN(created[0], ".", 2)[0],
		}
	}
	if len(running) == 0 {
		return fmt.Errorf("no containers are running, start the stack before checking versions")
	}

	fmt.Println("Getting current version numbers for services...")

	dispatch := map[string]func(context.Context, runningContainer){
		"apm-server":     printAPMServerVersion,
		"elasticsearch":  printElasticsearchVersion,
		"kibana":         printKibanaVersion,
		"opbeans-node":   printOpbeansNodeVersion,
		"opbeans-python": printOpbeansPythonVersion,
		"opbeans-ruby":   printOpbeansRubyVersion,
	}
	for service, container := range running {
		printVersion, ok := dispatch[service]
		if !ok {
			fmt.Println("unknown version for", service)
			continue
		}
		printVersion(ctx, container)
	}
	return nil
}

// containerCommand runs a command inside a service's container, resolving
// the container through docker-compose first.
func containerCommand(ctx context.Context, service, command string) string {
	id, err := (docker.Compose{}).ContainerID(ctx, service)
	if err != nil || id == "" {
		fmt.Printf("\tContainer %q is not running or an error occurred\n", service)
		return ""
	}
	out, err := docker.Exec(ctx, id, command)
	if err != nil {
		fmt.Printf("\tContainer %q is not running or an error occurred\n", service)
		return ""
	}
	return out
}

func printElasticsearchVersion(ctx context.Context, c runningContainer) {
	fmt.Printf("\nElasticsearch (image built: %s UTC):\n", c.created)
	if version := containerCommand(ctx, "elasticsearch", "./bin/elasticsearch --version"); version != "" {
		fmt.Printf("\t%s\n", version)
	}
}

func printAPMServerVersion(ctx context.Context, c runningContainer) {
	fmt.Printf("\nAPM Server (image built: %s UTC):\n", c.created)
	if version := containerCommand(ctx, "apm-server", "apm-server version"); version != "" {
		fmt.Printf("\t%s\n", version)
	}
}

func printKibanaVersion(ctx context.Context, c runningContainer) {
	fmt.Printf("\nKibana (image built: %s UTC):\n", c.created)
	packageJSON := containerCommand(ctx, "kibana", "cat package.json")
	if packageJSON == "" {
		return
	}
	var pkg struct {
		Version string `json:"version"`
		Branch  string `json:"branch"`
		Build   struct {
			SHA    string `json:"sha"`
			Number int    `json:"number"`
		} `json:"build"`
	}
	if err := json.Unmarshal([]byte(packageJSON), &pkg); err != nil {
		fmt.Println("ERROR: Could not parse Kibana's package.json file.")
		return
	}
	fmt.Printf("\tVersion: %s\n", pkg.Version)
	fmt.Printf("\tBranch: %s\n", pkg.Branch)
	fmt.Printf("\tBuild SHA: %s\n", pkg.Build.SHA)
	fmt.Printf("\tBuild number: %d\n", pkg.Build.Number)
}

func printOpbeansNodeVersion(ctx context.Context, _ runningContainer) {
	fmt.Println("\nAgent version (in opbeans-node):")
	version := containerCommand(ctx, "opbeans-node", "npm list | grep elastic-apm-node")
	if version != "" {
		fmt.Printf("\t%s\n", strings.TrimPrefix(version, "+-- elastic-apm-node@"))
	}
}

func printOpbeansPythonVersion(ctx context.Context, _ runningContainer) {
	fmt.Println("\nAgent version (in opbeans-python):")
	version := containerCommand(ctx, "opbeans-python", "pip freeze | grep elastic-apm")
	if version != "" {
		fmt.Printf("\t%s\n", strings.TrimPrefix(version, "elastic-apm=="))
	}
}

func printOpbeansRubyVersion(ctx context.Context, _ runningContainer) {
	fmt.Println("\nAgent version (in opbeans-ruby):")
	version := containerCommand(ctx, "opbeans-ruby", "gem list | grep elastic-apm")
	if version != "" {
		fmt.Printf("\t%s\n", version)
	}
}
