package localmanager

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/elastic/apm-integration-testing/internal/compose"
	"github.com/elastic/apm-integration-testing/internal/docker"
	"github.com/elastic/apm-integration-testing/internal/images"
	"github.com/elastic/apm-integration-testing/internal/stack"
)

var startCmd = &cobra.Command{
	Use:   "start <stack-version>",
	Short: "Start the local testing stack",
	Long: "Generates docker-compose.yml for the selected services and brings them up.\n" +
		"Known stack versions: " + strings.Join(stack.SupportedAliases(), " / ") +
		"; anything else is used verbatim, e.g. 6.2.3.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStart(cmd, args[0]); err != nil {
			fmt.Printf("Start failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	registerStartFlags(startCmd.Flags())

	for _, def := range stack.Catalog() {
		if !def.SideCar {
			startCmd.MarkFlagsMutuallyExclusive("with-"+def.Name, "no-"+def.Name)
		}
	}
	startCmd.MarkFlagsMutuallyExclusive("bc", "release", "snapshot")
}

// registerStartFlags declares the full start flag surface: the generated
// per-service flags from the catalog plus the stack-wide switches.
func registerStartFlags(flags *pflag.FlagSet) {
	for _, def := range stack.Catalog() {
		if !def.SideCar {
			flags.Bool("with-"+def.Name, def.Default, "enable "+def.Name)
			flags.Bool("no-"+def.Name, !def.Default, "disable "+def.Name)
		}
		if def.DefaultPort != 0 {
			flags.Int(def.Name+"-port", def.DefaultPort, def.Name+" service port")
		}
		if def.Stack {
			flags.String(def.Name+"-version", "", def.Name+" version override")
			flags.String(def.Name+"-bc", "", def.Name+" build candidate override")
			flags.Bool(def.Name+"-oss", false, def.Name+" oss override")
			flags.Bool(def.Name+"-release", false, def.Name+" release override")
			flags.Bool(def.Name+"-snapshot", false, def.Name+" snapshot override")
		}
	}

	flags.String("apm-server-build", "", "build apm-server from a git repo[@branch], eg https://github.com/elastic/apm-server.git@v2")
	flags.String("apm-server-output", "elasticsearch", "apm-server output: "+strings.Join(stack.APMServerOutputs, ", "))
	flags.Int("apm-server-count", 1, "apm-server count; >1 adds a load balancer service to round robin traffic between servers")
	flags.Int("apm-server-monitor-port", 6060, "apm-server monitor port")
	flags.Bool("no-apm-server-dashboards", false, "skip loading apm-server dashboards (setup.dashboards.enabled=false)")

	flags.String("rum-agent-repo", "elastic/apm-agent-js-base", "rum agent repo")
	flags.String("rum-agent-branch", "master", "rum agent branch")
	flags.String("nodejs-agent-package", "elastic-apm-node", "nodejs agent package")
	flags.String("python-agent-package", "elastic-apm", "python agent package")
	flags.String("ruby-agent-version", "latest", "ruby agent version")
	flags.String("ruby-agent-version-state", "release", "ruby agent version state")

	for _, name := range []string{"opbeans-java", "opbeans-node", "opbeans-python", "opbeans-ruby"} {
		flags.String(name+"-local-repo", ".", "local repo mounted into "+name)
		flags.String(name+"-service-name", name, name+" service name")
	}
	for _, name := range []string{"opbeans-go", "opbeans-java", "opbeans-node", "opbeans-python", "opbeans-ruby"} {
		flags.Bool("no-"+name+"-loadgen", false, "disable load generator for "+name)
		flags.Int(name+"-loadgen-rpm", 100, "RPM of load that should be generated for "+name)
	}
	flags.String("opbeans-rum-backend-service", "opbeans-node", "backend service for opbeans-rum")
	flags.String("opbeans-rum-backend-port", "3000", "backend port for opbeans-rum")
	flags.String("opbeans-apm-server-url", "http://apm-server:8200", "server url to use for opbeans services")
	flags.String("opbeans-apm-js-server-url", "http://apm-server:8200", "server url to use for the opbeans frontend")

	flags.String("bc", "", "ID of the build candidate, e.g. 37b864a0")
	flags.Bool("release", false, "use released version")
	flags.Bool("snapshot", false, "use snapshot version")
	flags.Bool("oss", false, "use oss container images")
	flags.Bool("all", false, "run all opbeans services")
	flags.Bool("skip-download", false, "skip the download of fresh images and use current ones")
	flags.String("docker-compose-path", "docker-compose.yml", "path to docker-compose.yml, - for stdout")
	flags.String("image-cache-dir", ".images", "image cache directory")
	flags.Bool("build-parallel", false, "build images in parallel")
	flags.Bool("force-build", false, "force build of any images without docker cache")
	flags.Bool("append", false, "do not stop running services")
}

// buildOptions turns the parsed flag set into the value-typed options the
// stack package works with. Per-service flags win over stack-wide flags,
// which win over built-in defaults.
func buildOptions(flags *pflag.FlagSet, stackVersion string) (stack.Options, error) {
	opts := stack.NewOptions(stackVersion)
	if registry := viper.GetString("registry"); registry != "" {
		opts.Registry = registry
	}

	for _, def := range stack.Catalog() {
		if !def.SideCar {
			if flags.Changed("with-" + def.Name) {
				opts.Enabled[def.Name] = true
			}
			if flags.Changed("no-" + def.Name) {
				opts.Enabled[def.Name] = false
			}
		}
		if def.DefaultPort != 0 {
			opts.Ports[def.Name], _ = flags.GetInt(def.Name + "-port")
		}
		if def.Stack {
			opts.Versions[def.Name], _ = flags.GetString(def.Name + "-version")
			opts.BuildCandidates[def.Name], _ = flags.GetString(def.Name + "-bc")
			opts.OSSFor[def.Name], _ = flags.GetBool(def.Name + "-oss")
			opts.ReleaseFor[def.Name], _ = flags.GetBool(def.Name + "-release")
			opts.SnapshotFor[def.Name], _ = flags.GetBool(def.Name + "-snapshot")
		}
	}

	opts.BuildCandidate, _ = flags.GetString("bc")
	opts.Release, _ = flags.GetBool("release")
	opts.Snapshot, _ = flags.GetBool("snapshot")
	opts.OSS, _ = flags.GetBool("oss")
	opts.All, _ = flags.GetBool("all")
	opts.SkipDownload, _ = flags.GetBool("skip-download")
	opts.ComposePath, _ = flags.GetString("docker-compose-path")
	opts.ImageCacheDir, _ = flags.GetString("image-cache-dir")
	opts.BuildParallel, _ = flags.GetBool("build-parallel")
	opts.ForceBuild, _ = flags.GetBool("force-build")
	opts.Append, _ = flags.GetBool("append")

	opts.APMServer.Build, _ = flags.GetString("apm-server-build")
	opts.APMServer.Output, _ = flags.GetString("apm-server-output")
	opts.APMServer.Count, _ = flags.GetInt("apm-server-count")
	opts.APMServer.MonitorPort, _ = flags.GetInt("apm-server-monitor-port")
	noDashboards, _ := flags.GetBool("no-apm-server-dashboards")
	opts.APMServer.Dashboards = !noDashboards
	if !slices.Contains(stack.APMServerOutputs, opts.APMServer.Output) {
		return opts, fmt.Errorf("invalid --apm-server-output %q, expected one of %s",
			opts.APMServer.Output, strings.Join(stack.APMServerOutputs, ", "))
	}
	if opts.APMServer.Count < 1 {
		return opts, fmt.Errorf("invalid --apm-server-count %d", opts.APMServer.Count)
	}

	opts.Agents.RUMRepo, _ = flags.GetString("rum-agent-repo")
	opts.Agents.RUMBranch, _ = flags.GetString("rum-agent-branch")
	opts.Agents.NodePackage, _ = flags.GetString("nodejs-agent-package")
	opts.Agents.PythonPackage, _ = flags.GetString("python-agent-package")
	opts.Agents.RubyVersion, _ = flags.GetString("ruby-agent-version")
	opts.Agents.RubyVersionState, _ = flags.GetString("ruby-agent-version-state")

	opts.Opbeans.ServerURL, _ = flags.GetString("opbeans-apm-server-url")
	opts.Opbeans.JSServerURL, _ = flags.GetString("opbeans-apm-js-server-url")
	opts.Opbeans.RUMBackend, _ = flags.GetString("opbeans-rum-backend-service")
	opts.Opbeans.RUMBackendPort, _ = flags.GetString("opbeans-rum-backend-port")
	for _, name := range []string{"opbeans-java", "opbeans-node", "opbeans-python", "opbeans-ruby"} {
		opts.Opbeans.LocalRepos[name], _ = flags.GetString(name + "-local-repo")
		opts.Opbeans.ServiceNames[name], _ = flags.GetString(name + "-service-name")
	}
	for _, name := range []string{"opbeans-go", "opbeans-java", "opbeans-node", "opbeans-python", "opbeans-ruby"} {
		opts.Opbeans.NoLoadgen[name], _ = flags.GetBool("no-" + name + "-loadgen")
		opts.Opbeans.LoadgenRPM[name], _ = flags.GetInt(name + "-loadgen-rpm")
	}

	return opts, nil
}

func runStart(cmd *cobra.Command, stackVersion string) error {
	ctx := cmd.Context()

	// pick up agent version variables destined for the generated containers
	_ = godotenv.Load()

	opts, err := buildOptions(cmd.Flags(), stackVersion)
	if err != nil {
		return err
	}

	services := stack.Selected(opts)

	// docker load images if necessary, usually only for build candidates
	loaded := map[string]string{}
	for _, service := range services {
		if dl, ok := service.(stack.ImageDownloader); ok {
			if url := dl.ImageDownloadURL(); url != "" {
				loaded[service.Name()] = url
			}
		}
	}
	if !opts.SkipDownload && len(loaded) > 0 {
		urls := make([]string, 0, len(loaded))
		for _, url := range loaded {
			if !slices.Contains(urls, url) {
				urls = append(urls, url)
			}
		}
		if err := images.NewPrefetcher(opts.ImageCacheDir).Fetch(ctx, urls); err != nil {
			return fmt.Errorf("errors while downloading: %w", err)
		}
	}

	doc := compose.NewDocument()
	for _, service := range services {
		for name, fragment := range service.Render() {
			if err := doc.Add(name, fragment); err != nil {
				return err
			}
		}
	}
	if err := doc.Write(opts.ComposePath); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.ComposePath, err)
	}
	if opts.ComposePath == "-" {
		return nil
	}
	if err := compose.Validate(ctx, opts.ComposePath); err != nil {
		return err
	}

	fmt.Println("Starting stack services..")
	dc := docker.Compose{File: opts.ComposePath}

	// always build if possible, should be quick for rebuilds
	if build := doc.BuildServices(); len(build) > 0 {
		if err := dc.Build(ctx, build, opts.ForceBuild, opts.BuildParallel); err != nil {
			return err
		}
	}

	// pull everything that runs a stock image and was not just loaded
	var pull []string
	for _, name := range doc.ImageServices() {
		if _, ok := loaded[name]; !ok {
			pull = append(pull, name)
		}
	}
	if len(pull) > 0 {
		if err := dc.Pull(ctx, pull); err != nil {
			return err
		}
	}

	return dc.Up(ctx)
}
