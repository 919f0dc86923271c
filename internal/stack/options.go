package stack

const defaultAPMServerURL = "http://apm-server:8200"

// Options carries every resolved command line choice for one invocation.
// It is built once by the start command and passed by value into each
// service constructor; services never see the flag machinery.
type Options struct {
	// Version is the concrete stack version, e.g. "6.3.3".
	Version  string
	Registry string

	All      bool
	OSS      bool
	Release  bool
	Snapshot bool
	// BuildCandidate is the staging build id, e.g. "37b864a0".
	BuildCandidate string

	SkipDownload  bool
	ImageCacheDir string
	ComposePath   string
	ForceBuild    bool
	BuildParallel bool
	Append        bool

	// Enabled holds the resolved --with-X / --no-X outcome per service.
	Enabled map[string]bool
	// Ports holds per-service external port overrides.
	Ports map[string]int

	// Per-service overrides of the stack-wide flavor flags; each falls
	// back to the stack-wide value when unset.
	Versions        map[string]string
	BuildCandidates map[string]string
	OSSFor          map[string]bool
	ReleaseFor      map[string]bool
	SnapshotFor     map[string]bool

	APMServer APMServerOptions
	Agents    AgentOptions
	Opbeans   OpbeansOptions
}

// APMServerOptions groups the apm-server specific switches.
type APMServerOptions struct {
	// Build requests building apm-server from a git repo[@branch]
	// instead of running the stock image.
	Build       string
	Output      string
	Count       int
	MonitorPort int
	Dashboards  bool
}

// AgentOptions groups the overrides for the agent sample applications.
type AgentOptions struct {
	RUMRepo          string
	RUMBranch        string
	NodePackage      string
	PythonPackage    string
	RubyVersion      string
	RubyVersionState string
}

// OpbeansOptions groups the switches shared by the opbeans applications.
type OpbeansOptions struct {
	ServerURL      string
	JSServerURL    string
	LocalRepos     map[string]string
	ServiceNames   map[string]string
	RUMBackend     string
	RUMBackendPort string
	NoLoadgen      map[string]bool
	LoadgenRPM     map[string]int
}

// NewOptions returns Options primed with the same defaults the start
// command registers on its flags, with every service enabled or disabled
// per its catalog definition.
func NewOptions(stackVersion string) Options {
	opts := Options{
		Version:         ResolveVersion(stackVersion),
		Registry:        DefaultRegistry,
		ImageCacheDir:   ".images",
		ComposePath:     "docker-compose.yml",
		Enabled:         map[string]bool{},
		Ports:           map[string]int{},
		Versions:        map[string]string{},
		BuildCandidates: map[string]string{},
		OSSFor:          map[string]bool{},
		ReleaseFor:      map[string]bool{},
		SnapshotFor:     map[string]bool{},
		APMServer: APMServerOptions{
			Output:      "elasticsearch",
			Count:       1,
			MonitorPort: 6060,
			Dashboards:  true,
		},
		Agents: AgentOptions{
			RUMRepo:          "elastic/apm-agent-js-base",
			RUMBranch:        "master",
			NodePackage:      "elastic-apm-node",
			PythonPackage:    "elastic-apm",
			RubyVersion:      "latest",
			RubyVersionState: "release",
		},
		Opbeans: OpbeansOptions{
			ServerURL:      defaultAPMServerURL,
			JSServerURL:    defaultAPMServerURL,
			LocalRepos:     map[string]string{},
			ServiceNames:   map[string]string{},
			RUMBackend:     "opbeans-node",
			RUMBackendPort: "3000",
			NoLoadgen:      map[string]bool{},
			LoadgenRPM:     map[string]int{},
		},
	}
	for _, def := range Catalog() {
		opts.Enabled[def.Name] = def.Default
		if def.DefaultPort != 0 {
			opts.Ports[def.Name] = def.DefaultPort
		}
	}
	return opts
}

// Resolution priority everywhere: per-service flag > stack-wide flag >
// built-in default.

func (o Options) versionFor(name string) string {
	if v := o.Versions[name]; v != "" {
		return v
	}
	return o.Version
}

func (o Options) portFor(name string, def int) int {
	if p := o.Ports[name]; p != 0 {
		return p
	}
	return def
}

func (o Options) buildCandidateFor(name string) string {
	if bc := o.BuildCandidates[name]; bc != "" {
		return bc
	}
	return o.BuildCandidate
}

func (o Options) ossFor(name string) bool      { return o.OSSFor[name] || o.OSS }
func (o Options) releaseFor(name string) bool  { return o.ReleaseFor[name] || o.Release }
func (o Options) snapshotFor(name string) bool { return o.SnapshotFor[name] || o.Snapshot }
