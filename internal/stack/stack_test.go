package stack

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func selectedNames(opts Options) []string {
	var names []string
	for _, s := range Selected(opts) {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}

func TestSelectedDefaults(t *testing.T) {
	names := selectedNames(NewOptions("6.3"))
	expected := []string{"apm-server", "elasticsearch", "kibana"}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("default selection = %v, expected %v", names, expected)
	}
}

func TestSelectedOpbeansPullsSideCars(t *testing.T) {
	opts := NewOptions("6.3")
	opts.Enabled["opbeans-python"] = true
	names := selectedNames(opts)
	expected := []string{
		"apm-server", "elasticsearch", "kibana",
		"opbeans-load-generator", "opbeans-python", "postgres", "redis",
	}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("selection = %v, expected %v", names, expected)
	}
}

func TestSelectedWithoutAPMServer(t *testing.T) {
	opts := NewOptions("6.3")
	opts.Enabled["apm-server"] = false
	names := selectedNames(opts)
	expected := []string{"elasticsearch", "kibana"}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("selection = %v, expected %v", names, expected)
	}

	deps := renderOne(t, newKibana(opts))["depends_on"].(Fragment)
	if !reflect.DeepEqual(deps["elasticsearch"], healthyCondition()) {
		t.Errorf("kibana dependency = %v", deps)
	}
}

func TestSelectedAll(t *testing.T) {
	opts := NewOptions("6.3")
	opts.All = true
	names := selectedNames(opts)
	for _, want := range []string{
		"opbeans-go", "opbeans-java", "opbeans-node", "opbeans-python",
		"opbeans-ruby", "opbeans-rum", "opbeans-load-generator", "postgres", "redis",
	} {
		found := false
		for _, name := range names {
			if name == want {
				found = true
			}
		}
		if !found {
			t.Errorf("--all selection misses %s: %v", want, names)
		}
	}
}

func TestCatalogConstructorsRender(t *testing.T) {
	// every catalog entry must render without panicking and under a
	// non-colliding set of fragment keys
	opts := NewOptions("6.3")
	seen := map[string]bool{}
	for _, def := range Catalog() {
		for name := range def.New(opts).Render() {
			if seen[name] {
				t.Errorf("fragment key %q rendered twice", name)
			}
			seen[name] = true
		}
	}
}

func TestDefaultImageFlavors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Options)
		expected string
	}{
		{"snapshot-by-default", func(o *Options) {},
			"docker.elastic.co/apm/apm-server:6.3.3-SNAPSHOT"},
		{"release", func(o *Options) { o.Release = true },
			"docker.elastic.co/apm/apm-server:6.3.3"},
		{"build-candidate", func(o *Options) { o.BuildCandidate = "37b864a0" },
			"docker.elastic.co/apm/apm-server:6.3.3"},
		{"bc-with-snapshot", func(o *Options) { o.BuildCandidate = "37b864a0"; o.Snapshot = true },
			"docker.elastic.co/apm/apm-server:6.3.3-SNAPSHOT"},
		{"oss", func(o *Options) { o.OSS = true; o.Release = true },
			"docker.elastic.co/apm/apm-server-oss:6.3.3"},
		{"custom-registry", func(o *Options) { o.Registry = "registry.example.net"; o.Release = true },
			"registry.example.net/apm/apm-server:6.3.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewOptions("6.3")
			tt.mutate(&opts)
			s := newAPMServer(opts)
			if got := s.defaultImage(); got != tt.expected {
				t.Errorf("image = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestImageDownloadURL(t *testing.T) {
	opts := NewOptions("6.3")
	opts.BuildCandidate = "37b864a0"
	s := newElasticsearch(opts)
	expected := "https://staging.elastic.co/6.3.3-37b864a0/docker/elasticsearch-6.3.3.tar.gz"
	if got := s.ImageDownloadURL(); got != expected {
		t.Errorf("url = %q, expected %q", got, expected)
	}

	// releases and plain snapshots are public, nothing to stage
	opts = NewOptions("6.3")
	if got := newElasticsearch(opts).ImageDownloadURL(); got != "" {
		t.Errorf("expected no download url without a build candidate, got %q", got)
	}
	opts.BuildCandidate = "37b864a0"
	opts.Release = true
	if got := newElasticsearch(opts).ImageDownloadURL(); got != "" {
		t.Errorf("expected no download url for a release, got %q", got)
	}
}

func TestContainerName(t *testing.T) {
	s := newKibana(NewOptions("6.2"))
	if got := s.containerName(); got != "localtesting_6.2.4_kibana" {
		t.Errorf("container name = %q", got)
	}
}

func renderOne(t *testing.T, s Service) Fragment {
	t.Helper()
	rendered := s.Render()
	content, ok := rendered[s.Name()]
	if !ok {
		t.Fatalf("%s did not render its own key: %v", s.Name(), rendered)
	}
	return content
}

func environmentOf(t *testing.T, content Fragment) []string {
	t.Helper()
	env, ok := content["environment"].([]string)
	if !ok {
		t.Fatalf("environment is %T, expected []string", content["environment"])
	}
	return env
}

func hasEnv(env []string, entry string) bool {
	for _, e := range env {
		if e == entry {
			return true
		}
	}
	return false
}

func TestElasticsearchVersionGates(t *testing.T) {
	// pre 6.3 x-pack builds only ship as the platinum image
	old := newElasticsearch(NewOptions("6.2"))
	if !strings.Contains(old.defaultImage(), "/elasticsearch/elasticsearch-platinum:") {
		t.Errorf("6.2 image = %q, expected the platinum variant", old.defaultImage())
	}
	cur := newElasticsearch(NewOptions("6.3"))
	if strings.Contains(cur.defaultImage(), "platinum") {
		t.Errorf("6.3 image = %q, expected no platinum variant", cur.defaultImage())
	}
	ossOpts := NewOptions("6.2")
	ossOpts.OSS = true
	if img := newElasticsearch(ossOpts).defaultImage(); !strings.Contains(img, "elasticsearch-oss:") {
		t.Errorf("6.2 oss image = %q", img)
	}

	content := renderOne(t, cur)
	env := environmentOf(t, content)
	if !hasEnv(env, "ES_JAVA_OPTS=-Xms1g -Xmx1g") {
		t.Errorf("6.3 java opts wrong: %v", env)
	}
	if !hasEnv(env, "xpack.monitoring.collection.enabled=true") {
		t.Errorf("6.3 should enable monitoring collection: %v", env)
	}

	env64 := environmentOf(t, renderOne(t, newElasticsearch(NewOptions("6.4"))))
	if !hasEnv(env64, "ES_JAVA_OPTS=-Xms1g -Xmx1g -XX:UseAVX=2") {
		t.Errorf("6.4 java opts wrong: %v", env64)
	}

	envOld := environmentOf(t, renderOne(t, old))
	if hasEnv(envOld, "xpack.monitoring.collection.enabled=true") {
		t.Errorf("6.2 should not enable monitoring collection: %v", envOld)
	}
}

func TestKibanaVersionGates(t *testing.T) {
	old := newKibana(NewOptions("6.2"))
	if !strings.Contains(old.defaultImage(), "/kibana/kibana-x-pack:") {
		t.Errorf("6.2 image = %q, expected the x-pack variant", old.defaultImage())
	}
	cur := newKibana(NewOptions("6.3"))
	if strings.Contains(cur.defaultImage(), "x-pack") {
		t.Errorf("6.3 image = %q, expected no x-pack variant", cur.defaultImage())
	}

	env := renderOne(t, cur)["environment"].(Fragment)
	if env["XPACK_XPACK_MAIN_TELEMETRY_ENABLED"] != "false" {
		t.Errorf("6.3 should disable telemetry: %v", env)
	}
	envOld := renderOne(t, old)["environment"].(Fragment)
	if _, ok := envOld["XPACK_XPACK_MAIN_TELEMETRY_ENABLED"]; ok {
		t.Errorf("6.2 has no telemetry switch: %v", envOld)
	}

	deps := renderOne(t, cur)["depends_on"].(Fragment)
	if _, ok := deps["elasticsearch"]; !ok {
		t.Errorf("kibana must depend on elasticsearch: %v", deps)
	}
}

func TestFilebeatConfigGate(t *testing.T) {
	volumes := renderOne(t, newFilebeat(NewOptions("6.1")))["volumes"].([]string)
	if !strings.HasPrefix(volumes[0], "docker/filebeat/filebeat.yml:") {
		t.Errorf("6.1 filebeat config = %q", volumes[0])
	}
	volumes = renderOne(t, newFilebeat(NewOptions("6.0")))["volumes"].([]string)
	if !strings.HasPrefix(volumes[0], "docker/filebeat/filebeat.simple.yml:") {
		t.Errorf("6.0 filebeat config = %q", volumes[0])
	}
}

func TestBeatDashboardsFollowKibana(t *testing.T) {
	opts := NewOptions("6.3")
	content := renderOne(t, newMetricbeat(opts))
	if cmd := content["command"].(string); !strings.Contains(cmd, "setup.dashboards.enabled=true") {
		t.Errorf("command with kibana = %q", cmd)
	}
	if _, ok := content["depends_on"].(Fragment)["kibana"]; !ok {
		t.Errorf("metricbeat should depend on kibana when it runs")
	}

	opts.Enabled["kibana"] = false
	content = renderOne(t, newMetricbeat(opts))
	if cmd := content["command"].(string); strings.Contains(cmd, "setup.dashboards") {
		t.Errorf("command without kibana = %q", cmd)
	}
	if _, ok := content["depends_on"].(Fragment)["kibana"]; ok {
		t.Errorf("metricbeat must not depend on a disabled kibana")
	}
}

func TestAPMServerDependsOnKibana(t *testing.T) {
	opts := NewOptions("6.3")
	content := renderOne(t, newAPMServer(opts))
	deps := content["depends_on"].(Fragment)
	if _, ok := deps["kibana"]; !ok {
		t.Errorf("apm-server should depend on kibana by default: %v", deps)
	}
	command := strings.Join(content["command"].([]string), " ")
	if !strings.Contains(command, "setup.dashboards.enabled=true") {
		t.Errorf("dashboards should load by default: %s", command)
	}

	opts.Enabled["kibana"] = false
	content = renderOne(t, newAPMServer(opts))
	if _, ok := content["depends_on"].(Fragment)["kibana"]; ok {
		t.Errorf("apm-server must not depend on a disabled kibana")
	}
	command = strings.Join(content["command"].([]string), " ")
	if strings.Contains(command, "setup.dashboards") {
		t.Errorf("no dashboard setup without kibana: %s", command)
	}
}

func TestAPMServerOutputs(t *testing.T) {
	opts := NewOptions("6.3")
	opts.APMServer.Output = "kafka"
	command := strings.Join(renderOne(t, newAPMServer(opts))["command"].([]string), " ")
	for _, want := range []string{
		"output.elasticsearch.enabled=false",
		"output.kafka.enabled=true",
		`output.kafka.hosts=["kafka:9092"]`,
	} {
		if !strings.Contains(command, want) {
			t.Errorf("kafka output command misses %q: %s", want, command)
		}
	}

	opts.APMServer.Output = "logstash"
	command = strings.Join(renderOne(t, newAPMServer(opts))["command"].([]string), " ")
	if !strings.Contains(command, "output.logstash.enabled=true") {
		t.Errorf("logstash output command: %s", command)
	}

	opts.APMServer.Output = "elasticsearch"
	command = strings.Join(renderOne(t, newAPMServer(opts))["command"].([]string), " ")
	if !strings.Contains(command, "output.elasticsearch.enabled=true") {
		t.Errorf("elasticsearch output command: %s", command)
	}
}

func TestAPMServerBuild(t *testing.T) {
	opts := NewOptions("6.3")
	opts.APMServer.Build = "https://github.com/elastic/apm-server.git@v2"
	content := renderOne(t, newAPMServer(opts))
	build, ok := content["build"].(Fragment)
	if !ok {
		t.Fatalf("expected a build section: %v", content)
	}
	args := build["args"].(Fragment)
	if args["apm_server_repo"] != "https://github.com/elastic/apm-server.git" {
		t.Errorf("repo = %v", args["apm_server_repo"])
	}
	if args["apm_server_branch"] != "v2" {
		t.Errorf("branch = %v", args["apm_server_branch"])
	}
	if _, ok := content["image"]; ok {
		t.Errorf("a built apm-server must not also pin an image")
	}
}

func TestAPMServerReplicas(t *testing.T) {
	opts := NewOptions("6.3")
	opts.APMServer.Count = 3
	rendered := newAPMServer(opts).Render()

	if len(rendered) != 4 {
		t.Fatalf("expected balancer + 3 backends, got %d fragments", len(rendered))
	}
	balancer, ok := rendered["apm-server"]
	if !ok {
		t.Fatalf("balancer must take over the apm-server key: %v", rendered)
	}
	if _, ok := balancer["build"]; !ok {
		t.Errorf("balancer should build the haproxy image: %v", balancer)
	}
	deps := balancer["depends_on"].(Fragment)
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("apm-server-%d", i)
		if _, ok := deps[name]; !ok {
			t.Errorf("balancer misses dependency on %s", name)
		}
		backend, ok := rendered[name]
		if !ok {
			t.Fatalf("missing backend fragment %s", name)
		}
		// backends are internal only, no host bindings
		for _, port := range backend["ports"].([]string) {
			if strings.Contains(port, ":") {
				t.Errorf("%s publishes %q to the host", name, port)
			}
		}
		wantName := fmt.Sprintf("localtesting_6.3.3_apm-server-%d", i)
		if backend["container_name"] != wantName {
			t.Errorf("%s container_name = %v", name, backend["container_name"])
		}
	}
}

func TestOpbeansPythonAgentBranch(t *testing.T) {
	env := environmentOf(t, renderOne(t, newOpbeansPython(NewOptions("6.1"))))
	if !hasEnv(env, "PYTHON_AGENT_BRANCH=1.x") {
		t.Errorf("6.1 should pin the 1.x agent: %v", env)
	}
	env = environmentOf(t, renderOne(t, newOpbeansPython(NewOptions("6.2"))))
	if !hasEnv(env, "PYTHON_AGENT_BRANCH=2.x") {
		t.Errorf("6.2 should use the 2.x agent: %v", env)
	}
}

func TestOpbeansDependsOnAPMServer(t *testing.T) {
	opts := NewOptions("6.3")
	deps := renderOne(t, newOpbeansGo(opts))["depends_on"].(Fragment)
	if _, ok := deps["apm-server"]; !ok {
		t.Errorf("opbeans must wait for apm-server when it runs: %v", deps)
	}

	opts.Enabled["apm-server"] = false
	deps = renderOne(t, newOpbeansGo(opts))["depends_on"].(Fragment)
	if _, ok := deps["apm-server"]; ok {
		t.Errorf("opbeans must not depend on a disabled apm-server: %v", deps)
	}
}

func TestLoadGenerator(t *testing.T) {
	opts := NewOptions("6.3")
	opts.Enabled["opbeans-python"] = true
	opts.Enabled["opbeans-node"] = true
	opts.Enabled["opbeans-go"] = true
	opts.Opbeans.NoLoadgen["opbeans-go"] = true
	opts.Opbeans.LoadgenRPM["opbeans-python"] = 250

	content := renderOne(t, newOpbeansLoadGenerator(opts))
	env := environmentOf(t, content)
	// node ships its own workload generator, go was opted out
	if !hasEnv(env, "OPBEANS_URLS=opbeans-python:http://opbeans-python:3000") {
		t.Errorf("urls wrong: %v", env)
	}
	if !hasEnv(env, "OPBEANS_RPMS=opbeans-python:250") {
		t.Errorf("rpms wrong: %v", env)
	}
	deps := content["depends_on"].(Fragment)
	if len(deps) != 1 {
		t.Errorf("deps = %v, expected only opbeans-python", deps)
	}
}

func TestLoadGeneratorAll(t *testing.T) {
	opts := NewOptions("6.3")
	opts.All = true
	env := environmentOf(t, renderOne(t, newOpbeansLoadGenerator(opts)))
	var urls string
	for _, e := range env {
		if strings.HasPrefix(e, "OPBEANS_URLS=") {
			urls = e
		}
	}
	for _, want := range []string{"opbeans-go", "opbeans-java", "opbeans-python", "opbeans-ruby"} {
		if !strings.Contains(urls, want+":http://"+want+":3000") {
			t.Errorf("urls misses %s: %s", want, urls)
		}
	}
	for _, never := range []string{"opbeans-rum", "opbeans-node"} {
		if strings.Contains(urls, never) {
			t.Errorf("urls must not target %s: %s", never, urls)
		}
	}
}

func TestFinishDefaultsAndSuppression(t *testing.T) {
	opts := NewOptions("6.3")
	content := renderOne(t, newRedis(opts))
	if content["image"] != "redis:4" {
		t.Errorf("redis image = %v", content["image"])
	}
	if _, ok := content["labels"]; ok {
		t.Errorf("redis suppresses the version label: %v", content)
	}

	content = renderOne(t, newKibana(opts))
	if content["container_name"] != "localtesting_6.3.3_kibana" {
		t.Errorf("container_name = %v", content["container_name"])
	}
	labels := content["labels"].([]string)
	if len(labels) != 1 || labels[0] != VersionLabel+"=6.3.3" {
		t.Errorf("labels = %v", labels)
	}
	logging := content["logging"].(Fragment)
	if logging["driver"] != "json-file" {
		t.Errorf("logging = %v", logging)
	}
}

func TestPublishPort(t *testing.T) {
	if got := publishPort(8200, 8200, false); got != "127.0.0.1:8200:8200" {
		t.Errorf("local binding = %q", got)
	}
	if got := publishPort(5432, 5432, true); got != "5432:5432" {
		t.Errorf("exposed binding = %q", got)
	}
}

func TestPerServiceOverrides(t *testing.T) {
	opts := NewOptions("6.3")
	opts.Versions["kibana"] = "6.2.4"
	opts.OSSFor["kibana"] = true
	opts.Ports["kibana"] = 5602

	s := newKibana(opts)
	if s.version != "6.2.4" {
		t.Errorf("version = %q", s.version)
	}
	if !s.oss {
		t.Errorf("per-service oss override ignored")
	}
	if s.port != 5602 {
		t.Errorf("port = %d", s.port)
	}

	// other services keep the stack-wide settings
	es := newElasticsearch(opts)
	if es.version != "6.3.3" || es.oss {
		t.Errorf("elasticsearch picked up kibana overrides: %q oss=%v", es.version, es.oss)
	}
}
