package stack

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

const (
	apmServerPort        = 8200
	apmServerMonitorPort = 6060
)

// APMServerOutputs are the valid values for --apm-server-output.
var APMServerOutputs = []string{"elasticsearch", "kafka", "logstash"}

type apmServer struct {
	stackBase
	commandArgs [][2]string
	dependsOn   Fragment
	build       string
	monitorPort int
	count       int
}

func newAPMServer(opts Options) *apmServer {
	s := &apmServer{
		stackBase:   newStackBase("apm-server", apmServerPort, opts),
		build:       opts.APMServer.Build,
		monitorPort: opts.APMServer.MonitorPort,
		count:       opts.APMServer.Count,
	}
	s.dockerPath = "apm"

	s.commandArgs = [][2]string{
		{"apm-server.frontend.enabled", "true"},
		{"apm-server.frontend.rate_limit", "100000"},
		{"apm-server.host", "0.0.0.0:8200"},
		{"apm-server.read_timeout", "1m"},
		{"apm-server.shutdown_timeout", "2m"},
		{"apm-server.write_timeout", "1m"},
		{"logging.json", "true"},
		{"logging.metrics.enabled", "false"},
		{"setup.kibana.host", "kibana:5601"},
		{"setup.template.settings.index.number_of_replicas", "0"},
		{"setup.template.settings.index.number_of_shards", "1"},
		{"setup.template.settings.index.refresh_interval", "1ms"},
		{"xpack.monitoring.elasticsearch", "true"},
		{"xpack.monitoring.enabled", "true"},
	}
	s.dependsOn = Fragment{"elasticsearch": healthyCondition()}
	if opts.Enabled["kibana"] {
		s.dependsOn["kibana"] = healthyCondition()
		if opts.APMServer.Dashboards {
			s.commandArgs = append(s.commandArgs, [2]string{"setup.dashboards.enabled", "true"})
		}
	}

	switch opts.APMServer.Output {
	case "elasticsearch":
		s.commandArgs = append(s.commandArgs,
			[2]string{"output.elasticsearch.enabled", "true"},
			[2]string{"output.elasticsearch.hosts", "[elasticsearch:9200]"},
		)
	default:
		s.commandArgs = append(s.commandArgs,
			[2]string{"output.elasticsearch.enabled", "false"},
			[2]string{"output.elasticsearch.hosts", "[elasticsearch:9200]"},
			[2]string{"xpack.monitoring.elasticsearch.hosts", `["elasticsearch:9200"]`},
		)
		switch opts.APMServer.Output {
		case "kafka":
			s.commandArgs = append(s.commandArgs,
				[2]string{"output.kafka.enabled", "true"},
				[2]string{"output.kafka.hosts", `["kafka:9092"]`},
				[2]string{"output.kafka.topics", "[{default: 'apm', topic: 'apm-%{[context.service.name]}'}]"},
			)
		case "logstash":
			s.commandArgs = append(s.commandArgs,
				[2]string{"output.logstash.enabled", "true"},
				[2]string{"output.logstash.hosts", `["logstash:5044"]`},
			)
		}
	}
	return s
}

func (s *apmServer) content() Fragment {
	command := []string{"apm-server", "-e", "--httpprof", ":" + strconv.Itoa(s.monitorPort)}
	for _, arg := range s.commandArgs {
		command = append(command, "-E", arg[0]+"="+arg[1])
	}

	content := Fragment{
		"cap_add":     []string{"CHOWN", "DAC_OVERRIDE", "SETGID", "SETUID"},
		"cap_drop":    []string{"ALL"},
		"command":     command,
		"depends_on":  s.dependsOn,
		"healthcheck": curlHealthcheck(apmServerPort, "localhost", "/healthcheck", defaultHealthcheckInterval, defaultHealthcheckRetries),
		"labels":      s.labels(),
		"ports": []string{
			publishPort(s.port, apmServerPort, false),
			publishPort(s.monitorPort, apmServerMonitorPort, false),
		},
	}

	if s.build != "" {
		repo, branch := s.build, "master"
		if i := strings.Index(s.build, "@"); i >= 0 {
			repo, branch = s.build[:i], s.build[i+1:]
		}
		content["build"] = Fragment{
			"context": "docker/apm-server",
			"args": Fragment{
				"apm_server_base_image": s.defaultImage(),
				"apm_server_branch":     branch,
				"apm_server_repo":       repo,
			},
		}
		content["image"] = nil
	}
	return content
}

// Render supports running several apm-servers behind a load balancer:
// with count > 1 the single fragment becomes a backend template rendered
// once per replica, and the balancer takes over the apm-server key.
func (s *apmServer) Render() map[string]Fragment {
	single := s.finish(s.content())[s.name]
	if s.count == 1 {
		return map[string]Fragment{s.name: single}
	}

	// backends are only reachable through the balancer, drop host bindings
	ports := single["ports"].([]string)
	internal := make([]string, len(ports))
	for i, p := range ports {
		internal[i] = p[strings.LastIndex(p, ":")+1:]
	}
	single["ports"] = internal

	rendered := s.renderProxy()
	for i := 1; i <= s.count; i++ {
		backend := maps.Clone(single)
		backend["container_name"] = backend["container_name"].(string) + "-" + strconv.Itoa(i)
		rendered[fmt.Sprintf("%s-%d", s.name, i)] = backend
	}
	return rendered
}

func (s *apmServer) renderProxy() map[string]Fragment {
	dependsOn := Fragment{}
	for i := 1; i <= s.count; i++ {
		dependsOn[fmt.Sprintf("%s-%d", s.name, i)] = healthyCondition()
	}
	return map[string]Fragment{s.name: {
		"build":          Fragment{"context": "docker/apm-server/haproxy"},
		"container_name": s.containerName() + "-load-balancer",
		"depends_on":     dependsOn,
		"environment":    Fragment{"APM_SERVER_COUNT": s.count},
		"healthcheck":    Fragment{"test": []string{"CMD", "haproxy", "-c", "-f", "/usr/local/etc/haproxy/haproxy.cfg"}},
		"ports":          []string{publishPort(s.port, apmServerPort, false)},
	}}
}

const elasticsearchPort = 9200

type elasticsearch struct {
	stackBase
	environment []string
}

func newElasticsearch(opts Options) *elasticsearch {
	s := &elasticsearch{stackBase: newStackBase("elasticsearch", elasticsearchPort, opts)}
	if !s.oss && !s.atLeast("6.3") {
		s.dockerName = s.name + "-platinum"
	}

	javaOpts := []string{"-Xms1g", "-Xmx1g"}
	if s.atLeast("6.4") {
		// https://github.com/elastic/elasticsearch/pull/32138
		javaOpts = append(javaOpts, "-XX:UseAVX=2")
	}

	s.environment = []string{
		"cluster.name=docker-cluster",
		"bootstrap.memory_lock=true",
		"discovery.type=single-node",
		"ES_JAVA_OPTS=" + strings.Join(javaOpts, " "),
		"path.data=/usr/share/elasticsearch/data/" + s.version,
	}
	if !s.oss {
		s.environment = append(s.environment,
			"xpack.security.enabled=false",
			"xpack.license.self_generated.type=trial",
		)
		if s.atLeast("6.3") {
			s.environment = append(s.environment, "xpack.monitoring.collection.enabled=true")
		}
	}
	return s
}

func (s *elasticsearch) Render() map[string]Fragment {
	return s.finish(Fragment{
		"environment": s.environment,
		"healthcheck": Fragment{
			"interval": "20s",
			"retries":  10,
			"test":     []string{"CMD-SHELL", `curl -s http://localhost:9200/_cluster/health | grep -vq '"status":"red"'`},
		},
		"mem_limit": "5g",
		"ports":     []string{publishPort(s.port, elasticsearchPort, false)},
		"ulimits": Fragment{
			"memlock": Fragment{"hard": -1, "soft": -1},
		},
		"volumes": []string{"esdata:/usr/share/elasticsearch/data"},
	})
}

const kibanaPort = 5601

type kibana struct {
	stackBase
	environment Fragment
}

func newKibana(opts Options) *kibana {
	s := &kibana{stackBase: newStackBase("kibana", kibanaPort, opts)}
	if !s.atLeast("6.3") && !s.oss {
		s.dockerName = s.name + "-x-pack"
	}
	s.environment = Fragment{
		"SERVER_NAME":       "kibana.example.org",
		"ELASTICSEARCH_URL": "http://elasticsearch:9200",
	}
	if !s.oss {
		s.environment["XPACK_MONITORING_ENABLED"] = "true"
		if s.atLeast("6.3") {
			s.environment["XPACK_XPACK_MAIN_TELEMETRY_ENABLED"] = "false"
		}
	}
	return s
}

func (s *kibana) Render() map[string]Fragment {
	return s.finish(Fragment{
		"healthcheck": curlHealthcheck(kibanaPort, "kibana", "/api/status", "5s", 20),
		"depends_on":  Fragment{"elasticsearch": healthyCondition()},
		"environment": s.environment,
		"ports":       []string{publishPort(s.port, kibanaPort, false)},
	})
}

const logstashPort = 5044

type logstash struct {
	stackBase
}

func newLogstash(opts Options) *logstash {
	return &logstash{stackBase: newStackBase("logstash", logstashPort, opts)}
}

func (s *logstash) Render() map[string]Fragment {
	return s.finish(Fragment{
		"depends_on":  Fragment{"elasticsearch": healthyCondition()},
		"environment": Fragment{"ELASTICSEARCH_URL": "http://elasticsearch:9200"},
		"healthcheck": curlHealthcheck(9600, "logstash", "/", defaultHealthcheckInterval, defaultHealthcheckRetries),
		"ports":       []string{publishPort(s.port, logstashPort, false), "9600"},
		"volumes":     []string{"./docker/logstash/pipeline/:/usr/share/logstash/pipeline/"},
	})
}
