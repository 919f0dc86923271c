package stack

import "path/filepath"

// beat holds what the beat-style shippers share: docker coordinates under
// beats/, an elasticsearch dependency, and dashboard setup when kibana runs.
type beat struct {
	stackBase
	command   string
	dependsOn Fragment
}

func newBeat(name, defaultCommand string, opts Options) beat {
	b := beat{
		stackBase: newStackBase(name, 0, opts),
		command:   defaultCommand,
		dependsOn: Fragment{"elasticsearch": healthyCondition()},
	}
	b.dockerPath = "beats"
	if opts.Enabled["kibana"] {
		b.command += " -E setup.dashboards.enabled=true"
		b.dependsOn["kibana"] = healthyCondition()
	}
	return b
}

type filebeat struct {
	beat
	configPath string
}

func newFilebeat(opts Options) *filebeat {
	f := &filebeat{beat: newBeat("filebeat", "filebeat -e --strict.perms=false", opts)}
	config := "filebeat.yml"
	if !f.atLeast("6.1") {
		config = "filebeat.simple.yml"
	}
	f.configPath = filepath.Join(".", "docker", "filebeat", config)
	return f
}

func (f *filebeat) Render() map[string]Fragment {
	return f.finish(Fragment{
		"command":    f.command,
		"depends_on": f.dependsOn,
		"labels":     nil,
		"user":       "root",
		"volumes": []string{
			f.configPath + ":/usr/share/filebeat/filebeat.yml",
			"/var/lib/docker/containers:/var/lib/docker/containers",
			"/var/run/docker.sock:/var/run/docker.sock",
		},
	})
}

type metricbeat struct {
	beat
}

func newMetricbeat(opts Options) *metricbeat {
	return &metricbeat{beat: newBeat("metricbeat", "metricbeat -e --strict.perms=false", opts)}
}

func (m *metricbeat) Render() map[string]Fragment {
	return m.finish(Fragment{
		"command":    m.command,
		"depends_on": m.dependsOn,
		"labels":     nil,
		"user":       "root",
		"volumes": []string{
			"./docker/metricbeat/metricbeat.yml:/usr/share/metricbeat/metricbeat.yml",
			"/var/run/docker.sock:/var/run/docker.sock",
		},
	})
}
