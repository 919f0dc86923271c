package stack

import (
	"fmt"
	"strconv"
)

const (
	// DefaultRegistry hosts the Elastic stack images.
	DefaultRegistry = "docker.elastic.co"

	// VersionLabel tags every managed container with its stack version.
	// The misspelling is load-bearing: released tooling filters on it.
	VersionLabel = "co.elatic.apm.stack-version"

	defaultHealthcheckInterval = "5s"
	defaultHealthcheckRetries  = 12
)

// Fragment is one service's slice of the docker-compose document.
type Fragment map[string]any

// Service is a resolved service definition, bound to the options of one
// invocation and able to render its compose fragment(s).
type Service interface {
	Name() string
	Render() map[string]Fragment
}

// ImageDownloader is implemented by services whose image may need to be
// fetched from a non-public staging URL before docker-compose can use it.
type ImageDownloader interface {
	ImageDownloadURL() string
}

// base carries the state shared by every service: resolved version, image
// coordinates and the build flavor switches.
type base struct {
	name       string
	version    string
	registry   string
	dockerPath string
	dockerName string
	port       int
	oss        bool
	release    bool
	snapshot   bool
	bc         string
}

func newBase(name string, defaultPort int, opts Options) base {
	registry := opts.Registry
	if registry == "" {
		registry = DefaultRegistry
	}
	return base{
		name:       name,
		version:    opts.versionFor(name),
		registry:   registry,
		dockerPath: name,
		dockerName: name,
		port:       opts.portFor(name, defaultPort),
		oss:        opts.ossFor(name),
		release:    opts.releaseFor(name),
		snapshot:   opts.snapshotFor(name),
		bc:         opts.buildCandidateFor(name),
	}
}

func (b base) Name() string { return b.name }

func (b base) atLeast(target string) bool {
	return versionAtLeast(b.version, target)
}

func (b base) containerName() string {
	return "localtesting_" + b.version + "_" + b.name
}

// defaultImage builds the image reference for the resolved flavor. Snapshot
// images are the default: anything that is neither a build candidate nor a
// release gets the -SNAPSHOT tag.
func (b base) defaultImage() string {
	image := b.registry + "/" + b.dockerPath + "/" + b.dockerName
	if b.oss {
		image += "-oss"
	}
	image += ":" + b.version
	if b.snapshot || (b.bc == "" && !b.release) {
		image += "-SNAPSHOT"
	}
	return image
}

func (b base) labels() []string {
	return []string{VersionLabel + "=" + b.version}
}

func defaultLogging() Fragment {
	return Fragment{
		"driver": "json-file",
		"options": Fragment{
			"max-file": "5",
			"max-size": "2m",
		},
	}
}

// finish fills in the rendering defaults and prunes fields a service
// explicitly set to nil to suppress the default.
func (b base) finish(content Fragment) map[string]Fragment {
	if _, ok := content["container_name"]; !ok {
		content["container_name"] = b.containerName()
	}
	for key, value := range map[string]any{
		"image":   b.defaultImage(),
		"labels":  b.labels(),
		"logging": defaultLogging(),
	} {
		if _, ok := content[key]; !ok {
			content[key] = value
		}
		if content[key] == nil {
			delete(content, key)
		}
	}
	return map[string]Fragment{b.name: content}
}

// stackBase extends base for the managed Elastic services, whose pre-release
// images are published to a staging host rather than the public registry.
type stackBase struct {
	base
}

func newStackBase(name string, defaultPort int, opts Options) stackBase {
	return stackBase{base: newBase(name, defaultPort, opts)}
}

func (s stackBase) ImageDownloadURL() string {
	// releases are public, only build candidates need the staging host
	if s.release || s.bc == "" {
		return ""
	}
	image := s.dockerName
	if s.oss {
		image += "-oss"
	}
	return fmt.Sprintf("https://staging.elastic.co/%s-%s/docker/%s-%s.tar.gz",
		s.version, s.bc, image, s.version)
}

func healthyCondition() Fragment {
	return Fragment{"condition": "service_healthy"}
}

// curlHealthcheck is the probe shared by every HTTP-speaking service.
func curlHealthcheck(port int, host, path, interval string, retries int) Fragment {
	return Fragment{
		"interval": interval,
		"retries":  retries,
		"test": []string{
			"CMD", "curl", "--write-out", "'HTTP %{http_code}'", "--fail", "--silent",
			"--output", "/dev/null",
			fmt.Sprintf("http://%s:%d%s", host, port, path),
		},
	}
}

// publishPort renders a compose port binding, bound to localhost unless the
// service must be reachable from other hosts.
func publishPort(external, internal int, expose bool) string {
	addr := ""
	if !expose {
		addr = "127.0.0.1:"
	}
	return addr + strconv.Itoa(external) + ":" + strconv.Itoa(internal)
}
