package stack

import "fmt"

// The agent services run minimal instrumented applications, one per APM
// agent, each built from a Dockerfile under docker/.

type agentRUMJS struct {
	base
	branch string
	repo   string
}

func newAgentRUMJS(opts Options) *agentRUMJS {
	return &agentRUMJS{
		base:   newBase("agent-rumjs", 8000, opts),
		branch: opts.Agents.RUMBranch,
		repo:   opts.Agents.RUMRepo,
	}
}

func (s *agentRUMJS) Render() map[string]Fragment {
	return s.finish(Fragment{
		"build": Fragment{
			"context":    "docker/rum",
			"dockerfile": "Dockerfile",
			"args": []string{
				"RUM_AGENT_BRANCH=" + s.branch,
				"RUM_AGENT_REPO=" + s.repo,
			},
		},
		"container_name": "rum",
		"image":          nil,
		"labels":         nil,
		"logging":        nil,
		"environment": Fragment{
			"ELASTIC_APM_SERVICE_NAME": "rum",
			"ELASTIC_APM_SERVER_URL":   "http://apm-server:8200",
		},
		"ports": []string{publishPort(s.port, 8000, false)},
	})
}

type agentGoNetHTTP struct {
	base
}

func newAgentGoNetHTTP(opts Options) *agentGoNetHTTP {
	return &agentGoNetHTTP{base: newBase("agent-go-net-http", 8080, opts)}
}

func (s *agentGoNetHTTP) Render() map[string]Fragment {
	return s.finish(Fragment{
		"build":          Fragment{"context": "docker/go/nethttp", "dockerfile": "Dockerfile"},
		"container_name": "gonethttpapp",
		"environment": Fragment{
			"ELASTIC_APM_SERVICE_NAME":             "gonethttpapp",
			"ELASTIC_APM_SERVER_URL":               "http://apm-server:8200",
			"ELASTIC_APM_TRANSACTION_IGNORE_NAMES": "healthcheck",
			"ELASTIC_APM_FLUSH_INTERVAL":           "500ms",
		},
		"healthcheck": curlHealthcheck(8080, "gonethttpapp", "/healthcheck", defaultHealthcheckInterval, defaultHealthcheckRetries),
		"image":       nil,
		"labels":      nil,
		"logging":     nil,
		"ports":       []string{publishPort(s.port, 8080, false)},
	})
}

type agentNodejsExpress struct {
	base
	pkg string
}

func newAgentNodejsExpress(opts Options) *agentNodejsExpress {
	return &agentNodejsExpress{
		base: newBase("agent-nodejs-express", 8010, opts),
		pkg:  opts.Agents.NodePackage,
	}
}

func (s *agentNodejsExpress) Render() map[string]Fragment {
	return s.finish(Fragment{
		"build":          Fragment{"context": "docker/nodejs/express", "dockerfile": "Dockerfile"},
		"command":        fmt.Sprintf("bash -c \"npm install %s && node app.js\"", s.pkg),
		"container_name": "expressapp",
		"healthcheck":    curlHealthcheck(8010, "expressapp", "/healthcheck", defaultHealthcheckInterval, defaultHealthcheckRetries),
		"image":          nil,
		"labels":         nil,
		"logging":        nil,
		"environment": Fragment{
			"APM_SERVER_URL":       "http://apm-server:8200",
			"EXPRESS_PORT":         "8010",
			"EXPRESS_SERVICE_NAME": "expressapp",
		},
		"ports": []string{publishPort(s.port, 8010, false)},
	})
}

type agentPythonDjango struct {
	base
	pkg string
}

func newAgentPythonDjango(opts Options) *agentPythonDjango {
	return &agentPythonDjango{
		base: newBase("agent-python-django", 8003, opts),
		pkg:  opts.Agents.PythonPackage,
	}
}

func (s *agentPythonDjango) Render() map[string]Fragment {
	return s.finish(Fragment{
		"build":          Fragment{"context": "docker/python/django", "dockerfile": "Dockerfile"},
		"command":        fmt.Sprintf("bash -c \"pip install -U %s && python testapp/manage.py runserver 0.0.0.0:8003\"", s.pkg),
		"container_name": "djangoapp",
		"environment": Fragment{
			"APM_SERVER_URL":      "http://apm-server:8200",
			"DJANGO_PORT":         8003,
			"DJANGO_SERVICE_NAME": "djangoapp",
		},
		"healthcheck": curlHealthcheck(8003, "djangoapp", "/healthcheck", defaultHealthcheckInterval, defaultHealthcheckRetries),
		"image":       nil,
		"labels":      nil,
		"logging":     nil,
		"ports":       []string{publishPort(s.port, 8003, false)},
	})
}

type agentPythonFlask struct {
	base
	pkg string
}

func newAgentPythonFlask(opts Options) *agentPythonFlask {
	return &agentPythonFlask{
		base: newBase("agent-python-flask", 8001, opts),
		pkg:  opts.Agents.PythonPackage,
	}
}

func (s *agentPythonFlask) Render() map[string]Fragment {
	return s.finish(Fragment{
		"build":          Fragment{"context": "docker/python/flask", "dockerfile": "Dockerfile"},
		"command":        fmt.Sprintf("bash -c \"pip install -U %s && gunicorn app:app\"", s.pkg),
		"container_name": "flaskapp",
		"image":          nil,
		"labels":         nil,
		"logging":        nil,
		"environment": Fragment{
			"APM_SERVER_URL":     "http://apm-server:8200",
			"FLASK_SERVICE_NAME": "flaskapp",
			"GUNICORN_CMD_ARGS":  "-w 4 -b 0.0.0.0:8001",
		},
		"healthcheck": curlHealthcheck(8001, "flaskapp", "/healthcheck", defaultHealthcheckInterval, defaultHealthcheckRetries),
		"ports":       []string{publishPort(s.port, 8001, false)},
	})
}

type agentRubyRails struct {
	base
	agentVersion      string
	agentVersionState string
}

func newAgentRubyRails(opts Options) *agentRubyRails {
	return &agentRubyRails{
		base:              newBase("agent-ruby-rails", 8020, opts),
		agentVersion:      opts.Agents.RubyVersion,
		agentVersionState: opts.Agents.RubyVersionState,
	}
}

func (s *agentRubyRails) Render() map[string]Fragment {
	return s.finish(Fragment{
		"build":          Fragment{"context": "docker/ruby/rails", "dockerfile": "Dockerfile"},
		"command":        "bash -c \"bundle install && RAILS_ENV=production bundle exec rails s -b 0.0.0.0 -p 8020\"",
		"container_name": "railsapp",
		"environment": Fragment{
			"APM_SERVER_URL":           "http://apm-server:8200",
			"ELASTIC_APM_SERVER_URL":   "http://apm-server:8200",
			"ELASTIC_APM_SERVICE_NAME": "railsapp",
			"RAILS_PORT":               8020,
			"RAILS_SERVICE_NAME":       "railsapp",
			"RUBY_AGENT_VERSION_STATE": s.agentVersionState,
			"RUBY_AGENT_VERSION":       s.agentVersion,
		},
		// the rails app can take a long time to boot
		"healthcheck": curlHealthcheck(8020, "railsapp", "/healthcheck", "10s", 60),
		"image":       nil,
		"labels":      nil,
		"logging":     nil,
		"ports":       []string{publishPort(s.port, 8020, false)},
	})
}

type agentJavaSpring struct {
	base
}

func newAgentJavaSpring(opts Options) *agentJavaSpring {
	return &agentJavaSpring{base: newBase("agent-java-spring", 8090, opts)}
}

func (s *agentJavaSpring) Render() map[string]Fragment {
	return s.finish(Fragment{
		"build":          Fragment{"context": "docker/java/spring", "dockerfile": "Dockerfile"},
		"container_name": "javaspring",
		"image":          nil,
		"labels":         nil,
		"logging":        nil,
		"environment": Fragment{
			"ELASTIC_APM_SERVICE_NAME": "springapp",
			"ELASTIC_APM_SERVER_URL":   "http://apm-server:8200",
		},
		"healthcheck": curlHealthcheck(8090, "javaspring", "/healthcheck", defaultHealthcheckInterval, defaultHealthcheckRetries),
		"ports":       []string{publishPort(s.port, 8090, false)},
	})
}
