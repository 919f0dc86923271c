package stack

// Definition describes one entry of the service catalog: the static
// properties the start command needs before any options are resolved.
type Definition struct {
	Name        string
	DefaultPort int

	// Default marks services that start unless --no-X is given.
	Default bool
	// SideCar marks services that activate automatically whenever any
	// opbeans service is selected; they get no --with-X/--no-X flags.
	SideCar bool
	// Opbeans marks the sample applications selected by --all.
	Opbeans bool
	// Stack marks the managed Elastic services, which carry the
	// version/bc/oss/release/snapshot flag family.
	Stack bool

	New func(Options) Service
}

// Catalog is the static service registry, in stable order. Everything the
// tool can compose is listed here; there is no runtime discovery.
func Catalog() []Definition {
	return []Definition{
		{Name: "apm-server", DefaultPort: 8200, Default: true, Stack: true,
			New: func(o Options) Service { return newAPMServer(o) }},
		{Name: "elasticsearch", DefaultPort: 9200, Default: true, Stack: true,
			New: func(o Options) Service { return newElasticsearch(o) }},
		{Name: "kibana", DefaultPort: 5601, Default: true, Stack: true,
			New: func(o Options) Service { return newKibana(o) }},
		{Name: "logstash", DefaultPort: 5044, Stack: true,
			New: func(o Options) Service { return newLogstash(o) }},
		{Name: "filebeat", Stack: true,
			New: func(o Options) Service { return newFilebeat(o) }},
		{Name: "metricbeat", Stack: true,
			New: func(o Options) Service { return newMetricbeat(o) }},

		{Name: "kafka", DefaultPort: 9092,
			New: func(o Options) Service { return newKafka(o) }},
		{Name: "zookeeper", DefaultPort: 2181,
			New: func(o Options) Service { return newZookeeper(o) }},
		{Name: "postgres", DefaultPort: 5432, SideCar: true,
			New: func(o Options) Service { return newPostgres(o) }},
		{Name: "redis", DefaultPort: 6379, SideCar: true,
			New: func(o Options) Service { return newRedis(o) }},

		{Name: "agent-rumjs", DefaultPort: 8000,
			New: func(o Options) Service { return newAgentRUMJS(o) }},
		{Name: "agent-go-net-http", DefaultPort: 8080,
			New: func(o Options) Service { return newAgentGoNetHTTP(o) }},
		{Name: "agent-nodejs-express", DefaultPort: 8010,
			New: func(o Options) Service { return newAgentNodejsExpress(o) }},
		{Name: "agent-python-django", DefaultPort: 8003,
			New: func(o Options) Service { return newAgentPythonDjango(o) }},
		{Name: "agent-python-flask", DefaultPort: 8001,
			New: func(o Options) Service { return newAgentPythonFlask(o) }},
		{Name: "agent-ruby-rails", DefaultPort: 8020,
			New: func(o Options) Service { return newAgentRubyRails(o) }},
		{Name: "agent-java-spring", DefaultPort: 8090,
			New: func(o Options) Service { return newAgentJavaSpring(o) }},

		{Name: "opbeans-go", DefaultPort: 3003, Opbeans: true,
			New: func(o Options) Service { return newOpbeansGo(o) }},
		{Name: "opbeans-java", DefaultPort: 3002, Opbeans: true,
			New: func(o Options) Service { return newOpbeansJava(o) }},
		{Name: "opbeans-node", DefaultPort: 3000, Opbeans: true,
			New: func(o Options) Service { return newOpbeansNode(o) }},
		{Name: "opbeans-python", DefaultPort: 8000, Opbeans: true,
			New: func(o Options) Service { return newOpbeansPython(o) }},
		{Name: "opbeans-ruby", DefaultPort: 3001, Opbeans: true,
			New: func(o Options) Service { return newOpbeansRuby(o) }},
		{Name: "opbeans-rum", DefaultPort: 9222, Opbeans: true,
			New: func(o Options) Service { return newOpbeansRum(o) }},
		{Name: "opbeans-load-generator", SideCar: true,
			New: func(o Options) Service { return newOpbeansLoadGenerator(o) }},
	}
}

// Selected resolves the set of services to compose: everything enabled
// explicitly or by default, every opbeans service under --all, and the
// side-cars as soon as any opbeans service is in the set.
func Selected(opts Options) []Service {
	anyOpbeans := opts.All
	for _, def := range Catalog() {
		if def.Opbeans && opts.Enabled[def.Name] {
			anyOpbeans = true
		}
	}

	var services []Service
	for _, def := range Catalog() {
		on := opts.Enabled[def.Name]
		on = on || (opts.All && def.Opbeans)
		on = on || (anyOpbeans && def.SideCar)
		if on {
			services = append(services, def.New(opts))
		}
	}
	return services
}
