package stack

const (
	kafkaPort     = 9092
	zookeeperPort = 2181
	postgresPort  = 5432
	redisPort     = 6379
)

type kafka struct {
	base
}

func newKafka(opts Options) *kafka {
	return &kafka{base: newBase("kafka", kafkaPort, opts)}
}

func (s *kafka) Render() map[string]Fragment {
	return s.finish(Fragment{
		"depends_on": []string{"zookeeper"},
		"environment": Fragment{
			"KAFKA_ADVERTISED_LISTENERS":             "PLAINTEXT://kafka:9092",
			"KAFKA_BROKER_ID":                        1,
			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR": 1,
			"KAFKA_ZOOKEEPER_CONNECT":                "zookeeper:2181",
		},
		"image":   "confluentinc/cp-kafka:4.1.0",
		"labels":  nil,
		"logging": nil,
		"ports":   []string{publishPort(s.port, kafkaPort, false)},
	})
}

type zookeeper struct {
	base
}

func newZookeeper(opts Options) *zookeeper {
	return &zookeeper{base: newBase("zookeeper", zookeeperPort, opts)}
}

func (s *zookeeper) Render() map[string]Fragment {
	return s.finish(Fragment{
		"environment": Fragment{
			"ZOOKEEPER_CLIENT_PORT": 2181,
			"ZOOKEEPER_TICK_TIME":   2000,
		},
		"image":   "confluentinc/cp-zookeeper:latest",
		"labels":  nil,
		"logging": nil,
		"ports":   []string{publishPort(s.port, zookeeperPort, false)},
	})
}

type postgres struct {
	base
}

func newPostgres(opts Options) *postgres {
	return &postgres{base: newBase("postgres", postgresPort, opts)}
}

func (s *postgres) Render() map[string]Fragment {
	return s.finish(Fragment{
		"environment": []string{"POSTGRES_DB=opbeans", "POSTGRES_PASSWORD=verysecure"},
		"healthcheck": Fragment{
			"interval": "10s",
			"test":     []string{"CMD", "pg_isready", "-h", "postgres", "-U", "postgres"},
		},
		"image":  "postgres:10",
		"labels": nil,
		"ports":  []string{publishPort(s.port, postgresPort, true)},
		"volumes": []string{
			"./docker/opbeans/sql:/docker-entrypoint-initdb.d",
			"pgdata:/var/lib/postgresql/data",
		},
	})
}

type redis struct {
	base
}

func newRedis(opts Options) *redis {
	return &redis{base: newBase("redis", redisPort, opts)}
}

func (s *redis) Render() map[string]Fragment {
	return s.finish(Fragment{
		"healthcheck": Fragment{
			"interval": "10s",
			"test":     []string{"CMD", "redis-cli", "ping"},
		},
		"image":  "redis:4",
		"labels": nil,
		"ports":  []string{publishPort(s.port, redisPort, true)},
	})
}
