package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Neo4j     Neo4jConfig
	Milvus    MilvusConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	Engine    EngineConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
	Enabled        bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type EmbeddingConfig struct {
	APIKey string
	Model  string
	Dim    int
}

// EngineConfig centralizes the calibration constants used by the
// analyzers. The weight tables are defaults to be tuned empirically,
// not load-bearing business rules.
type EngineConfig struct {
	SimilarityThreshold float64
	RiskSimilarityFloor float64
	MaxSimilarProjects  int
	MinSimilarProjects  int
	MinRiskProbability  float64
	MinConfidence       float64
	EvolutionSlices     int
	CandidatePoolSize   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/engagement-agent")

	viper.SetEnvPrefix("ENGAGEMENT_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "project_contexts")
	viper.SetDefault("milvus.vectorDim", 1536)
	viper.SetDefault("milvus.enabled", true)

	viper.SetDefault("sqlite.path", "./data/engagement.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 1800)

	viper.SetDefault("embedding.model", "text-embedding-3-large")
	viper.SetDefault("embedding.dim", 1536)

	viper.SetDefault("engine.similarityThreshold", 0.5)
	viper.SetDefault("engine.riskSimilarityFloor", 0.6)
	viper.SetDefault("engine.maxSimilarProjects", 20)
	viper.SetDefault("engine.minSimilarProjects", 3)
	viper.SetDefault("engine.minRiskProbability", 0.3)
	viper.SetDefault("engine.minConfidence", 0.4)
	viper.SetDefault("engine.evolutionSlices", 4)
	viper.SetDefault("engine.candidatePoolSize", 50)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
