package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Knowledge KnowledgeConfig
	Retrieval RetrievalConfig
	Batch     BatchConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type LLMConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	EmbeddingModel  string
	Temperature     float32
	MaxTokens       int
	TimeoutSec      int
	EmbedTimeoutSec int
}

type KnowledgeConfig struct {
	// Path to a YAML rule catalog. Empty means the built-in catalog.
	Path string
}

type RetrievalConfig struct {
	TopK         int
	BuildWorkers int
}

type BatchConfig struct {
	Workers   int
	MaxLines  int
	OutputDir string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
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
	viper.AddConfigPath("/etc/crashlens")

	viper.SetEnvPrefix("CRASHLENS")
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
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 10485760)

	// Ollama's OpenAI-compatible endpoint. Any OpenAI-compatible
	// backend works by pointing baseURL elsewhere.
	viper.SetDefault("llm.baseURL", "http://localhost:11434/v1")
	viper.SetDefault("llm.apiKey", "ollama")
	viper.SetDefault("llm.model", "qwen3:4b")
	viper.SetDefault("llm.embeddingModel", "nomic-embed-text")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 120)
	viper.SetDefault("llm.embedTimeoutSec", 15)

	viper.SetDefault("knowledge.path", "")

	viper.SetDefault("retrieval.topK", 3)
	viper.SetDefault("retrieval.buildWorkers", 4)

	viper.SetDefault("batch.workers", 4)
	viper.SetDefault("batch.maxLines", 400)
	viper.SetDefault("batch.outputDir", ".")

	viper.SetDefault("sqlite.path", "./data/crashlens.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
