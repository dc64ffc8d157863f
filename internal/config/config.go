package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all pipeline settings
type Config struct {
	Neo4j   Neo4jConfig   `mapstructure:"neo4j"`
	Source  SourceConfig  `mapstructure:"source"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Load    LoadConfig    `mapstructure:"load"`
	Staging StagingConfig `mapstructure:"staging"`
	Logging LoggingConfig `mapstructure:"logging"`

	// ReportPath receives the YAML run report; empty disables it
	ReportPath string `mapstructure:"report_path"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// SourceConfig locates the registry extract
type SourceConfig struct {
	DownloadURL     string        `mapstructure:"download_url"`
	DataDir         string        `mapstructure:"data_dir"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// FilterConfig selects which studies enter the graph
type FilterConfig struct {
	MinStudies int      `mapstructure:"min_studies"`
	Phases     []string `mapstructure:"phases"`
	Statuses   []string `mapstructure:"statuses"`
}

type LoadConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout bounds each batch round trip
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	SetupSchema  bool          `mapstructure:"setup_schema"`
}

type StagingConfig struct {
	Type string `mapstructure:"type"` // "sqlite", "postgres", "none"
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

// DefaultAACTURL serves the monthly pipe-delimited export
const DefaultAACTURL = "https://aact.ctti-clinicaltrials.org/static/exported_files/monthly/pipe_delimited_files.zip"

// Default returns default configuration
func Default() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Password: "password",
			Database: "neo4j",
		},
		Source: SourceConfig{
			DownloadURL:     DefaultAACTURL,
			DataDir:         filepath.Join("data", "raw"),
			DownloadTimeout: 10 * time.Minute,
		},
		Filter: FilterConfig{
			MinStudies: 500,
			Phases:     []string{"Phase 1", "Phase 2", "Phase 3", "Phase 4", "Not Applicable"},
			Statuses:   []string{"RECRUITING", "ACTIVE_NOT_RECRUITING", "COMPLETED", "ENROLLING_BY_INVITATION"},
		},
		Load: LoadConfig{
			BatchSize:    1000,
			BatchTimeout: 3 * time.Minute,
			SetupSchema:  true,
		},
		Staging: StagingConfig{
			Type: "sqlite",
			Path: filepath.Join("data", "staged", "staged.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join("logs", "pipeline.log"),
		},
		ReportPath: filepath.Join("data", "staged", "report.yaml"),
	}
}

// Load reads configuration from defaults, an optional YAML file,
// TRIALGRAPH_* variables and the plain variable names used by .env files.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	v.SetEnvPrefix("TRIALGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("trialgraph")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can bind it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("neo4j.uri", cfg.Neo4j.URI)
	v.SetDefault("neo4j.user", cfg.Neo4j.User)
	v.SetDefault("neo4j.password", cfg.Neo4j.Password)
	v.SetDefault("neo4j.database", cfg.Neo4j.Database)
	v.SetDefault("source.download_url", cfg.Source.DownloadURL)
	v.SetDefault("source.data_dir", cfg.Source.DataDir)
	v.SetDefault("source.download_timeout", cfg.Source.DownloadTimeout)
	v.SetDefault("filter.min_studies", cfg.Filter.MinStudies)
	v.SetDefault("filter.phases", cfg.Filter.Phases)
	v.SetDefault("filter.statuses", cfg.Filter.Statuses)
	v.SetDefault("load.batch_size", cfg.Load.BatchSize)
	v.SetDefault("load.batch_timeout", cfg.Load.BatchTimeout)
	v.SetDefault("load.setup_schema", cfg.Load.SetupSchema)
	v.SetDefault("staging.type", cfg.Staging.Type)
	v.SetDefault("staging.path", cfg.Staging.Path)
	v.SetDefault("staging.dsn", cfg.Staging.DSN)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.json", cfg.Logging.JSON)
	v.SetDefault("report_path", cfg.ReportPath)
}

// loadEnvFiles loads .env files; earlier files win since godotenv never
// overwrites variables that are already set.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

// applyEnvOverrides maps the unprefixed variable names onto the config
func applyEnvOverrides(cfg *Config) {
	cfg.Neo4j.URI = GetString("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = GetString("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = GetString("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = GetString("NEO4J_DATABASE", cfg.Neo4j.Database)

	cfg.Source.DownloadURL = GetString("AACT_DOWNLOAD_URL", cfg.Source.DownloadURL)
	cfg.Source.DataDir = expandPath(GetString("AACT_DATA_DIR", cfg.Source.DataDir))

	cfg.Filter.MinStudies = GetInt("MIN_STUDIES", cfg.Filter.MinStudies)
	cfg.Filter.Phases = GetList("PHASES", cfg.Filter.Phases)
	cfg.Filter.Statuses = GetList("STATUS_LIST", cfg.Filter.Statuses)

	cfg.Load.BatchSize = GetInt("BATCH_SIZE", cfg.Load.BatchSize)

	cfg.Staging.Type = GetString("STAGING_TYPE", cfg.Staging.Type)
	cfg.Staging.Path = expandPath(GetString("STAGING_PATH", cfg.Staging.Path))
	cfg.Staging.DSN = GetString("STAGING_DSN", cfg.Staging.DSN)

	cfg.Logging.Level = GetString("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = GetString("LOG_FILE", cfg.Logging.File)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, path[1:])
}
