package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bcnfacilities/sentiflow/internal/api"
	"github.com/bcnfacilities/sentiflow/internal/models"
	"github.com/bcnfacilities/sentiflow/internal/series"
)

// Config holds all configuration for the downloader.
type Config struct {
	Server     ServerConfig            `mapstructure:"server"`
	Sentilo    api.FetcherConfig       `mapstructure:"sentilo"`
	Sensors    SensorsConfig           `mapstructure:"sensors"`
	Output     OutputConfig            `mapstructure:"output"`
	Classifier series.ClassifierConfig `mapstructure:"classifier"`
	Alignment  AlignmentConfig         `mapstructure:"alignment"`
	Derived    []models.DerivedSpec    `mapstructure:"derived"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type SensorsConfig struct {
	File            string `mapstructure:"file"`
	DefaultProvider string `mapstructure:"default_provider"`
	DefaultTokenEnv string `mapstructure:"default_token_env"`
}

type OutputConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	IndexFile string `mapstructure:"index_file"`
}

type AlignmentConfig struct {
	Granularity      time.Duration `mapstructure:"granularity"`
	ZeroFillOptional bool          `mapstructure:"zero_fill_optional"`
}

// Policy converts the config block into the derivation engine's policy.
func (a AlignmentConfig) Policy() series.AlignmentPolicy {
	p := series.DefaultAlignmentPolicy()
	if a.Granularity > 0 {
		p.Granularity = a.Granularity
	}
	p.ZeroFillOptional = a.ZeroFillOptional
	return p
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ConnString renders the lib/pq connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the YAML file at path, layered over
// defaults, with SENTIFLOW_* environment variables taking precedence
// (SENTIFLOW_DATABASE_PASSWORD overrides database.password, etc.).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("SENTIFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")

	v.SetDefault("sentilo.url", "http://connectaapi.bcn.cat/data")
	v.SetDefault("sentilo.limit_energy", 250)
	v.SetDefault("sentilo.limit_instant", 1)
	v.SetDefault("sentilo.timeout", "30s")
	v.SetDefault("sentilo.rate_limit", 5.0)
	v.SetDefault("sentilo.rate_burst", 10)

	v.SetDefault("sensors.file", "sensors.csv")
	v.SetDefault("sensors.default_provider", "SIGE_PR_0190")
	v.SetDefault("sensors.default_token_env", "SENTILO_TOKEN")

	v.SetDefault("output.data_dir", "datos_sensores")
	v.SetDefault("output.index_file", "indice_sensores.json")

	v.SetDefault("alignment.granularity", "1m")
	v.SetDefault("alignment.zero_fill_optional", true)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
