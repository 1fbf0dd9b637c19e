package config

import (
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Jobs     *jobsConfig
	Smtp     *smtpConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"querycsv"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"QUERYCSV_ADDRESS" default:":8080"`
	MetricsAddress  string `envconfig:"QUERYCSV_METRICS_ADDRESS" default:":8081"`
	LogLevel        string `envconfig:"QUERYCSV_LOG_LEVEL" default:"info"`
	DataDir         string `envconfig:"QUERYCSV_DATA_DIR" default:"/var/lib/querycsv"`
	CollectionsFile string `envconfig:"QUERYCSV_COLLECTIONS" default:"collections.yaml"`
	MigrationFolder string `envconfig:"QUERYCSV_MIGRATIONS_FOLDER" default:""`
}

type jobsConfig struct {
	Workers      int    `envconfig:"QUERYCSV_JOB_WORKERS" default:"5"`
	StaleLease   string `envconfig:"QUERYCSV_JOB_STALE_LEASE" default:"15m"`
	ReapInterval string `envconfig:"QUERYCSV_JOB_REAP_INTERVAL" default:"1m"`
	MaxAttempts  int    `envconfig:"QUERYCSV_JOB_MAX_ATTEMPTS" default:"3"`
}

type smtpConfig struct {
	Enabled  bool   `envconfig:"QUERYCSV_SMTP_ENABLED" default:"false"`
	Hostname string `envconfig:"QUERYCSV_SMTP_HOST" default:"localhost"`
	Port     int    `envconfig:"QUERYCSV_SMTP_PORT" default:"587"`
	Username string `envconfig:"QUERYCSV_SMTP_USER" default:""`
	Password string `envconfig:"QUERYCSV_SMTP_PASS" default:""`
	From     string `envconfig:"QUERYCSV_SMTP_FROM" default:"querycsv@localhost"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a configuration suitable for tests: in-memory sqlite
// and a throwaway data dir.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: "file::memory:?cache=shared"},
		Service:  &svcConfig{Address: ":0", LogLevel: "info", DataDir: "/tmp/querycsv"},
		Jobs:     &jobsConfig{Workers: 1, StaleLease: "15m", ReapInterval: "1m", MaxAttempts: 3},
		Smtp:     &smtpConfig{},
	}
}
