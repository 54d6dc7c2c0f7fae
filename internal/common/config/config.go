// internal/common/config/config.go
package config

import "fmt"

// Config is the root configuration of the notification service.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	HTTP         HTTPConfig              `mapstructure:"http"`
	Aggregation  AggregationConfig       `mapstructure:"aggregation"`
	Realtime     RealtimeConfig          `mapstructure:"realtime"`
	Delivery     DeliveryConfig          `mapstructure:"delivery"`
	Kafka        KafkaConfig             `mapstructure:"kafka"`
	RegistryPath string                  `mapstructure:"registry_path"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the lib/pq key/value connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the settings shared by every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig configures the API, health and metrics listener.
type HTTPConfig struct {
	Address         string   `mapstructure:"address"`
	JWTSecret       string   `mapstructure:"jwt_secret"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
}

// AggregationConfig tunes the notification read path.
type AggregationConfig struct {
	DefaultLimit     int `mapstructure:"default_limit"`
	MaxLimit         int `mapstructure:"max_limit"`
	MessageMaxLength int `mapstructure:"message_max_length"`
	SourceTimeout    int `mapstructure:"source_timeout"`   // milliseconds
	CacheTTL         int `mapstructure:"cache_ttl"`        // milliseconds
	AnnouncementTTL  int `mapstructure:"announcement_ttl"` // hours
	LeaveUrgencyDays int `mapstructure:"leave_urgency_days"`
}

// RealtimeConfig configures the Postgres LISTEN/NOTIFY change feed.
type RealtimeConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	InstallTriggers      bool `mapstructure:"install_triggers"`
	MinReconnectInterval int  `mapstructure:"min_reconnect_interval"` // milliseconds
	MaxReconnectInterval int  `mapstructure:"max_reconnect_interval"` // milliseconds
	PingInterval         int  `mapstructure:"ping_interval"`          // milliseconds
	BufferSize           int  `mapstructure:"buffer_size"`
}

// DeliveryConfig configures email and SMS fan-out of advanced notifications.
type DeliveryConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`
}

// KafkaConfig configures notification event publication.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}
