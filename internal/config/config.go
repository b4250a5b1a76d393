// Package config provides configuration management for Landscaper.
//
// Configuration is loaded from YAML files, .env files and environment
// variables (LS_ prefix), in increasing order of precedence:
//  1. Default values (hardcoded)
//  2. Configuration files (./config.yaml, ./configs/config.yaml,
//     ~/.landscaper/config.yaml, /etc/landscaper/config.yaml)
//  3. .env files
//  4. Environment variables (LS_ prefix)
//
// Example:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Neo4j: %s\n", cfg.Neo4j.URL)
//
// Environment variables use underscores for nested keys:
//   - LS_SERVER_PORT=9001
//   - LS_NEO4J_URL=bolt://localhost:7687
//   - LS_GENERAL_FLUSH=true
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for Landscaper.
type Config struct {
	// Server contains HTTP server configuration
	Server ServerConfig `mapstructure:"server"`

	// Neo4j contains graph database connection settings
	Neo4j Neo4jConfig `mapstructure:"neo4j"`

	// RabbitMQ contains OpenStack notification bus settings
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`

	// OpenStack contains OpenStack API client settings
	OpenStack OpenStackConfig `mapstructure:"openstack"`

	// PhysicalLayer configures the hardware collectors
	PhysicalLayer PhysicalLayerConfig `mapstructure:"physical_layer"`

	// Docker contains swarm manager connection settings
	Docker DockerConfig `mapstructure:"docker"`

	// General selects the active collectors and listeners
	General GeneralConfig `mapstructure:"general"`

	// Security contains rate limiting and CORS settings
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address
	Host string `mapstructure:"host"`

	// Port is the server listen port
	Port int `mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Debug enables debug logging
	Debug bool `mapstructure:"debug"`

	// TLSEnabled enables HTTPS
	TLSEnabled bool `mapstructure:"tls_enabled"`

	// TLSCert is the path to the TLS certificate file
	TLSCert string `mapstructure:"tls_cert"`

	// TLSKey is the path to the TLS private key file
	TLSKey string `mapstructure:"tls_key"`
}

// Neo4jConfig contains graph database connection settings.
type Neo4jConfig struct {
	// URL is the bolt URL of the database (e.g. bolt://localhost:7687)
	URL string `mapstructure:"url"`

	// Username for database authentication
	Username string `mapstructure:"username"`

	// Password for database authentication
	Password string `mapstructure:"password"`

	// ConnectTimeout bounds the startup wait for the database. The
	// process polls until the database answers or the timeout elapses.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// RetryInterval is the pause between startup connection attempts
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// RabbitMQConfig contains the OpenStack notification bus settings.
type RabbitMQConfig struct {
	// Host of the RabbitMQ broker
	Host string `mapstructure:"host"`

	// Port of the RabbitMQ broker
	Port int `mapstructure:"port"`

	// Username for broker authentication
	Username string `mapstructure:"username"`

	// Password for broker authentication
	Password string `mapstructure:"password"`

	// Exchanges are the topic exchanges carrying service notifications
	Exchanges []string `mapstructure:"exchanges"`

	// Queue is the notification queue bound to each exchange
	Queue string `mapstructure:"queue"`

	// Topic is the routing key used for the queue bindings
	Topic string `mapstructure:"topic"`

	// Retries is the number of reconnection attempts after a broken
	// connection
	Retries int `mapstructure:"retries"`
}

// URL returns the amqp connection string for the broker.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}

// OpenStackConfig contains OpenStack API client settings. Credentials are
// taken from the standard OS_* environment variables.
type OpenStackConfig struct {
	// Region selects the OpenStack region, empty for the default
	Region string `mapstructure:"region"`
}

// PhysicalLayerConfig configures the hardware collectors.
type PhysicalLayerConfig struct {
	// HwlocFolder holds one <machine>_hwloc.xml per physical machine
	HwlocFolder string `mapstructure:"hwloc_folder"`

	// CPUInfoFolder holds one <machine>_cpuinfo.txt per physical machine
	CPUInfoFolder string `mapstructure:"cpuinfo_folder"`

	// TypesToFilter are hardware node types dropped from the landscape
	TypesToFilter []string `mapstructure:"types_to_filter"`

	// CoordinatesFile maps component names to latitude/longitude
	CoordinatesFile string `mapstructure:"coordinates_file"`

	// GeoTypes are the node types that accept coordinate updates
	GeoTypes []string `mapstructure:"geo_types"`
}

// DockerConfig contains swarm manager connection settings.
type DockerConfig struct {
	// Host is the docker daemon address (tcp://host:port or unix socket)
	Host string `mapstructure:"host"`

	// ClientCert is the path to the TLS client certificate
	ClientCert string `mapstructure:"client_cert"`

	// ClientKey is the path to the TLS client key
	ClientKey string `mapstructure:"client_key"`
}

// GeneralConfig selects the active collectors and listeners.
type GeneralConfig struct {
	// Collectors is the ordered list of collectors to run. Order
	// matters: the physical layer must be built before the virtual one.
	Collectors []string `mapstructure:"collectors"`

	// EventListeners is the list of listeners to start
	EventListeners []string `mapstructure:"event_listeners"`

	// Flush tears down and rebuilds the whole landscape on startup
	Flush bool `mapstructure:"flush"`
}

// SecurityConfig contains rate limiting and CORS settings.
type SecurityConfig struct {
	// RateLimit is the maximum requests per second per client
	RateLimit int `mapstructure:"rate_limit"`

	// AllowedOrigins are the CORS allowed origins
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var cfg *Config

// Load reads configuration from a file and environment variables. If
// cfgFile is empty, config.yaml is searched in the standard locations.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.landscaper")
		v.AddConfigPath("/etc/landscaper")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.MergeInConfig() // Ignore error if .env file doesn't exist

	v.SetEnvPrefix("LS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9001)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.tls_enabled", false)

	v.SetDefault("neo4j.url", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.connect_timeout", "5m")
	v.SetDefault("neo4j.retry_interval", "5s")

	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.username", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.exchanges", []string{"nova", "neutron", "cinder", "heat"})
	v.SetDefault("rabbitmq.queue", "landscaper-notifications")
	v.SetDefault("rabbitmq.topic", "notifications.info")
	v.SetDefault("rabbitmq.retries", 10)

	v.SetDefault("physical_layer.hwloc_folder", "./data")
	v.SetDefault("physical_layer.cpuinfo_folder", "./data")
	v.SetDefault("physical_layer.types_to_filter", []string{})
	v.SetDefault("physical_layer.coordinates_file", "./data/coordinates.json")
	v.SetDefault("physical_layer.geo_types", []string{"machine", "rack"})

	v.SetDefault("docker.host", "unix:///var/run/docker.sock")

	v.SetDefault("general.collectors", []string{"hwloc"})
	v.SetDefault("general.event_listeners", []string{})
	v.SetDefault("general.flush", false)

	v.SetDefault("security.rate_limit", 100)
	v.SetDefault("security.allowed_origins", []string{"*"})
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Neo4j.URL == "" {
		return fmt.Errorf("neo4j url is required")
	}

	if len(cfg.General.Collectors) == 0 {
		return fmt.Errorf("at least one collector is required")
	}

	return nil
}

// Get returns the configuration loaded by the last call to Load.
func Get() *Config {
	return cfg
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
