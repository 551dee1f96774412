package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the application configuration structure.
// It contains settings for the environment, HTTP server, database connection,
// the scan engine and graceful shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout is the maximum time allowed for processing a single request.
		// The event stream endpoint is exempt, long-lived connections stay open.
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"10s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
	} `yaml:"http"`

	// Database contains all database connection related configurations
	Database struct {
		// Username for database authentication
		Username string `env:"DATABASE_USERNAME" env-default:"myuser" yaml:"username"`
		// Password for database authentication
		Password string `env:"DATABASE_PASSWORD" env-default:"mypassword" yaml:"password"`
		// Host is the database server hostname or IP address
		Host string `env:"DATABASE_HOST" env-default:"localhost" yaml:"host"`
		// Port is the database server port number
		Port int `env:"DATABASE_PORT" env-default:"5432" yaml:"port"`
		// SslMode defines the SSL mode for the database connection
		SslMode string `env:"DATABASE_SSL_MODE" env-default:"disable" yaml:"sslMode"`
		// DatabaseName is the name of the database to connect to
		DatabaseName string `env:"DATABASE_NAME" env-default:"bookmarks" yaml:"name"`
		// MaxOpenConnections limits the number of open connections to the database
		MaxOpenConnections int `env:"DATABASE_MAX_OPEN_CONNECTIONS" env-default:"10" yaml:"maxOpenConnections"`
		// MaxIdleConnections limits the number of connections in the idle connection pool
		MaxIdleConnections int `env:"DATABASE_MAX_IDLE_CONNECTIONS" env-default:"8" yaml:"maxIdleConnections"`
		// ConnMaxLifetime is the maximum amount of time a connection may be reused
		ConnMaxLifetime time.Duration `env:"DATABASE_CONNECTION_MAX_LIFETIME" env-default:"3m" yaml:"connMaxLifetime"`
		// ConnMaxIdleTime is the maximum amount of time a connection may be idle
		ConnMaxIdleTime time.Duration `env:"DATABASE_CONNECTION_MAX_IDLE_TIME" env-default:"3m" yaml:"connMaxIdleTime"`
	} `yaml:"database"`

	// Bookmarks configures where the bookmark tree is read from.
	Bookmarks struct {
		// FilePath points at an exported bookmark tree in JSON form.
		FilePath string `env:"BOOKMARKS_FILE_PATH" env-default:"bookmarks.json" yaml:"filePath"`
	} `yaml:"bookmarks"`

	// Checker configures the link reachability probes.
	Checker struct {
		// Timeout bounds each individual HEAD or GET attempt
		Timeout time.Duration `env:"CHECKER_TIMEOUT" env-default:"5s" yaml:"timeout"`
		// MaxConcurrent caps how many checks run at once across the whole engine
		MaxConcurrent int `env:"CHECKER_MAX_CONCURRENT" env-default:"10" yaml:"maxConcurrent"`
	} `yaml:"checker"`

	// Cache configures the persisted result caches.
	Cache struct {
		// TTL is how long a link or safety result stays reusable
		TTL time.Duration `env:"CACHE_TTL" env-default:"168h" yaml:"ttl"`
	} `yaml:"cache"`

	// Blocklist configures the threat feed aggregator.
	Blocklist struct {
		// SourceTimeout bounds the download of a single feed
		SourceTimeout time.Duration `env:"BLOCKLIST_SOURCE_TIMEOUT" env-default:"1m" yaml:"sourceTimeout"`
		// Sources overrides the built-in feed table when non-empty
		Sources []SourceConfig `yaml:"sources"`
	} `yaml:"blocklist"`

	// Safety configures the reputation providers. A provider with an empty
	// key is not consulted.
	Safety struct {
		// SafeBrowsingAPIKey enables the Google Safe Browsing lookup
		SafeBrowsingAPIKey string `env:"SAFETY_SAFE_BROWSING_API_KEY" env-default:"" yaml:"safeBrowsingApiKey"`
		// SafeBrowsingEndpoint overrides the Safe Browsing API endpoint
		SafeBrowsingEndpoint string `env:"SAFETY_SAFE_BROWSING_ENDPOINT" env-default:"" yaml:"safeBrowsingEndpoint"`
		// VirusTotalAPIKey enables the VirusTotal multi-engine lookup
		VirusTotalAPIKey string `env:"SAFETY_VIRUS_TOTAL_API_KEY" env-default:"" yaml:"virusTotalApiKey"`
		// VirusTotalBaseURL overrides the VirusTotal API base URL
		VirusTotalBaseURL string `env:"SAFETY_VIRUS_TOTAL_BASE_URL" env-default:"" yaml:"virusTotalBaseUrl"`
	} `yaml:"safety"`

	// Scan shapes the orchestrator's batch loop and result delivery.
	Scan struct {
		// BatchSize is how many bookmarks are dispatched per batch
		BatchSize int `env:"SCAN_BATCH_SIZE" env-default:"10" yaml:"batchSize"`
		// BatchDelay is the pause between consecutive batches
		BatchDelay time.Duration `env:"SCAN_BATCH_DELAY" env-default:"100ms" yaml:"batchDelay"`
		// ResultBuffer is how many results accumulate before a delivery
		ResultBuffer int `env:"SCAN_RESULT_BUFFER" env-default:"25" yaml:"resultBuffer"`
		// ResultFlush forces a delivery of whatever has accumulated
		ResultFlush time.Duration `env:"SCAN_RESULT_FLUSH" env-default:"500ms" yaml:"resultFlush"`
	} `yaml:"scan"`

	// JWT holds the RS256 key pair for API authentication. PrivateKey is only
	// needed by the jwt subcommand; the server verifies with PublicKey.
	JWT struct {
		PrivateKey string `env:"JWT_PRIVATE_KEY" env-default:"" yaml:"privateKey"`
		PublicKey  string `env:"JWT_PUBLIC_KEY" env-default:"" yaml:"publicKey"`
	} `yaml:"jwt"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// SourceConfig is one threat feed entry in the config file. Format must be
// one of hosts, domains or urlhaus_text.
type SourceConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Format string `yaml:"format"`
}

// Load receives the path for yaml config file and returns a filled Config struct.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}
