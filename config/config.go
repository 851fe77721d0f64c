package config

import (
	"fmt"
	"time"

	"github.com/robfig/config"
)

// DefaultPath is where the services look for their config file.
const DefaultPath string = "/etc/openhouse/portal.conf"

// Sections of the config file
const (
	APISection    string = "api"
	ClientSection string = "client"
)

// [api] keys
const (
	ListenPort = "listen_port"

	DatabaseDriver   = "database_driver"
	DatabaseHost     = "database_host"
	DatabasePort     = "database_port"
	DatabaseName     = "database_name"
	DatabaseUsername = "database_username"
	DatabasePassword = "database_password"
	DatabaseDSN      = "database_dsn"

	MemcachedHost = "memcached_host"
	MemcachedPort = "memcached_port"

	S3Endpoint        = "s3_endpoint"
	S3AccessKeyID     = "s3_access_key_id"
	S3SecretAccessKey = "s3_secret_access_key"
	S3Bucket          = "s3_bucket"
	S3UseSSL          = "s3_use_ssl"

	QRTokenSecret   = "qr_token_secret"
	PortalURL       = "portal_url"
	AllowDemoTokens = "allow_demo_tokens"

	DiagnosticFlowsPath = "diagnostic_flows_path"
	ListingTTLSeconds   = "listing_ttl_seconds"
)

// [client] keys
const (
	APIBaseURL          = "api_base_url"
	StaleAfterSeconds   = "stale_after_seconds"
	FetchTimeoutSeconds = "fetch_timeout_seconds"
	RefreshAttempts     = "refresh_attempts"
	SessionFile         = "session_file"
)

// DB holds what store.Open needs.
type DB struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	DSN      string
}

// ConnString returns the driver specific connection string.
func (d DB) ConnString() string {
	if d.Driver == "sqlite" {
		return d.DSN
	}
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"user=%s dbname=%s host=%s port=%d password=%s sslmode=%s",
		d.Username,
		d.Database,
		d.Host,
		d.Port,
		d.Password,
		"disable",
	)
}

// S3 holds object storage settings. An empty Endpoint disables presigning.
type S3 struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// API is the server side configuration.
type API struct {
	ListenPort int
	DB         DB

	// MemcachedHost empty means no shared listing cache.
	MemcachedHost string
	MemcachedPort int

	S3 S3

	QRTokenSecret   string
	PortalURL       string
	AllowDemoTokens bool

	DiagnosticFlowsPath string
	ListingTTL          time.Duration
}

// Client is the purchaser side configuration.
type Client struct {
	APIBaseURL      string
	StaleAfter      time.Duration
	FetchTimeout    time.Duration
	RefreshAttempts int
	SessionFile     string
}

// Config is the whole config file.
type Config struct {
	API    API
	Client Client
}

// reader wraps the raw config file and remembers the first error so that
// Load can read every key before reporting.
type reader struct {
	c   *config.Config
	err error
}

func (r *reader) str(section, key string) string {
	s, err := r.c.String(section, key)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s.%s: %w", section, key, err)
	}
	return s
}

func (r *reader) optStr(section, key, def string) string {
	if !r.c.HasOption(section, key) {
		return def
	}
	return r.str(section, key)
}

func (r *reader) optInt(section, key string, def int) int {
	if !r.c.HasOption(section, key) {
		return def
	}
	i, err := r.c.Int(section, key)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s.%s: %w", section, key, err)
	}
	return i
}

func (r *reader) optBool(section, key string, def bool) bool {
	if !r.c.HasOption(section, key) {
		return def
	}
	b, err := r.c.Bool(section, key)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s.%s: %w", section, key, err)
	}
	return b
}

// Defaults is the configuration used by client commands when there is no
// config file. It has no API section.
func Defaults() *Config {
	return &Config{
		Client: Client{
			APIBaseURL:      "http://localhost:8080",
			StaleAfter:      60 * time.Second,
			FetchTimeout:    30 * time.Second,
			RefreshAttempts: 3,
		},
	}
}

/*
Load reads the config file at path.

Only the keys every deployment needs are required: qr_token_secret, and the
database settings for the chosen driver. Everything else has a default.
A file without a [client] section is fine for the server and vice versa.
*/
func Load(path string) (*Config, error) {
	c, err := config.ReadDefault(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	r := &reader{c: c}
	cfg := &Config{}

	if c.HasSection(APISection) {
		api := &cfg.API
		api.ListenPort = r.optInt(APISection, ListenPort, 8080)

		api.DB.Driver = r.optStr(APISection, DatabaseDriver, "postgres")
		switch api.DB.Driver {
		case "postgres":
			api.DB.Host = r.str(APISection, DatabaseHost)
			api.DB.Port = r.optInt(APISection, DatabasePort, 5432)
			api.DB.Database = r.str(APISection, DatabaseName)
			api.DB.Username = r.str(APISection, DatabaseUsername)
			api.DB.Password = r.str(APISection, DatabasePassword)
		case "sqlite":
			api.DB.DSN = r.str(APISection, DatabaseDSN)
		default:
			return nil, fmt.Errorf("%s.%s: unsupported driver %q", APISection, DatabaseDriver, api.DB.Driver)
		}

		api.MemcachedHost = r.optStr(APISection, MemcachedHost, "")
		api.MemcachedPort = r.optInt(APISection, MemcachedPort, 11211)

		api.S3.Endpoint = r.optStr(APISection, S3Endpoint, "")
		if api.S3.Endpoint != "" {
			api.S3.AccessKeyID = r.str(APISection, S3AccessKeyID)
			api.S3.SecretAccessKey = r.str(APISection, S3SecretAccessKey)
			api.S3.Bucket = r.str(APISection, S3Bucket)
			api.S3.UseSSL = r.optBool(APISection, S3UseSSL, true)
		}

		api.QRTokenSecret = r.str(APISection, QRTokenSecret)
		api.PortalURL = r.optStr(APISection, PortalURL, "http://localhost:5000")
		api.AllowDemoTokens = r.optBool(APISection, AllowDemoTokens, false)

		api.DiagnosticFlowsPath = r.optStr(APISection, DiagnosticFlowsPath, "")
		api.ListingTTL = time.Duration(r.optInt(APISection, ListingTTLSeconds, 300)) * time.Second
	}

	cfg.Client = Defaults().Client
	if c.HasSection(ClientSection) {
		cl := &cfg.Client
		cl.APIBaseURL = r.optStr(ClientSection, APIBaseURL, cl.APIBaseURL)
		cl.StaleAfter = time.Duration(r.optInt(ClientSection, StaleAfterSeconds, 60)) * time.Second
		cl.FetchTimeout = time.Duration(r.optInt(ClientSection, FetchTimeoutSeconds, 30)) * time.Second
		cl.RefreshAttempts = r.optInt(ClientSection, RefreshAttempts, 3)
		cl.SessionFile = r.optStr(ClientSection, SessionFile, "")
	}

	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}
