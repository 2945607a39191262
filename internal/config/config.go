package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Executor ExecutorConfig `yaml:"executor" mapstructure:"executor"`
	Groups   GroupsConfig   `yaml:"groups" mapstructure:"groups"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Web      WebConfig      `yaml:"web" mapstructure:"web"`
}

// LogConfig log configuration
type LogConfig struct {
	Level       string        `yaml:"level" mapstructure:"level"`
	FileLogging FileLogConfig `yaml:"file_logging" mapstructure:"file_logging"`
}

// FileLogConfig file log configuration
type FileLogConfig struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// StorageConfig catalog persistence
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
	// ListLimit caps the number of rows returned by a list query
	ListLimit int `yaml:"list_limit" mapstructure:"list_limit"`
}

// ExecutorConfig HTTP client settings. Durations are in seconds.
type ExecutorConfig struct {
	Timeout               int    `yaml:"timeout" mapstructure:"timeout"`
	MaxRedirects          int    `yaml:"max_redirects" mapstructure:"max_redirects"`
	MaxIdleConns          int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost   int    `yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout       int    `yaml:"idle_conn_timeout" mapstructure:"idle_conn_timeout"`
	ResponseHeaderTimeout int    `yaml:"response_header_timeout" mapstructure:"response_header_timeout"`
	TLSHandshakeTimeout   int    `yaml:"tls_handshake_timeout" mapstructure:"tls_handshake_timeout"`
	TLSInsecureSkipVerify bool   `yaml:"tls_insecure_skip_verify" mapstructure:"tls_insecure_skip_verify"`
	UserAgent             string `yaml:"user_agent" mapstructure:"user_agent"`
}

// GroupsConfig locates the group definitions file
type GroupsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputConfig controls CLI output style
type OutputConfig struct {
	Mode     string         `yaml:"mode" mapstructure:"mode"`
	Locale   string         `yaml:"locale" mapstructure:"locale"`
	BodyView BodyViewConfig `yaml:"body_view" mapstructure:"body_view"`
}

// BodyViewConfig controls response body formatting
type BodyViewConfig struct {
	JSONPretty      bool `yaml:"json_pretty" mapstructure:"json_pretty"`
	HTMLPretty      bool `yaml:"html_pretty" mapstructure:"html_pretty"`
	MaxPreviewBytes int  `yaml:"max_preview_bytes" mapstructure:"max_preview_bytes"`
}

// WebConfig JSON API configuration
type WebConfig struct {
	Enable    bool   `yaml:"enable" mapstructure:"enable"`
	Port      int    `yaml:"port" mapstructure:"port"`
	AdminPath string `yaml:"admin_path" mapstructure:"admin_path"`
}

// TimeoutDuration returns the overall request timeout
func (e ExecutorConfig) TimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}

// LoadConfig load configuration
// If v is nil, a new viper instance will be created
func LoadConfig(configPath string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix("REQPUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.reqput")
		v.AddConfigPath("/etc/reqput")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Printf("Config file loaded: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Unmarshal leaves zero values for keys bound to flags that were not set
	applyDefaults(&config, v)

	return &config, nil
}

// applyDefaults fills zero-value fields from viper. Command line flags are
// applied in main.go afterwards so they keep the highest priority.
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = v.GetString("log.level")
	}
	cfg.Log.FileLogging.Enable = v.GetBool("log.file_logging.enable")
	cfg.Log.FileLogging.Compress = v.GetBool("log.file_logging.compress")
	if cfg.Log.FileLogging.Path == "" {
		cfg.Log.FileLogging.Path = v.GetString("log.file_logging.path")
	}
	if cfg.Log.FileLogging.MaxSizeMB == 0 {
		cfg.Log.FileLogging.MaxSizeMB = v.GetInt("log.file_logging.max_size_mb")
	}
	if cfg.Log.FileLogging.MaxBackups == 0 {
		cfg.Log.FileLogging.MaxBackups = v.GetInt("log.file_logging.max_backups")
	}
	if cfg.Log.FileLogging.MaxAgeDays == 0 {
		cfg.Log.FileLogging.MaxAgeDays = v.GetInt("log.file_logging.max_age_days")
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = v.GetString("storage.driver")
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = v.GetString("storage.path")
	}
	if cfg.Storage.ListLimit == 0 {
		cfg.Storage.ListLimit = v.GetInt("storage.list_limit")
	}

	if cfg.Executor.Timeout == 0 {
		cfg.Executor.Timeout = v.GetInt("executor.timeout")
	}
	if cfg.Executor.MaxRedirects == 0 {
		cfg.Executor.MaxRedirects = v.GetInt("executor.max_redirects")
	}
	if cfg.Executor.MaxIdleConns == 0 {
		cfg.Executor.MaxIdleConns = v.GetInt("executor.max_idle_conns")
	}
	if cfg.Executor.MaxIdleConnsPerHost == 0 {
		cfg.Executor.MaxIdleConnsPerHost = v.GetInt("executor.max_idle_conns_per_host")
	}
	if cfg.Executor.IdleConnTimeout == 0 {
		cfg.Executor.IdleConnTimeout = v.GetInt("executor.idle_conn_timeout")
	}
	if cfg.Executor.ResponseHeaderTimeout == 0 {
		cfg.Executor.ResponseHeaderTimeout = v.GetInt("executor.response_header_timeout")
	}
	if cfg.Executor.TLSHandshakeTimeout == 0 {
		cfg.Executor.TLSHandshakeTimeout = v.GetInt("executor.tls_handshake_timeout")
	}
	cfg.Executor.TLSInsecureSkipVerify = v.GetBool("executor.tls_insecure_skip_verify")
	if cfg.Executor.UserAgent == "" {
		cfg.Executor.UserAgent = v.GetString("executor.user_agent")
	}

	if cfg.Groups.Path == "" {
		cfg.Groups.Path = v.GetString("groups.path")
	}

	if cfg.Output.Mode == "" {
		cfg.Output.Mode = v.GetString("output.mode")
	}
	if cfg.Output.Locale == "" {
		cfg.Output.Locale = v.GetString("output.locale")
	}
	cfg.Output.BodyView.JSONPretty = v.GetBool("output.body_view.json_pretty")
	cfg.Output.BodyView.HTMLPretty = v.GetBool("output.body_view.html_pretty")
	if cfg.Output.BodyView.MaxPreviewBytes == 0 {
		cfg.Output.BodyView.MaxPreviewBytes = v.GetInt("output.body_view.max_preview_bytes")
	}

	cfg.Web.Enable = v.GetBool("web.enable")
	if cfg.Web.Port == 0 {
		cfg.Web.Port = v.GetInt("web.port")
	}
	if cfg.Web.AdminPath == "" {
		cfg.Web.AdminPath = v.GetString("web.admin_path")
	}
}

// setDefaults set default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_logging.enable", false)
	v.SetDefault("log.file_logging.path", "./reqput.log")
	v.SetDefault("log.file_logging.max_size_mb", 10)
	v.SetDefault("log.file_logging.max_backups", 5)
	v.SetDefault("log.file_logging.max_age_days", 30)
	v.SetDefault("log.file_logging.compress", true)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "./data/reqput.db")
	v.SetDefault("storage.list_limit", 200)

	v.SetDefault("executor.timeout", 30)
	v.SetDefault("executor.max_redirects", 10)
	v.SetDefault("executor.max_idle_conns", 100)
	v.SetDefault("executor.max_idle_conns_per_host", 10)
	v.SetDefault("executor.idle_conn_timeout", 90)
	v.SetDefault("executor.response_header_timeout", 0)
	v.SetDefault("executor.tls_handshake_timeout", 10)
	v.SetDefault("executor.tls_insecure_skip_verify", false)
	v.SetDefault("executor.user_agent", "reqput")

	v.SetDefault("groups.path", "./group.json")

	v.SetDefault("output.mode", "console")
	v.SetDefault("output.locale", "en")
	v.SetDefault("output.body_view.json_pretty", true)
	v.SetDefault("output.body_view.html_pretty", false)
	v.SetDefault("output.body_view.max_preview_bytes", int(64*1024))

	v.SetDefault("web.enable", false)
	v.SetDefault("web.port", 38889)
	v.SetDefault("web.admin_path", "/api")
}

// Validate checks the configuration and normalizes a few optional fields
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.Mode) {
	case "", "console", "json":
		if c.Output.Mode == "" {
			c.Output.Mode = "console"
		}
	default:
		return fmt.Errorf("output mode must be 'console' or 'json'")
	}
	if c.Output.BodyView.MaxPreviewBytes < 0 {
		return fmt.Errorf("output.body_view.max_preview_bytes cannot be negative")
	}
	if strings.TrimSpace(c.Output.Locale) == "" {
		c.Output.Locale = "en"
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Driver) == "" {
			c.Storage.Driver = "sqlite"
		}
	default:
		return fmt.Errorf("storage driver must be sqlite")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage path cannot be empty")
	}
	if c.Storage.ListLimit < 1 {
		return fmt.Errorf("storage list_limit must be at least 1")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.FileLogging.Enable {
		if c.Log.FileLogging.Path == "" {
			return fmt.Errorf("log file path cannot be empty when file logging is enabled")
		}
		if c.Log.FileLogging.MaxSizeMB < 1 {
			return fmt.Errorf("log file max size must be at least 1MB")
		}
		if c.Log.FileLogging.MaxBackups < 0 {
			return fmt.Errorf("log file max backups cannot be negative")
		}
		if c.Log.FileLogging.MaxAgeDays < 0 {
			return fmt.Errorf("log file max age cannot be negative")
		}
	}

	if c.Executor.Timeout < 0 {
		return fmt.Errorf("executor timeout cannot be negative")
	}
	if c.Executor.MaxRedirects < 0 {
		return fmt.Errorf("executor max redirects cannot be negative")
	}
	if c.Executor.IdleConnTimeout < 0 || c.Executor.ResponseHeaderTimeout < 0 || c.Executor.TLSHandshakeTimeout < 0 {
		return fmt.Errorf("executor timeouts cannot be negative")
	}

	if strings.TrimSpace(c.Groups.Path) == "" {
		return fmt.Errorf("groups path cannot be empty")
	}

	if c.Web.Enable {
		if c.Web.Port < 1 || c.Web.Port > 65535 {
			return fmt.Errorf("invalid web port: %d (must be 1-65535)", c.Web.Port)
		}
		if c.Web.AdminPath == "" {
			return fmt.Errorf("web admin path cannot be empty")
		}
		if !strings.HasPrefix(c.Web.AdminPath, "/") {
			return fmt.Errorf("web admin path must start with '/'")
		}
	}

	return nil
}
