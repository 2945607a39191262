package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/funnyzak/reqput/internal/config"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "reqput",
	Short: "Compose, send and catalog HTTP requests from plain text definitions",
	Long: `ReqPut turns short request definitions into HTTP requests, shows the responses
and keeps every successful request in a searchable catalog, scoped by group.

A definition starts with "METHOD URL" and may be followed by a YAML document with
path, query, header, params, form, json or body sections. Group variables are
written as $NAME or ${NAME} and substituted before parsing.
`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run:   showVersion,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Configuration file path")
	flags.StringP("group", "g", "", "Group id to work in (empty selects the default group)")
	flags.StringP("log-level", "l", "", "Log level (trace, debug, info, warn, error, fatal, panic)")
	flags.Bool("log-file-enable", false, "Enable file logging")
	flags.String("log-file-path", "", "Log file path")
	flags.Int("log-file-max-size", 0, "Maximum size of a single log file (MB)")
	flags.Int("log-file-max-backups", 0, "Maximum number of old log files to retain")
	flags.Int("log-file-max-age", 0, "Maximum retention days for old log files")
	flags.Bool("log-file-compress", false, "Whether to compress old log files")
	flags.StringP("output", "o", "", "Output mode (console, json)")
	flags.String("locale", "", "Console output language (en, zh-CN)")
	flags.String("db", "", "Catalog database path")
	flags.String("groups-file", "", "Group definitions file")
	flags.Int("timeout", 0, "Request timeout in seconds")
	flags.Bool("insecure", false, "Skip TLS certificate verification")

	bindFlags(rootCmd)

	rootCmd.AddCommand(
		versionCmd,
		newSendCmd(),
		newListCmd(),
		newShowCmd(),
		newRenameCmd(),
		newDeleteCmd(),
		newGroupsCmd(),
		newServeCmd(),
	)
}

func bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.file_logging.enable", flags.Lookup("log-file-enable"))
	viper.BindPFlag("log.file_logging.path", flags.Lookup("log-file-path"))
	viper.BindPFlag("log.file_logging.max_size_mb", flags.Lookup("log-file-max-size"))
	viper.BindPFlag("log.file_logging.max_backups", flags.Lookup("log-file-max-backups"))
	viper.BindPFlag("log.file_logging.max_age_days", flags.Lookup("log-file-max-age"))
	viper.BindPFlag("log.file_logging.compress", flags.Lookup("log-file-compress"))
	viper.BindPFlag("output.mode", flags.Lookup("output"))
	viper.BindPFlag("output.locale", flags.Lookup("locale"))
	viper.BindPFlag("storage.path", flags.Lookup("db"))
	viper.BindPFlag("groups.path", flags.Lookup("groups-file"))
	viper.BindPFlag("executor.timeout", flags.Lookup("timeout"))
	viper.BindPFlag("executor.tls_insecure_skip_verify", flags.Lookup("insecure"))
}

// loadConfig reads the configuration and applies command line overrides,
// which have the highest priority.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(configPath, viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	applyOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if v, err := flags.GetString("log-level"); err == nil && v != "" {
		cfg.Log.Level = v
	}
	if v, err := flags.GetBool("log-file-enable"); err == nil && flags.Changed("log-file-enable") {
		cfg.Log.FileLogging.Enable = v
	}
	if v, err := flags.GetString("log-file-path"); err == nil && v != "" {
		cfg.Log.FileLogging.Path = v
	}
	if v, err := flags.GetInt("log-file-max-size"); err == nil && v != 0 {
		cfg.Log.FileLogging.MaxSizeMB = v
	}
	if v, err := flags.GetInt("log-file-max-backups"); err == nil && v != 0 {
		cfg.Log.FileLogging.MaxBackups = v
	}
	if v, err := flags.GetInt("log-file-max-age"); err == nil && v != 0 {
		cfg.Log.FileLogging.MaxAgeDays = v
	}
	if v, err := flags.GetBool("log-file-compress"); err == nil && flags.Changed("log-file-compress") {
		cfg.Log.FileLogging.Compress = v
	}
	if v, err := flags.GetString("output"); err == nil && v != "" {
		cfg.Output.Mode = v
	}
	if v, err := flags.GetString("locale"); err == nil && v != "" {
		cfg.Output.Locale = v
	}
	if v, err := flags.GetString("db"); err == nil && v != "" {
		cfg.Storage.Path = v
	}
	if v, err := flags.GetString("groups-file"); err == nil && v != "" {
		cfg.Groups.Path = v
	}
	if v, err := flags.GetInt("timeout"); err == nil && v != 0 {
		cfg.Executor.Timeout = v
	}
	if v, err := flags.GetBool("insecure"); err == nil && flags.Changed("insecure") {
		cfg.Executor.TLSInsecureSkipVerify = v
	}
	if v, err := flags.GetInt("port"); err == nil && v != 0 {
		cfg.Web.Port = v
	}
	if v, err := flags.GetString("admin-path"); err == nil && v != "" {
		cfg.Web.AdminPath = v
	}
}

func showVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("ReqPut version %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Built: %s\n", buildDate)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
