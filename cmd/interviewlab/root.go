package main

import (
	"github.com/spf13/cobra"

	"interviewlab/internal/config"
	"interviewlab/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:   "interviewlab",
	Short: "Adaptive interview research engine",
	Long: "interviewlab turns interview transcripts into evidence, keeps a set of\n" +
		"factor -> mechanism -> outcome propositions up to date and rewrites the\n" +
		"interviewer script after every interview.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Config file (YAML or JSON)")
	pf.StringVar(&rootFlags.dbPath, "db", "", "Store DB path (overrides config)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(checkScriptCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// loadConfig resolves the config file and environment, then applies the
// global flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Resolve(rootFlags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if rootFlags.dbPath != "" {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.Path = rootFlags.dbPath
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Log.Format = rootFlags.logFormat
	}
	return cfg, nil
}
