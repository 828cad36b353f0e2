package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gallery-tools/internal/api"
	"gallery-tools/internal/config"
	"gallery-tools/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// siteRootFlag holds the value of the --site-root flag
var siteRootFlag string

var logLevel string
var logFormat string

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the globally configured HTTP transport (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// osExit is swapped in tests.
var osExit = os.Exit

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gallery-tools",
	Short: "Maintenance tools for the photography site",
	Long: `gallery-tools registers new galleries in the site's gallery registry,
generates responsive image derivatives and commits/deploys site changes.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeTransport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func closeTransport() {
	if loggingTransport, ok := globalHttpTransport.(*api.LoggingTransport); ok && loggingTransport != nil {
		log.Debug("Closing API logging transport file.")
		if err := loggingTransport.Close(); err != nil {
			log.WithError(err).Error("Error closing API log file")
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigPath, "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log AI API requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().StringVar(&siteRootFlag, "site-root", "", "Site checkout to operate on (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Warnf("Invalid log level '%s', using default 'info'", logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch logFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.Warnf("Invalid log format '%s', using default 'text'", logFormat)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.Debugf("Logging configured: Level=%s, Format=%s", log.GetLevel(), logFormat)
}

// loadGlobalConfig loads .env and the TOML config, applies flag overrides and
// sets up the global HTTP transport.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.WithError(err).Warn("Failed to load .env")
		} else {
			log.Debug("Loaded environment from .env")
		}
	}

	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-api") {
		globalConfig.LogApiRequests = logApiFlag
		log.Debugf("Overriding LogApiRequests based on --log-api flag: %t", logApiFlag)
	}
	if cmd.Flags().Changed("site-root") {
		if siteRootFlag != "" {
			globalConfig.SiteRoot = siteRootFlag
			log.Debugf("Overriding SiteRoot based on --site-root flag: %s", siteRootFlag)
		} else {
			log.Warn("--site-root flag provided but value is empty, ignoring.")
		}
	}

	_ = viper.BindEnv("gemini_api_key", "GEMINI_API_KEY")
	if globalConfig.Commit.GenAIAPIKey == "" {
		globalConfig.Commit.GenAIAPIKey = viper.GetString("gemini_api_key")
	}

	globalHttpTransport = http.DefaultTransport
	if globalConfig.LogApiRequests {
		logFilePath := "api.log"
		if dir := filepath.Dir(config.Resolve(globalConfig, globalConfig.DatabasePath)); dirExists(dir) {
			logFilePath = filepath.Join(dir, logFilePath)
		}
		log.Infof("API logging to file: %s", logFilePath)

		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			globalHttpTransport = loggingTransport
		}
	}
	return nil
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
