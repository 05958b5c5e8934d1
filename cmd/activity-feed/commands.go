package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/activity-feed/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "activity-feed",
	Short:   "Activity log with a per-user important changes feed",
	Long:    `Records every change made to tracked entities and serves each user the recent changes others made to entities they created or edited.`,
	Version: AppVersion,
	RunE:    runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runServer(cfg)
}

// migrateCmd applies pending schema migrations and exits
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newCLIApplication()
		if err != nil {
			return err
		}
		defer app.Stop()

		stats, err := app.storage.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Schema at version %d (%s)\n", stats.SchemaVersion, stats.Backend)
		return nil
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("activity-feed %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Database: %s\n", cfg.Storage.Type)
		fmt.Printf("Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("JWT auth: %t\n", cfg.Auth.JWTSecret != "")
		return nil
	},
}

var (
	feedTeam   int64
	feedUser   string
	bookmarkAt string
)

// feedCmd prints a user's important changes
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print a user's important changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newCLIApplication()
		if err != nil {
			return err
		}
		defer app.Stop()

		result, err := app.feed.ImportantChanges(cmd.Context(), feedTeam, feedUser)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// bookmarkCmd advances a user's watermark
var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Mark a user's important changes as read up to a time",
	RunE: func(cmd *cobra.Command, args []string) error {
		at := time.Now().UTC()
		if bookmarkAt != "" {
			parsed, err := time.Parse(time.RFC3339Nano, bookmarkAt)
			if err != nil {
				return fmt.Errorf("invalid --at value: %w", err)
			}
			at = parsed
		}

		app, err := newCLIApplication()
		if err != nil {
			return err
		}
		defer app.Stop()

		if err := app.feed.Bookmark(cmd.Context(), feedTeam, feedUser, at); err != nil {
			return err
		}
		fmt.Printf("✓ Bookmarked %s for user %s in team %d\n", at.Format(time.RFC3339Nano), feedUser, feedTeam)
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newCLIApplication() (*Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return NewApplication(cfg, false)
}

// init initializes the CLI commands
func init() {
	// Add persistent flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	for _, cmd := range []*cobra.Command{feedCmd, bookmarkCmd} {
		cmd.Flags().Int64Var(&feedTeam, "team", 0, "team (project) id")
		cmd.Flags().StringVar(&feedUser, "user", "", "user id")
		cmd.MarkFlagRequired("team")
		cmd.MarkFlagRequired("user")
	}
	bookmarkCmd.Flags().StringVar(&bookmarkAt, "at", "", "bookmark time (RFC 3339, defaults to now)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(bookmarkCmd)
	configCmd.AddCommand(validateConfigCmd)
}
