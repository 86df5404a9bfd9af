package main

import (
	"errors"
	"os"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dharma-api",
		Short: "Dharma content tracker backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newImportCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("storage-driver", defaults.GetString("storage.driver"), "Document backend (file, sqlite)")
	cmd.PersistentFlags().String("storage-path", defaults.GetString("storage.path"), "JSON document path for the file backend")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path for the sqlite backend")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Admin cookie signing secret (overrides env)")
	cmd.PersistentFlags().Bool("cookie-secure", defaults.GetBool("auth.cookie_secure"), "Mark the admin cookie Secure")
	cmd.PersistentFlags().StringSlice("allowed-origins", nil, "CORS origins allowed to send credentials")
	cmd.PersistentFlags().Bool("metrics", defaults.GetBool("metrics.enabled"), "Expose Prometheus metrics at /metrics")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "storage.driver", "storage-driver")
	bindFlag(cmd, "storage.path", "storage-path")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.cookie_secure", "cookie-secure")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
	bindFlag(cmd, "metrics.enabled", "metrics")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}
