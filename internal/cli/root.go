// Package cli implements the pricebot operator commands.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"pricebot/internal/config"
	"pricebot/internal/database"
	"pricebot/internal/logger"
	"pricebot/internal/server"
	"pricebot/internal/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile    string
	sourceFlag string
	serverFlag string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "pricebot",
	Short: "Chat with your product catalog",
	Long:  "Operator tooling for PriceBot: a terminal chat, catalog listing, migrations and dev tokens.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			exitErr("load env file", err)
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	RootCmd.PersistentFlags().StringVarP(&sourceFlag, "source", "s", "", "Product source: postgres or api (default: $CHAT_PRODUCT_SOURCE)")
	RootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Backend API URL (default: $BACKEND_URL)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
}

// loadConfig reads the environment and applies command-line overrides
func loadConfig() *config.Config {
	cfg := config.Load()
	if sourceFlag != "" {
		cfg.Chat.ProductSource = sourceFlag
	}
	if serverFlag != "" {
		cfg.Backend.URL = serverFlag
	}
	return cfg
}

func newLogger(cfg *config.Config) *zap.Logger {
	log, err := logger.New(cfg.Server.Env, logLevel)
	if err != nil {
		exitErr("init logger", err)
	}
	return log
}

// openProducts connects to the configured product source. The returned
// func releases the database, if one was opened.
func openProducts(cfg *config.Config, log *zap.Logger) (service.ProductService, func(), error) {
	var db database.Service
	closeFn := func() {}

	if cfg.Chat.ProductSource == config.ProductSourcePostgres {
		var err error
		db, err = database.New(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { db.Close() }
	}

	products, err := server.NewProductService(cfg, log, db)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return products, closeFn, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
