package cli

import (
	"database/sql"
	"errors"

	"pricebot/internal/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the product database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Run: withDatabase(func(db *sql.DB, log *zap.Logger) error {
				return database.RunMigrations(db, log)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Run: withDatabase(func(db *sql.DB, log *zap.Logger) error {
				return database.RollbackMigration(db, log)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Run: withDatabase(func(db *sql.DB, log *zap.Logger) error {
				return database.GetMigrationStatus(db)
			}),
		},
	)

	RootCmd.AddCommand(cmd)
}

func withDatabase(fn func(db *sql.DB, log *zap.Logger) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		log := newLogger(cfg)
		defer log.Sync()

		svc, err := database.New(cfg.Database)
		if err != nil {
			exitErr("open database", err)
		}
		defer svc.Close()

		if health := svc.Health(); health["status"] != "up" {
			exitErr("open database", errors.New(health["error"]))
		}

		if err := fn(svc.DB(), log); err != nil {
			exitErr(cmd.Name(), err)
		}
	}
}
