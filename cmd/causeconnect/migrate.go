package main

import (
	"context"
	"fmt"

	"causeconnect/internal/db"
	"causeconnect/internal/store"
	"causeconnect/migrations"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Apply the embedded SQL migrations",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c.String("env-prefix"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		applied, err := store.ApplyMigrations(ctx, pool, migrations.Files)
		if err != nil {
			return err
		}

		for _, name := range applied {
			logrus.WithField("migration", name).Info("applied")
		}
		logrus.Infof("%d migrations applied", len(applied))

		return nil
	},
}
