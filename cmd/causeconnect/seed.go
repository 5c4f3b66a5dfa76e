package main

import (
	"context"
	"fmt"

	"causeconnect/internal/db"
	"causeconnect/internal/seed"
	"causeconnect/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with an admin user and sample causes",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "admin-email",
			Usage:   "Email of the seeded admin user",
			EnvVars: []string{"SEED_ADMIN_EMAIL"},
			Value:   "admin@causeconnect.org",
		},
	},
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

		logrus.Info("Connected to database")

		userRepo := store.NewUserRepository(pool)
		causeRepo := store.NewCauseRepository(pool)

		admin, err := seed.SeedAdmin(ctx, userRepo, c.String("admin-email"))
		if err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		logrus.WithField("email", admin.Email).Info("Admin user ready")

		created, err := seed.SeedCauses(ctx, causeRepo, admin)
		if err != nil {
			return fmt.Errorf("failed to seed causes: %w", err)
		}
		logrus.Infof("Causes seeded successfully (%d created)", created)

		return nil
	},
}
