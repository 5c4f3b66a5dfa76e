package main

import (
	"context"
	"fmt"

	"causeconnect/internal/db"
	"causeconnect/internal/store"
	"causeconnect/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "Pretty-print a cause with its sponsors and claims",
	ArgsUsage: "<causeId>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
	},
	Action: func(c *cli.Context) error {
		causeID := c.Args().First()
		if causeID == "" {
			return fmt.Errorf("cause id is required")
		}

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

		cause, err := store.NewCauseRepository(pool).Cause(ctx, causeID)
		if err != nil {
			return err
		}

		claims, _, err := store.NewClaimRepository(pool).Claims(ctx, types.ClaimFilter{CauseID: causeID, Limit: 100})
		if err != nil {
			return err
		}

		printer := pp.New()
		printer.SetColoringEnabled(!c.Bool("no-color"))
		printer.Println(cause)
		printer.Println(claims)

		return nil
	},
}
