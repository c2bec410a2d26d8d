// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MKhiriev/phi-guard/internal/app"
	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/service"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/urfave/cli/v3"
)

// errChainBroken makes verify-chain exit non-zero after printing the result.
var errChainBroken = errors.New("audit chain verification failed")

func actorFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "actor",
		Usage:    "operator identity written into the audit trail",
		Sources:  cli.EnvVars("GUARDCTL_ACTOR", "USER"),
		Required: true,
	}
}

func newRootCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "guardctl",
		Usage:     "operate the phi-guard persistence guard",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "JSON config file; environment variables take precedence",
				Sources: cli.EnvVars("CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log to stderr",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			verifyChainCommand(),
			rotateKeyCommand(),
			retireKeyCommand(),
			sweepCommand(),
			pendingCommand(),
			genKeyCommand(),
			issueTokenCommand(),
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending schema migrations",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}

			storages, err := app.NewStorages(ctx, cfg.Storage.DB, log)
			if err != nil {
				return err
			}
			defer storages.Close()

			if err = storages.Migrate(); err != nil {
				return err
			}
			return printJSON(c, map[string]string{"driver": cfg.Storage.DB.Driver, "status": "migrated"})
		},
	}
}

func verifyChainCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify-chain",
		Usage: "walk the whole audit chain and report the first broken link",
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			result, err := a.Services.Audit.Verify(ctx)
			if err != nil && !errors.Is(err, service.ErrChainBroken) {
				return err
			}
			if perr := printJSON(c, result); perr != nil {
				return perr
			}
			if !result.Valid {
				return fmt.Errorf("%w at seq %d: %s", errChainBroken, result.BrokenAt, result.Reason)
			}
			return nil
		}),
	}
}

func rotateKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "rotate-key",
		Usage: "generate a new active key; the current one starts retiring",
		Flags: []cli.Flag{actorFlag()},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			res, err := a.Services.Keys.Rotate(ctx, c.String("actor"))
			if err != nil {
				return err
			}
			return printJSON(c, res)
		}),
	}
}

func retireKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "retire-key",
		Usage: "retire a retiring key that no record uses any more",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "key version id", Required: true},
			actorFlag(),
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			id := c.String("id")
			if err := a.Services.Keys.Retire(ctx, id, c.String("actor")); err != nil {
				return err
			}
			return printJSON(c, map[string]string{"id": id, "status": "Retired"})
		}),
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "re-encrypt records onto the active key",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "batch", Usage: "records per page", Value: service.DefaultSweepBatch},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			res, err := a.Services.Keys.Sweep(ctx, int(c.Int("batch")))
			if err != nil {
				return err
			}
			return printJSON(c, res)
		}),
	}
}

// pendingReport is printed by the pending command.
type pendingReport struct {
	Reencryption int64 `json:"pending_reencryption"`
	Reviews      int   `json:"pending_reviews"`
}

func pendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "count records not yet on the active key and pending review items",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "maximum review items counted", Value: 1000},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			n, err := a.Services.Keys.PendingReencryptionCount(ctx)
			if err != nil {
				return err
			}
			items, err := a.Services.Reviews.ListPending(ctx, uint64(c.Int("limit")))
			if err != nil {
				return err
			}
			return printJSON(c, pendingReport{Reencryption: n, Reviews: len(items)})
		}),
	}
}

func genKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen-key",
		Usage: "print a new random 32-byte key in base64",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "print as id=base64 for SECRETS_PREVIOUS_KEYS"},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			defer key.Wipe()

			encoded := crypto.EncodeKey(key)
			if id := c.String("id"); id != "" {
				encoded = id + "=" + encoded
			}
			_, err = fmt.Fprintln(c.Root().Writer, encoded)
			return err
		},
	}
}

func issueTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "issue-token",
		Usage: "issue a reviewer bearer token for the admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Usage: "reviewer identity", Required: true},
			&cli.DurationFlag{Name: "duration", Usage: "token lifetime, defaults to APP_TOKEN_DURATION"},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			cfg, _, err := loadConfig(c)
			if err != nil {
				return err
			}

			duration := c.Duration("duration")
			if duration == 0 {
				duration = cfg.App.TokenDuration
			}
			token, err := utils.GenerateJWTToken(cfg.App.TokenIssuer, c.String("subject"), duration, cfg.App.TokenSignKey)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.Root().Writer, token.SignedString)
			return err
		},
	}
}

// withApp loads the configuration, builds the application and closes it
// after fn returns.
func withApp(fn func(ctx context.Context, c *cli.Command, a *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, log, err := loadConfig(c)
		if err != nil {
			return err
		}

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		runErr := fn(ctx, c, a)
		if err = a.Services.Keys.FlushUsage(ctx); err != nil {
			log.Err(err).Msg("flush key usage")
		}
		return runErr
	}
}

func loadConfig(c *cli.Command) (*config.StructuredConfig, *logger.Logger, error) {
	log := logger.Nop()
	if c.Root().Bool("verbose") {
		log = logger.NewLoggerTo("guardctl", c.Root().ErrWriter)
	}

	cfg, err := config.LoadConfig(c.Root().String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, log, nil
}

func printJSON(c *cli.Command, v any) error {
	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
