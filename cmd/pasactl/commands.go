package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pasaph/internal/config"
	"github.com/pasaph/internal/fulfillment"
	"github.com/pasaph/internal/logger"
	"github.com/pasaph/internal/models"
	"github.com/pasaph/internal/provider"
	"github.com/pasaph/internal/service"

	"github.com/spf13/cobra"
)

// cliEnv 命令运行环境，测试时可替换
type cliEnv struct {
	loadConfig func() *config.Config
	openDB     func(cfg *config.Config) error
	now        func() time.Time
	out        io.Writer
}

func defaultEnv() *cliEnv {
	return &cliEnv{
		loadConfig: func() *config.Config {
			cfg := config.Load()
			logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
			return cfg
		},
		openDB: openDatabase,
		now:    time.Now,
		out:    os.Stdout,
	}
}

func openDatabase(cfg *config.Config) error {
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := models.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

func newRootCmd(env *cliEnv) *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "pasactl",
		Short:         "Pasa.ph operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = env.loadConfig()
		},
	}
	cmd.SetOut(env.out)

	cmd.AddCommand(newSeedCmd(env, &cfg))
	cmd.AddCommand(newTokenCmd(&cfg))
	cmd.AddCommand(newExportCmd(env, &cfg))
	return cmd
}

func newSeedCmd(env *cliEnv, cfg **config.Config) *cobra.Command {
	var sellerID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo fulfillment records for a seller",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.openDB(*cfg); err != nil {
				return err
			}
			inserted, err := models.SeedDemoRecords(strings.TrimSpace(sellerID))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records for %s\n", inserted, sellerID)
			return nil
		},
	}
	cmd.Flags().StringVar(&sellerID, "seller", "", "seller id")
	_ = cmd.MarkFlagRequired("seller")
	return cmd
}

func newTokenCmd(cfg **config.Config) *cobra.Command {
	var (
		userID string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a seller or buyer",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, expiresAt, err := service.NewTokenService((*cfg).Auth).Issue(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", "seller", "seller or buyer")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newExportCmd(env *cliEnv, cfg **config.Config) *cobra.Command {
	var (
		sellerID     string
		format       string
		status       string
		search       string
		groupByBuyer bool
		output       string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a seller shopping list",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, ok := fulfillment.ParseFormat(format)
			if !ok {
				return fmt.Errorf("unknown format %q (text, clipboard, html)", format)
			}
			if err := env.openDB(*cfg); err != nil {
				return err
			}
			container, err := provider.NewContainer(*cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			result, err := container.FulfillmentService.Export(context.Background(), sellerID, service.ViewQuery{
				Status:       status,
				Search:       search,
				GroupByBuyer: groupByBuyer,
			}, parsed, env.now())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), result.Content)
				return err
			}
			if err := os.WriteFile(output, []byte(result.Content), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d items to %s\n", result.Count, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&sellerID, "seller", "", "seller id")
	cmd.Flags().StringVar(&format, "format", string(fulfillment.FormatText), "text, clipboard or html")
	cmd.Flags().StringVar(&status, "status", "all", "status filter")
	cmd.Flags().StringVar(&search, "search", "", "match item title or buyer name")
	cmd.Flags().BoolVar(&groupByBuyer, "group-by-buyer", true, "group items by buyer")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	_ = cmd.MarkFlagRequired("seller")
	return cmd
}
