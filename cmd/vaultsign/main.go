package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/VaultSign/internal/app"
	"github.com/dharsanguruparan/VaultSign/internal/config"
	"github.com/dharsanguruparan/VaultSign/internal/queue"
)

var composeFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vaultsign: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaultsign",
		Short: "VaultSign operator and development CLI",
		Long: `VaultSign CLI prepares the database and buckets, triggers the orphaned-blob sweep,
and orchestrates development workflows such as the Docker stack, tests and the binaries.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file to use for stack commands")
	cmd.AddCommand(
		newBuildCmd(),
		newUpCmd(),
		newDownCmd(),
		newLogsCmd(),
		newTestCmd(),
		newRunCmd(),
		newSetupCmd(),
		newSweepCmd(),
	)
	return cmd
}

// compose runs `docker compose -f <file> <sub> [flags...] [services...]`.
func compose(ctx context.Context, sub string, flags []string, services []string) error {
	args := append([]string{"compose", "-f", composeFile, sub}, flags...)
	return execute(ctx, nil, "docker", append(args, services...)...)
}

func newBuildCmd() *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "build [service...]",
		Short: "Build the server and worker images",
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags []string
			if noCache {
				flags = append(flags, "--no-cache")
			}
			return compose(cmd.Context(), "build", flags, args)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable Docker build cache")
	return cmd
}

func newUpCmd() *cobra.Command {
	var detach, skipBuild, withSetup bool
	cmd := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start Postgres, MinIO, Redis, Mailpit and the VaultSign services",
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags []string
			if !skipBuild {
				flags = append(flags, "--build")
			}
			if detach {
				flags = append(flags, "-d")
			}
			if err := compose(cmd.Context(), "up", flags, args); err != nil {
				return err
			}
			if !withSetup || !detach {
				return nil
			}
			return compose(cmd.Context(), "exec", nil, []string{"server", "vaultsign", "setup"})
		},
	}
	cmd.Flags().BoolVarP(&detach, "detached", "d", true, "Run docker compose in detached mode")
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Skip rebuilding images before starting")
	cmd.Flags().BoolVar(&withSetup, "setup", false, "Create the table and buckets once the stack is up")
	return cmd
}

func newDownCmd() *cobra.Command {
	var removeVolumes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags []string
			if removeVolumes {
				flags = append(flags, "-v")
			}
			return compose(cmd.Context(), "down", flags, nil)
		},
	}
	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Also remove database and object volumes")
	return cmd
}

func newLogsCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Show service logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags []string
			if follow {
				flags = append(flags, "-f")
			}
			return compose(cmd.Context(), "logs", flags, args)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream logs continuously")
	return cmd
}

func newTestCmd() *cobra.Command {
	var race, cover bool
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		Long: `test runs go test. --database-url enables the Postgres repository tests, which are
skipped otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			if cover {
				goArgs = append(goArgs, "-cover")
			}
			if len(args) == 0 {
				args = []string{"./..."}
			}
			var env []string
			if databaseURL != "" {
				env = append(env, "VAULTSIGN_TEST_DATABASE_URL="+databaseURL)
			}
			return execute(cmd.Context(), env, "go", append(goArgs, args...)...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable Go race detector")
	cmd.Flags().BoolVar(&cover, "cover", false, "Collect coverage data")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres DSN for repository tests")
	return cmd
}

// binaries lists the processes `vaultsign run` can start from source.
var binaries = []struct{ name, pkg, about string }{
	{"server", "./cmd/server", "HTTP API"},
	{"worker", "./cmd/worker", "orphaned-blob sweep worker and scheduler"},
}

func newRunCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a VaultSign binary from source",
	}
	cmd.PersistentFlags().BoolVar(&memory, "memory", false, "Use in-process document and blob stores")
	for _, bin := range binaries {
		bin := bin
		cmd.AddCommand(&cobra.Command{
			Use:   bin.name,
			Short: fmt.Sprintf("Run the %s (go run %s)", bin.about, bin.pkg),
			RunE: func(cmd *cobra.Command, args []string) error {
				var env []string
				if memory {
					env = []string{"VAULTSIGN_BACKEND=" + config.BackendMemory, "VAULTSIGN_BLOB_DRIVER=" + config.BlobMemory}
				}
				return execute(cmd.Context(), env, "go", append([]string{"run", bin.pkg}, args...)...)
			},
		})
	}
	return cmd
}

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the documents table and storage buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			docs, closeDocs, err := app.OpenDocuments(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDocs()
			blobs, err := app.OpenBlobs(ctx, cfg)
			if err != nil {
				return err
			}
			if err := docs.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			if err := blobs.EnsureBuckets(ctx); err != nil {
				return fmt.Errorf("ensure buckets: %w", err)
			}
			logger.WithField("backend", cfg.Backend).Info("database and storage buckets set up")
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var (
		grace  time.Duration
		dryRun bool
		local  bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored objects no document references",
		Long: `sweep enqueues a blob:sweep task for the worker. With --local the sweep runs in this
process against the configured stores and prints its report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !local {
				client := asynq.NewClient(app.RedisOpt(cfg))
				defer client.Close()
				payload := queue.SweepPayload{GraceSeconds: int64(grace / time.Second), DryRun: dryRun}
				if err := queue.EnqueueSweep(ctx, client, payload); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "sweep enqueued")
				return nil
			}
			logger := app.NewLogger(cfg)
			docs, closeDocs, err := app.OpenDocuments(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDocs()
			blobs, err := app.OpenBlobs(ctx, cfg)
			if err != nil {
				return err
			}
			if grace <= 0 {
				grace = cfg.SweepGrace
			}
			report, err := app.NewSweeper(cfg, docs, blobs, logger).Sweep(ctx, grace, dryRun)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "Only delete objects older than this (defaults to VAULTSIGN_SWEEP_GRACE)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphans without deleting them")
	cmd.Flags().BoolVar(&local, "local", false, "Run the sweep in-process instead of enqueuing it")
	return cmd
}

// execute runs name attached to the terminal with env added to the
// inherited environment.
func execute(ctx context.Context, env []string, name string, args ...string) error {
	c := exec.CommandContext(ctx, name, args...)
	c.Env = append(os.Environ(), env...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}
