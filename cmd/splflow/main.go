package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "splflow",
		Usage: "SPL token demonstration flow CLI",
		Description: `Runs the SPL token flow against a Solana ledger: fund a fresh signer by
airdrop, create a 9 decimal mint, issue 10000 tokens into the signer's
associated token account, transfer them to a fresh receiver and print both
balances.

The individual ledger operations are exposed as commands too. Airdrops are
only honoured by a local test validator, devnet and testnet.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			runCommand(),
			// Single ledger operations
			airdropCommand(),
			balanceCommand(),
			solBalanceCommand(),
			ataCommand(),
			mintCommand(),
			// Run history
			{
				Name:  "runs",
				Usage: "Run history commands",
				Subcommands: []*cli.Command{
					listRunsCommand(),
					getRunCommand(),
					migrateCommand(),
				},
			},
			// Durable execution
			{
				Name:  "temporal",
				Usage: "Temporal workflow commands",
				Subcommands: []*cli.Command{
					startFlowCommand(),
				},
			},
			// Step event streaming
			{
				Name:  "nats",
				Usage: "NATS step event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			// Run history API server
			{
				Name:  "server",
				Usage: "Run history API server commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					apiStartCommand(),
					apiListCommand(),
					apiGetCommand(),
				},
			},
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: globalFlags(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "rpc-url",
			Usage:   "Solana JSON-RPC endpoint",
			EnvVars: []string{"SOLANA_RPC_URL"},
			Value:   "http://localhost:8899",
		},
		&cli.StringFlag{
			Name:    "commitment",
			Usage:   "Commitment level: processed, confirmed or finalized",
			EnvVars: []string{"SOLANA_COMMITMENT"},
			Value:   "confirmed",
		},
		&cli.StringFlag{
			Name:    "missing-account-policy",
			Usage:   "How a failed receiver account lookup is treated: strict or lenient",
			EnvVars: []string{"MISSING_ACCOUNT_POLICY"},
			Value:   "strict",
		},
		&cli.DurationFlag{
			Name:    "confirm-timeout",
			Usage:   "Deadline for a transaction to confirm (0 waits forever)",
			EnvVars: []string{"CONFIRM_TIMEOUT"},
			Value:   defaultConfirmPolicy.Timeout,
		},
		&cli.Uint64Flag{
			Name:    "confirm-max-attempts",
			Usage:   "Maximum status polls per confirmation (0 is unlimited)",
			EnvVars: []string{"CONFIRM_MAX_ATTEMPTS"},
		},
		&cli.DurationFlag{
			Name:    "confirm-initial-interval",
			Usage:   "First delay between status polls",
			EnvVars: []string{"CONFIRM_INITIAL_INTERVAL"},
			Value:   defaultConfirmPolicy.InitialInterval,
		},
		&cli.DurationFlag{
			Name:    "confirm-max-interval",
			Usage:   "Longest delay between status polls",
			EnvVars: []string{"CONFIRM_MAX_INTERVAL"},
			Value:   defaultConfirmPolicy.MaxInterval,
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level for progress logs on stderr: debug, info, warn or error",
			EnvVars: []string{"LOG_LEVEL"},
			Value:   "error",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL",
			EnvVars: []string{"NATS_URL"},
		},
		&cli.StringFlag{
			Name:    "temporal-host",
			Usage:   "Temporal server address",
			EnvVars: []string{"TEMPORAL_HOST"},
			Value:   "localhost:7233",
		},
		&cli.StringFlag{
			Name:    "temporal-namespace",
			Usage:   "Temporal namespace",
			EnvVars: []string{"TEMPORAL_NAMESPACE"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "temporal-task-queue",
			Usage:   "Temporal task queue served by the worker",
			EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
			Value:   "splflow",
		},
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "Run history API server URL",
			EnvVars: []string{"SERVER_URL"},
			Value:   "http://localhost:8080",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "Filter JSON output through a jq expression (implies --json)",
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			info := map[string]string{
				"version": version,
				"commit":  commit,
				"date":    date,
			}
			return output(c, info, func(w io.Writer) {
				fmt.Fprintf(w, "splflow %s (commit: %s, built: %s)\n", version, commit, date)
			})
		},
	}
}
