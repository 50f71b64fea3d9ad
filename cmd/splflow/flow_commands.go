package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/splflow/service/flow"
	"github.com/brojonat/splflow/service/temporal"
	"github.com/urfave/cli/v2"
)

func flowConfigFlags() []cli.Flag {
	defaults := flow.DefaultConfig()
	return []cli.Flag{
		&cli.Uint64Flag{
			Name:    "airdrop-lamports",
			Usage:   "Lamports airdropped to the signer",
			EnvVars: []string{"AIRDROP_LAMPORTS"},
			Value:   defaults.AirdropLamports,
		},
		&cli.UintFlag{
			Name:    "decimals",
			Usage:   "Decimals of the created mint",
			EnvVars: []string{"TOKEN_DECIMALS"},
			Value:   uint(defaults.Decimals),
		},
		&cli.Uint64Flag{
			Name:    "supply",
			Usage:   "Base units minted into the signer's token account",
			EnvVars: []string{"TOKEN_SUPPLY"},
			Value:   defaults.Supply,
		},
		&cli.Uint64Flag{
			Name:  "transfer-amount",
			Usage: "Base units sent to the receiver (0 sends the full supply)",
		},
	}
}

func flowConfig(c *cli.Context) (flow.Config, error) {
	decimals := c.Uint("decimals")
	if decimals > 255 {
		return flow.Config{}, fmt.Errorf("decimals must fit in a byte (got %d)", decimals)
	}
	cfg := flow.Config{
		AirdropLamports: c.Uint64("airdrop-lamports"),
		Decimals:        uint8(decimals),
		Supply:          c.Uint64("supply"),
		TransferAmount:  c.Uint64("transfer-amount"),
	}
	if err := cfg.Validate(); err != nil {
		return flow.Config{}, err
	}
	return cfg, nil
}

// signalContext is cancelled on interrupt so a pending confirmation wait stops.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the full token flow against the ledger",
		Description: `Generates a signer, a receiver and a mint key, then:
1. airdrops SOL to the signer and waits for confirmation
2. creates the mint with the signer as mint authority
3. creates the signer's token account and mints the supply into it
4. transfers to the receiver, creating its token account if missing
5. prints both token balances

Steps are recorded to Postgres when --database-url is set and published to
NATS when --nats-url is set.

Example:
  splflow run --rpc-url http://localhost:8899
  splflow run --jq '.receiver_balance.ui_amount'`,
		Flags: flowConfigFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := flowConfig(c)
			if err != nil {
				return err
			}

			logger := getLogger(c)
			ledger, err := getLedger(c, logger)
			if err != nil {
				return err
			}

			var store flow.StoreInterface
			if c.String("database-url") != "" {
				s, closeStore, err := getStore(c)
				if err != nil {
					return err
				}
				defer closeStore()
				if err := s.EnsureSchema(context.Background()); err != nil {
					return err
				}
				store = s
			}

			var publisher flow.PublisherInterface
			if c.String("nats-url") != "" {
				p, err := getPublisher(c, logger)
				if err != nil {
					return err
				}
				defer p.Close()
				publisher = p
			}

			ctx, cancel := signalContext()
			defer cancel()

			runner := flow.NewRunner(ledger, store, publisher, cfg, c.String("rpc-url"), nil, logger)
			report, runErr := runner.Run(ctx)
			if report != nil {
				if err := output(c, report, func(w io.Writer) { printReport(w, report) }); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("flow failed: %w", runErr)
			}
			return nil
		},
	}
}

func startFlowCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Run the token flow as a Temporal workflow and wait for its report",
		Description: `Starts SPLFlowWorkflow on the configured task queue. A worker
(cmd/worker) must be serving the queue.

Example:
  splflow temporal start
  splflow temporal start --no-wait --run-id demo-1`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run identifier (generated when empty)",
			},
			&cli.Uint64Flag{
				Name:  "transfer-amount",
				Usage: "Base units sent to the receiver (0 uses the worker's amount)",
			},
			&cli.BoolFlag{
				Name:  "no-wait",
				Usage: "Return once the workflow has started",
			},
		},
		Action: func(c *cli.Context) error {
			logger := getLogger(c)
			tc, err := temporal.NewClient(
				c.String("temporal-host"),
				c.String("temporal-namespace"),
				c.String("temporal-task-queue"),
				logger,
			)
			if err != nil {
				return err
			}
			defer tc.Close()

			input := temporal.SPLFlowInput{
				RunID:          c.String("run-id"),
				TransferAmount: c.Uint64("transfer-amount"),
			}
			if input.RunID == "" {
				input.RunID = flow.NewRunID()
			}

			ctx, cancel := signalContext()
			defer cancel()

			if c.Bool("no-wait") {
				run, err := tc.StartFlow(ctx, input)
				if err != nil {
					return err
				}
				started := map[string]string{
					"run_id":          input.RunID,
					"workflow_id":     run.GetID(),
					"temporal_run_id": run.GetRunID(),
				}
				return output(c, started, func(w io.Writer) {
					fmt.Fprintf(w, "✓ Started workflow %s (run %s)\n", run.GetID(), input.RunID)
				})
			}

			report, err := tc.RunFlow(ctx, input)
			if err != nil {
				return err
			}
			return output(c, report, func(w io.Writer) { printReport(w, report) })
		},
	}
}

func printReport(w io.Writer, r *flow.Report) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Run %s\n", r.RunID)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Signer:        %s\n", r.Signer)
	fmt.Fprintf(w, "Receiver:      %s\n", r.Receiver)
	if r.FundSignature != "" {
		fmt.Fprintf(w, "✓ Airdrop confirmed:   %s\n", r.FundSignature)
	}
	if r.Mint != nil {
		fmt.Fprintf(w, "✓ Mint created:        %s (%d decimals)\n", r.Mint.Address, r.Mint.Decimals)
	}
	if r.IssueSignature != "" {
		fmt.Fprintf(w, "✓ Issued %d to:        %s\n", r.Issued, r.SignerATA)
	}
	if r.TransferSignature != "" {
		created := ""
		if r.ReceiverATACreated {
			created = " (account created)"
		}
		fmt.Fprintf(w, "✓ Transferred %d to:   %s%s\n", r.Transferred, r.ReceiverATA, created)
	}
	if r.SignerBalance != nil {
		fmt.Fprintf(w, "Signer balance:   %s\n", r.SignerBalance.UIAmount)
	}
	if r.ReceiverBalance != nil {
		fmt.Fprintf(w, "Receiver balance: %s\n", r.ReceiverBalance.UIAmount)
	}
	if !r.CompletedAt.IsZero() {
		fmt.Fprintf(w, "Duration:      %s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
}
