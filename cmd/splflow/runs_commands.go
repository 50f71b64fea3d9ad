package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/splflow/service/db"
	"github.com/urfave/cli/v2"
)

func listRunsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List recorded runs, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs to show",
				Value:   20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of runs to skip",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			runs, err := store.ListRuns(context.Background(), int32(c.Int("limit")), int32(c.Int("offset")))
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			return output(c, runs, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATUS\tMINT\tRECEIVER BALANCE\tSTARTED")
				for _, run := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						run.ID,
						run.Status,
						run.Mint,
						formatOptionalAmount(run.ReceiverBalance),
						run.StartedAt.Format(time.RFC3339),
					)
				}
				w.Flush()

				fmt.Fprintf(os.Stderr, "\nTotal: %d runs\n", len(runs))
			})
		},
	}
}

// runDetail is a run with its recorded steps.
type runDetail struct {
	*db.Run
	Steps []*db.Step `json:"steps"`
}

func getRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a run and its steps",
		ArgsUsage: "<run-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: run ID")
			}

			runID := c.Args().First()
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			ctx := context.Background()
			run, err := store.GetRun(ctx, runID)
			if errors.Is(err, db.ErrRunNotFound) {
				return fmt.Errorf("run %s not found", runID)
			}
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			steps, err := store.ListSteps(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to list steps: %w", err)
			}

			detail := runDetail{Run: run, Steps: steps}
			return output(c, detail, func(out io.Writer) { printRunDetail(out, detail) })
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the run history tables if they do not exist",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.EnsureSchema(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema is up to date")
			return nil
		},
	}
}

func printRunDetail(out io.Writer, d runDetail) {
	fmt.Fprintf(out, "Run:          %s\n", d.ID)
	fmt.Fprintf(out, "Status:       %s\n", d.Status)
	fmt.Fprintf(out, "RPC:          %s\n", d.RPCURL)
	fmt.Fprintf(out, "Signer:       %s\n", d.Signer)
	fmt.Fprintf(out, "Receiver:     %s\n", d.Receiver)
	fmt.Fprintf(out, "Mint:         %s (%d decimals, supply %d)\n", d.Mint, d.Decimals, d.Supply)
	fmt.Fprintf(out, "Signer ATA:   %s\n", formatOptionalAddress(d.SignerATA))
	fmt.Fprintf(out, "Receiver ATA: %s\n", formatOptionalAddress(d.ReceiverATA))
	if d.ReceiverATACreated != nil {
		fmt.Fprintf(out, "ATA created:  %t\n", *d.ReceiverATACreated)
	}
	fmt.Fprintf(out, "Balances:     signer %s, receiver %s\n",
		formatOptionalAmount(d.SignerBalance), formatOptionalAmount(d.ReceiverBalance))
	fmt.Fprintf(out, "Started:      %s\n", d.StartedAt.Format(time.RFC3339))
	if d.CompletedAt != nil {
		fmt.Fprintf(out, "Completed:    %s\n", d.CompletedAt.Format(time.RFC3339))
	}
	if d.Error != nil {
		fmt.Fprintf(out, "Error:        %s\n", *d.Error)
	}

	if len(d.Steps) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTATUS\tDURATION\tSIGNATURE")
	for _, step := range d.Steps {
		sig := "-"
		if step.Signature != nil {
			sig = *step.Signature
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", step.Step, step.Status, step.Duration.Round(time.Millisecond), sig)
	}
	w.Flush()
}

func formatOptionalAmount(v *uint64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
