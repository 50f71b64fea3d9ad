package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/splflow/client"
	"github.com/urfave/cli/v2"
)

func getAPIClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, nil, getLogger(c)), nil
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check the run history API server's health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := strings.TrimRight(c.String("server-url"), "/")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			httpClient := &http.Client{
				Timeout: c.Duration("timeout"),
			}

			resp, err := httpClient.Get(serverURL + "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				fmt.Fprintf(c.App.Writer, "✓ Server is healthy (status: %d)\n", resp.StatusCode)
				fmt.Fprintf(c.App.Writer, "  URL: %s\n", serverURL)
				return nil
			}

			return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
		},
	}
}

func apiStartCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start a run through the API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run identifier (generated by the server when empty)",
			},
			&cli.Uint64Flag{
				Name:  "transfer-amount",
				Usage: "Base units sent to the receiver (0 uses the worker's amount)",
			},
		},
		Action: func(c *cli.Context) error {
			api, err := getAPIClient(c)
			if err != nil {
				return err
			}

			started, err := api.StartRun(context.Background(), c.String("run-id"), c.Uint64("transfer-amount"))
			if err != nil {
				return fmt.Errorf("failed to start run: %w", err)
			}
			return output(c, started, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Started run %s (workflow %s)\n", started.RunID, started.WorkflowID)
			})
		},
	}
}

func apiListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List runs through the API server",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs to show (0 uses the server default)",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of runs to skip",
			},
		},
		Action: func(c *cli.Context) error {
			api, err := getAPIClient(c)
			if err != nil {
				return err
			}

			runs, err := api.ListRuns(context.Background(), c.Int("limit"), c.Int("offset"))
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

func apiGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a run and its steps through the API server",
		ArgsUsage: "<run-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: run ID")
			}

			api, err := getAPIClient(c)
			if err != nil {
				return err
			}

			run, err := api.GetRun(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			return output(c, run, func(out io.Writer) {
				fmt.Fprintf(out, "Run:      %s\n", run.ID)
				fmt.Fprintf(out, "Status:   %s\n", run.Status)
				fmt.Fprintf(out, "Mint:     %s\n", run.Mint)
				fmt.Fprintf(out, "Balances: signer %s, receiver %s\n",
					formatOptionalAmount(run.SignerBalance), formatOptionalAmount(run.ReceiverBalance))
				if run.Error != nil {
					fmt.Fprintf(out, "Error:    %s\n", *run.Error)
				}
				for _, step := range run.Steps {
					fmt.Fprintf(out, "  %-12s %-10s %s\n", step.Step, step.Status, step.Duration.Round(time.Millisecond))
				}
			})
		},
	}
}
