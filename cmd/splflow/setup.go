package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/splflow/service/db"
	natspkg "github.com/brojonat/splflow/service/nats"
	"github.com/brojonat/splflow/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/itchyny/gojq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

var defaultConfirmPolicy = solana.DefaultConfirmPolicy()

// setupLogger creates a JSON logger on stderr with the given level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func getLogger(c *cli.Context) *slog.Logger {
	return setupLogger(c.String("log-level"))
}

// ledgerOptions builds client options from the global flags.
func ledgerOptions(c *cli.Context) (solana.Options, error) {
	commitment := rpc.CommitmentType(c.String("commitment"))
	switch commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return solana.Options{}, fmt.Errorf("commitment must be processed, confirmed or finalized (got %q)", commitment)
	}

	policy, err := solana.ParseMissingAccountPolicy(c.String("missing-account-policy"))
	if err != nil {
		return solana.Options{}, err
	}

	confirm := solana.ConfirmPolicy{
		Timeout:         c.Duration("confirm-timeout"),
		MaxAttempts:     c.Uint64("confirm-max-attempts"),
		InitialInterval: c.Duration("confirm-initial-interval"),
		MaxInterval:     c.Duration("confirm-max-interval"),
	}
	if confirm.InitialInterval > confirm.MaxInterval {
		return solana.Options{}, fmt.Errorf("confirm-initial-interval (%v) cannot be greater than confirm-max-interval (%v)",
			confirm.InitialInterval, confirm.MaxInterval)
	}

	return solana.Options{
		Commitment:     commitment,
		Confirm:        confirm,
		MissingAccount: policy,
	}, nil
}

// getLedger connects a ledger client to --rpc-url.
func getLedger(c *cli.Context, logger *slog.Logger) (*solana.Client, error) {
	opts, err := ledgerOptions(c)
	if err != nil {
		return nil, err
	}
	rpcURL := c.String("rpc-url")
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc-url is required (set SOLANA_RPC_URL env var or use --rpc-url)")
	}
	return solana.NewClient(solana.NewRPCClient(rpcURL), solana.EndpointLabel(rpcURL), opts, nil, logger), nil
}

// getStore connects to --database-url.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool, nil), pool.Close, nil
}

// getPublisher connects to --nats-url.
func getPublisher(c *cli.Context, logger *slog.Logger) (natspkg.Publisher, error) {
	natsURL := c.String("nats-url")
	if natsURL == "" {
		return nil, fmt.Errorf("nats-url is required (set NATS_URL env var or use --nats-url)")
	}
	p, err := natspkg.NewPublisher(natsURL, nil, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func parsePublicKey(name, s string) (solanago.PublicKey, error) {
	key, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return key, nil
}

// output writes v as JSON when --json or --jq is set, otherwise calls text.
func output(c *cli.Context, v interface{}, text func(w io.Writer)) error {
	w := c.App.Writer
	if filter := c.String("jq"); filter != "" {
		return outputJQ(w, v, filter)
	}
	if c.Bool("json") {
		return outputJSON(w, v)
	}
	text(w)
	return nil
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJQ runs filter over the JSON form of v. String results are written
// raw; everything else is written as JSON.
func outputJQ(w io.Writer, v interface{}, filter string) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq only understands the types encoding/json decodes into.
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to decode output: %w", err)
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq filter %q: %w", filter, err)
		}
		if s, isString := result.(string); isString {
			fmt.Fprintln(w, s)
			continue
		}
		if err := outputJSON(w, result); err != nil {
			return err
		}
	}
}
