package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/splflow/service/flow"
	"github.com/brojonat/splflow/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runApp runs the given commands under the global flags and returns stdout.
func runApp(t *testing.T, args []string, commands ...*cli.Command) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &cli.App{
		Name:     "splflow",
		Commands: commands,
		Flags:    globalFlags(),
		Writer:   &out,
	}
	err := app.Run(append([]string{"splflow"}, args...))
	return out.String(), err
}

func newPublicKey(t *testing.T) solanago.PublicKey {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func TestATACommand(t *testing.T) {
	owner := newPublicKey(t)
	mint := newPublicKey(t)
	want, err := solana.AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	out, err := runApp(t, []string{"ata", owner.String(), mint.String()}, ataCommand())

	require.NoError(t, err)
	assert.Equal(t, want.String()+"\n", out)
}

func TestATACommand_JSON(t *testing.T) {
	owner := newPublicKey(t)
	mint := newPublicKey(t)
	want, err := solana.AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	out, err := runApp(t, []string{"--json", "ata", owner.String(), mint.String()}, ataCommand())
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, owner.String(), result["owner"])
	assert.Equal(t, mint.String(), result["mint"])
	assert.Equal(t, want.String(), result["account"])
	assert.NotContains(t, result, "state")
}

func TestATACommand_JQ(t *testing.T) {
	owner := newPublicKey(t)
	mint := newPublicKey(t)
	want, err := solana.AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	out, err := runApp(t, []string{"--jq", ".account", "ata", owner.String(), mint.String()}, ataCommand())

	require.NoError(t, err)
	assert.Equal(t, want.String()+"\n", out)
}

func TestATACommand_InvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing mint",
			args:    []string{"ata", "11111111111111111111111111111111"},
			wantErr: "exactly two arguments",
		},
		{
			name:    "bad owner",
			args:    []string{"ata", "not-a-key", "11111111111111111111111111111111"},
			wantErr: "invalid owner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.args, ataCommand())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, []string{"version"}, versionCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "splflow dev")

	out, err = runApp(t, []string{"--jq", ".version", "version"}, versionCommand())
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestOutputJQ(t *testing.T) {
	report := &flow.Report{
		RunID:       "run-1",
		Transferred: 10_000_000_000_000,
		ReceiverBalance: &solana.TokenBalance{
			Account:  "receiver-ata",
			Amount:   10_000_000_000_000,
			Decimals: 9,
			UIAmount: "10000",
		},
	}

	tests := []struct {
		name   string
		filter string
		want   string
	}{
		{name: "string is raw", filter: ".receiver_balance.ui_amount", want: "10000\n"},
		{name: "number is json", filter: ".transferred", want: "10000000000000\n"},
		{name: "multiple results", filter: ".run_id, .receiver_balance.decimals", want: "run-1\n9\n"},
		{name: "boolean expression", filter: ".receiver_balance.amount == .transferred", want: "true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, outputJQ(&out, report, tt.filter))
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestOutputJQ_InvalidFilter(t *testing.T) {
	var out bytes.Buffer
	err := outputJQ(&out, map[string]string{"a": "b"}, ".a[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse jq filter")

	err = outputJQ(&out, map[string]string{"a": "b"}, ".a + 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jq filter")
}

// optionsCommand exposes ledgerOptions to the tests.
func optionsCommand(got *solana.Options) *cli.Command {
	return &cli.Command{
		Name: "options",
		Action: func(c *cli.Context) error {
			opts, err := ledgerOptions(c)
			*got = opts
			return err
		},
	}
}

func TestLedgerOptions(t *testing.T) {
	var opts solana.Options
	_, err := runApp(t, []string{
		"--commitment", "finalized",
		"--missing-account-policy", "lenient",
		"--confirm-timeout", "0",
		"--confirm-max-attempts", "5",
		"options",
	}, optionsCommand(&opts))

	require.NoError(t, err)
	assert.Equal(t, rpc.CommitmentFinalized, opts.Commitment)
	assert.Equal(t, solana.MissingAccountLenient, opts.MissingAccount)
	assert.Equal(t, time.Duration(0), opts.Confirm.Timeout)
	assert.Equal(t, uint64(5), opts.Confirm.MaxAttempts)
	assert.Equal(t, defaultConfirmPolicy.InitialInterval, opts.Confirm.InitialInterval)
}

func TestLedgerOptions_Defaults(t *testing.T) {
	var opts solana.Options
	_, err := runApp(t, []string{"options"}, optionsCommand(&opts))

	require.NoError(t, err)
	assert.Equal(t, rpc.CommitmentConfirmed, opts.Commitment)
	assert.Equal(t, solana.MissingAccountStrict, opts.MissingAccount)
	assert.Equal(t, defaultConfirmPolicy, opts.Confirm)
}

func TestLedgerOptions_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "commitment", args: []string{"--commitment", "max"}, wantErr: "commitment"},
		{name: "policy", args: []string{"--missing-account-policy", "hopeful"}, wantErr: "hopeful"},
		{
			name:    "intervals",
			args:    []string{"--confirm-initial-interval", "5s", "--confirm-max-interval", "1s"},
			wantErr: "cannot be greater",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts solana.Options
			_, err := runApp(t, append(tt.args, "options"), optionsCommand(&opts))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFlowConfig(t *testing.T) {
	var got flow.Config
	cmd := &cli.Command{
		Name:  "config",
		Flags: flowConfigFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := flowConfig(c)
			got = cfg
			return err
		},
	}

	_, err := runApp(t, []string{"config"}, cmd)
	require.NoError(t, err)
	assert.Equal(t, flow.DefaultConfig(), got)

	_, err = runApp(t, []string{"config", "--supply", "100", "--transfer-amount", "40"}, cmd)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), got.AmountToTransfer())

	_, err = runApp(t, []string{"config", "--supply", "100", "--transfer-amount", "101"}, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds supply")

	_, err = runApp(t, []string{"config", "--decimals", "300"}, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fit in a byte")
}

func TestFormatSOL(t *testing.T) {
	assert.Equal(t, "10.000000000", formatSOL(10*solanago.LAMPORTS_PER_SOL))
	assert.Equal(t, "0.000005000", formatSOL(5000))
	assert.Equal(t, "1.500000000", formatSOL(1_500_000_000))
}

func TestPrintReport(t *testing.T) {
	report := &flow.Report{
		RunID:              "run-1",
		Signer:             "signer",
		Receiver:           "receiver",
		Mint:               &solana.MintInfo{Address: "mint", Decimals: 9},
		SignerATA:          "signer-ata",
		ReceiverATA:        "receiver-ata",
		ReceiverATACreated: true,
		FundSignature:      "fund-sig",
		IssueSignature:     "issue-sig",
		TransferSignature:  "transfer-sig",
		Issued:             10_000_000_000_000,
		Transferred:        10_000_000_000_000,
		SignerBalance:      &solana.TokenBalance{UIAmount: "0"},
		ReceiverBalance:    &solana.TokenBalance{UIAmount: "10000"},
	}

	var out bytes.Buffer
	printReport(&out, report)
	text := out.String()

	assert.Contains(t, text, "Run run-1")
	assert.Contains(t, text, "mint (9 decimals)")
	assert.Contains(t, text, "receiver-ata (account created)")
	assert.Contains(t, text, "Signer balance:   0\n")
	assert.Contains(t, text, "Receiver balance: 10000\n")
	assert.False(t, strings.Contains(text, "Duration"))
}

func TestPrintReport_PartialRun(t *testing.T) {
	report := &flow.Report{
		RunID:         "run-2",
		Signer:        "signer",
		Receiver:      "receiver",
		FundSignature: "fund-sig",
	}

	var out bytes.Buffer
	printReport(&out, report)
	text := out.String()

	assert.Contains(t, text, "Airdrop confirmed")
	assert.NotContains(t, text, "Mint created")
	assert.NotContains(t, text, "balance")
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level       string
		wantEnabled slog.Level
		wantMuted   slog.Level
	}{
		{level: "debug", wantEnabled: slog.LevelDebug, wantMuted: slog.LevelDebug - 1},
		{level: "info", wantEnabled: slog.LevelInfo, wantMuted: slog.LevelDebug},
		{level: "warn", wantEnabled: slog.LevelWarn, wantMuted: slog.LevelInfo},
		{level: "error", wantEnabled: slog.LevelError, wantMuted: slog.LevelWarn},
		{level: "verbose", wantEnabled: slog.LevelInfo, wantMuted: slog.LevelDebug},
		{level: "", wantEnabled: slog.LevelInfo, wantMuted: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := setupLogger(tt.level)
			assert.True(t, logger.Enabled(context.Background(), tt.wantEnabled))
			assert.False(t, logger.Enabled(context.Background(), tt.wantMuted))
		})
	}
}
