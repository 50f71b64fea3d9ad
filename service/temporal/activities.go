package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/splflow/service/flow"
	"github.com/brojonat/splflow/service/metrics"
	solanago "github.com/gagliardetto/solana-go"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// GenerateWalletsInput contains the input parameters for GenerateWallets.
type GenerateWalletsInput struct {
	RunID string `json:"run_id"`
	// TransferAmount is checked against the supply before anything is
	// submitted to the ledger.
	TransferAmount uint64 `json:"transfer_amount,omitempty"`
}

// GenerateWalletsResult carries the run's keys. Private keys travel through
// workflow history in base58; they are throwaway keys for a local validator.
type GenerateWalletsResult struct {
	Keys     flow.WalletKeys `json:"keys"`
	Signer   string          `json:"signer"`
	Receiver string          `json:"receiver"`
	Mint     string          `json:"mint"`
}

// FundInput contains parameters for the Fund activity.
type FundInput struct {
	RunID  string `json:"run_id"`
	Signer string `json:"signer"`
}

// KeysInput contains parameters for activities that sign transactions.
type KeysInput struct {
	RunID string          `json:"run_id"`
	Keys  flow.WalletKeys `json:"keys"`
}

// TransferInput contains parameters for the Transfer activity.
type TransferInput struct {
	RunID string          `json:"run_id"`
	Keys  flow.WalletKeys `json:"keys"`
	// Amount in base units; zero transfers the configured amount.
	Amount uint64 `json:"amount"`
}

// VerifyInput contains parameters for the Verify activity.
type VerifyInput struct {
	RunID    string `json:"run_id"`
	Signer   string `json:"signer"`
	Receiver string `json:"receiver"`
	Mint     string `json:"mint"`
}

// FinishRunInput contains parameters for the FinishRun activity.
type FinishRunInput struct {
	RunID  string       `json:"run_id"`
	Report *flow.Report `json:"report"`
	Error  string       `json:"error,omitempty"`
}

// FlowRunner defines the flow operations needed by activities.
// *flow.Runner satisfies it.
type FlowRunner interface {
	Config() flow.Config
	BeginKeys(ctx context.Context, runID string, signer, receiver, mint solanago.PublicKey)
	Fund(ctx context.Context, runID string, signer solanago.PublicKey) (*flow.FundResult, error)
	CreateMint(ctx context.Context, runID string, signer, mint solanago.PrivateKey) (*flow.MintResult, error)
	Issue(ctx context.Context, runID string, signer solanago.PrivateKey, mint solanago.PublicKey) (*flow.IssueResult, error)
	Transfer(ctx context.Context, runID string, signer solanago.PrivateKey, receiver, mint solanago.PublicKey, amount uint64) (*flow.TransferResult, error)
	Verify(ctx context.Context, runID string, signer, receiver, mint solanago.PublicKey) (*flow.VerifyResult, error)
	Finish(ctx context.Context, runID string, report *flow.Report, runErr error)
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	runner  FlowRunner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(runner FlowRunner, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		runner:  runner,
		metrics: m,
		logger:  logger,
	}
}

func (a *Activities) observe(activity string, start time.Time, err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordActivityDuration(activity, metrics.StatusFromError(err), time.Since(start).Seconds())
}

// checkTransferAmount fails without retry when amount exceeds the supply.
func (a *Activities) checkTransferAmount(amount uint64) error {
	if err := a.runner.Config().CheckTransferAmount(amount); err != nil {
		return temporalsdk.NewNonRetryableApplicationError(err.Error(), "TransferExceedsSupply", err)
	}
	return nil
}

// GenerateWallets creates the run's key pairs and records the run start.
func (a *Activities) GenerateWallets(ctx context.Context, input GenerateWalletsInput) (result *GenerateWalletsResult, err error) {
	defer func(start time.Time) { a.observe("GenerateWallets", start, err) }(time.Now())

	if err := a.checkTransferAmount(input.TransferAmount); err != nil {
		return nil, err
	}

	w, err := flow.NewWallets()
	if err != nil {
		return nil, err
	}
	a.runner.BeginKeys(ctx, input.RunID, w.Signer.PublicKey(), w.Receiver.PublicKey(), w.Mint.PublicKey())

	a.logger.InfoContext(ctx, "generated wallets",
		"run_id", input.RunID,
		"signer", w.Signer.PublicKey().String(),
		"receiver", w.Receiver.PublicKey().String(),
		"mint", w.Mint.PublicKey().String(),
	)

	return &GenerateWalletsResult{
		Keys:     w.Keys(),
		Signer:   w.Signer.PublicKey().String(),
		Receiver: w.Receiver.PublicKey().String(),
		Mint:     w.Mint.PublicKey().String(),
	}, nil
}

// Fund airdrops lamports to the signer and waits for confirmation.
func (a *Activities) Fund(ctx context.Context, input FundInput) (result *flow.FundResult, err error) {
	defer func(start time.Time) { a.observe("Fund", start, err) }(time.Now())

	signer, err := solanago.PublicKeyFromBase58(input.Signer)
	if err != nil {
		return nil, fmt.Errorf("invalid signer address: %w", err)
	}
	return a.runner.Fund(ctx, input.RunID, signer)
}

// CreateMint creates and initialises the mint account.
func (a *Activities) CreateMint(ctx context.Context, input KeysInput) (result *flow.MintResult, err error) {
	defer func(start time.Time) { a.observe("CreateMint", start, err) }(time.Now())

	w, err := input.Keys.Wallets()
	if err != nil {
		return nil, err
	}
	return a.runner.CreateMint(ctx, input.RunID, w.Signer, w.Mint)
}

// Issue creates the signer's token account and mints the supply into it.
func (a *Activities) Issue(ctx context.Context, input KeysInput) (result *flow.IssueResult, err error) {
	defer func(start time.Time) { a.observe("Issue", start, err) }(time.Now())

	w, err := input.Keys.Wallets()
	if err != nil {
		return nil, err
	}
	return a.runner.Issue(ctx, input.RunID, w.Signer, w.Mint.PublicKey())
}

// Transfer moves tokens to the receiver, creating its account if missing.
func (a *Activities) Transfer(ctx context.Context, input TransferInput) (result *flow.TransferResult, err error) {
	defer func(start time.Time) { a.observe("Transfer", start, err) }(time.Now())

	w, err := input.Keys.Wallets()
	if err != nil {
		return nil, err
	}
	amount := input.Amount
	if amount == 0 {
		amount = a.runner.Config().AmountToTransfer()
	}
	if err := a.checkTransferAmount(amount); err != nil {
		return nil, err
	}
	return a.runner.Transfer(ctx, input.RunID, w.Signer, w.Receiver.PublicKey(), w.Mint.PublicKey(), amount)
}

// Verify reads both token balances.
func (a *Activities) Verify(ctx context.Context, input VerifyInput) (result *flow.VerifyResult, err error) {
	defer func(start time.Time) { a.observe("Verify", start, err) }(time.Now())

	keys := make([]solanago.PublicKey, 0, 3)
	for _, s := range []string{input.Signer, input.Receiver, input.Mint} {
		key, err := solanago.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", s, err)
		}
		keys = append(keys, key)
	}
	return a.runner.Verify(ctx, input.RunID, keys[0], keys[1], keys[2])
}

// FinishRun records the final state of the run.
func (a *Activities) FinishRun(ctx context.Context, input FinishRunInput) (err error) {
	defer func(start time.Time) { a.observe("FinishRun", start, err) }(time.Now())

	var runErr error
	if input.Error != "" {
		runErr = errors.New(input.Error)
	}
	a.runner.Finish(ctx, input.RunID, input.Report, runErr)
	return nil
}
