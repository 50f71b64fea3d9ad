// Package flow runs the SPL token demonstration: fund a signer by airdrop,
// create a mint, issue the supply into the signer's associated token account,
// transfer it to a receiver and report both balances.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/splflow/service/db"
	"github.com/brojonat/splflow/service/metrics"
	natspkg "github.com/brojonat/splflow/service/nats"
	"github.com/brojonat/splflow/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Step names, in execution order.
const (
	StepFund       = "fund"
	StepCreateMint = "create_mint"
	StepIssue      = "issue"
	StepTransfer   = "transfer"
	StepVerify     = "verify"
)

// ErrTransferExceedsSupply is returned when a transfer asks for more base
// units than the run mints.
var ErrTransferExceedsSupply = errors.New("transfer amount exceeds supply")

// Ledger defines the ledger operations the flow needs.
// *solana.Client satisfies it.
type Ledger interface {
	AirdropAndConfirm(ctx context.Context, recipient solanago.PublicKey, lamports uint64) (solanago.Signature, error)
	MinimumRentExemption(ctx context.Context, size uint64) (uint64, error)
	BuildTransaction(ctx context.Context, instructions []solanago.Instruction, payer solanago.PublicKey, signers ...solanago.PrivateKey) (*solanago.Transaction, error)
	SendAndConfirm(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
	CheckTokenAccount(ctx context.Context, account solanago.PublicKey) (solana.AccountState, error)
	TokenBalance(ctx context.Context, account solanago.PublicKey) (*solana.TokenBalance, error)
	GetMint(ctx context.Context, mint solanago.PublicKey) (*solana.MintInfo, error)
}

// StoreInterface defines the run history operations the flow records to.
type StoreInterface interface {
	CreateRun(ctx context.Context, params db.CreateRunParams) (*db.Run, error)
	RecordStep(ctx context.Context, params db.RecordStepParams) (*db.Step, error)
	CompleteRun(ctx context.Context, params db.CompleteRunParams) (*db.Run, error)
}

// PublisherInterface defines the step event publishing the flow performs.
type PublisherInterface interface {
	PublishStep(ctx context.Context, event *natspkg.StepEvent) error
}

// Config holds the amounts the flow works with.
type Config struct {
	AirdropLamports uint64 `json:"airdrop_lamports"`
	Decimals        uint8  `json:"decimals"`
	Supply          uint64 `json:"supply"`
	// TransferAmount is the number of base units sent to the receiver.
	// Zero sends the full supply.
	TransferAmount uint64 `json:"transfer_amount"`
}

// DefaultConfig returns a 10 SOL airdrop and a 9 decimal mint with a supply
// of 10000 whole tokens, all of which is transferred.
func DefaultConfig() Config {
	return Config{
		AirdropLamports: solana.DefaultAirdropLamports,
		Decimals:        9,
		Supply:          10_000 * 1_000_000_000,
	}
}

// Validate checks that the amounts are usable.
func (c Config) Validate() error {
	if c.AirdropLamports == 0 {
		return fmt.Errorf("airdrop lamports must be positive")
	}
	if c.Supply == 0 {
		return fmt.Errorf("supply must be positive")
	}
	return c.CheckTransferAmount(c.TransferAmount)
}

// CheckTransferAmount rejects amounts larger than the configured supply.
// Zero is accepted and means the full supply.
func (c Config) CheckTransferAmount(amount uint64) error {
	if amount > c.Supply {
		return fmt.Errorf("%w: %d > %d", ErrTransferExceedsSupply, amount, c.Supply)
	}
	return nil
}

// AmountToTransfer returns TransferAmount, or the full supply when it is zero.
func (c Config) AmountToTransfer() uint64 {
	if c.TransferAmount == 0 {
		return c.Supply
	}
	return c.TransferAmount
}

// Report summarises a completed run.
type Report struct {
	RunID              string               `json:"run_id"`
	Signer             string               `json:"signer"`
	Receiver           string               `json:"receiver"`
	Mint               *solana.MintInfo     `json:"mint"`
	SignerATA          string               `json:"signer_ata"`
	ReceiverATA        string               `json:"receiver_ata"`
	ReceiverATACreated bool                 `json:"receiver_ata_created"`
	FundSignature      string               `json:"fund_signature"`
	MintSignature      string               `json:"mint_signature"`
	IssueSignature     string               `json:"issue_signature"`
	TransferSignature  string               `json:"transfer_signature"`
	Issued             uint64               `json:"issued"`
	Transferred        uint64               `json:"transferred"`
	SignerBalance      *solana.TokenBalance `json:"signer_balance"`
	ReceiverBalance    *solana.TokenBalance `json:"receiver_balance"`
	StartedAt          time.Time            `json:"started_at"`
	CompletedAt        time.Time            `json:"completed_at"`
}

// Runner executes flow steps against a ledger and records each step to the
// optional store and publisher.
type Runner struct {
	ledger    Ledger
	store     StoreInterface
	publisher PublisherInterface
	cfg       Config
	rpcURL    string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRunner creates a new Runner with explicit dependencies.
// store, publisher and metrics may be nil.
func NewRunner(
	ledger Ledger,
	store StoreInterface,
	publisher PublisherInterface,
	cfg Config,
	rpcURL string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		ledger:    ledger,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		rpcURL:    rpcURL,
		metrics:   m,
		logger:    logger,
	}
}

// Config returns the runner's amounts.
func (r *Runner) Config() Config {
	return r.cfg
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Run generates fresh wallets and executes every step in order. The first
// failing step aborts the run; nothing is rolled back.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	wallets, err := NewWallets()
	if err != nil {
		return nil, err
	}
	return r.RunWithWallets(ctx, NewRunID(), wallets)
}

// RunWithWallets executes every step in order using the given wallets.
func (r *Runner) RunWithWallets(ctx context.Context, runID string, w Wallets) (*Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow config: %w", err)
	}

	report := &Report{
		RunID:     runID,
		Signer:    w.Signer.PublicKey().String(),
		Receiver:  w.Receiver.PublicKey().String(),
		StartedAt: time.Now().UTC(),
	}

	r.Begin(ctx, runID, w)
	r.logger.InfoContext(ctx, "starting token flow",
		"run_id", runID,
		"signer", report.Signer,
		"receiver", report.Receiver,
		"mint", w.Mint.PublicKey().String(),
	)

	err := r.run(ctx, runID, w, report)
	report.CompletedAt = time.Now().UTC()
	r.Finish(ctx, runID, report, err)
	if err != nil {
		return report, err
	}

	r.logger.InfoContext(ctx, "token flow complete",
		"run_id", runID,
		"signer_balance", report.SignerBalance.Amount,
		"receiver_balance", report.ReceiverBalance.Amount,
		"receiver_ata_created", report.ReceiverATACreated,
	)
	return report, nil
}

func (r *Runner) run(ctx context.Context, runID string, w Wallets, report *Report) error {
	fund, err := r.Fund(ctx, runID, w.Signer.PublicKey())
	if err != nil {
		return err
	}
	report.FundSignature = fund.Signature

	mint, err := r.CreateMint(ctx, runID, w.Signer, w.Mint)
	if err != nil {
		return err
	}
	report.MintSignature = mint.Signature
	report.Mint = mint.Mint

	issue, err := r.Issue(ctx, runID, w.Signer, w.Mint.PublicKey())
	if err != nil {
		return err
	}
	report.IssueSignature = issue.Signature
	report.SignerATA = issue.SignerATA
	report.Issued = issue.Amount

	transfer, err := r.Transfer(ctx, runID, w.Signer, w.Receiver.PublicKey(), w.Mint.PublicKey(), r.cfg.AmountToTransfer())
	if err != nil {
		return err
	}
	report.TransferSignature = transfer.Signature
	report.ReceiverATA = transfer.ReceiverATA
	report.ReceiverATACreated = transfer.CreatedReceiverATA
	report.Transferred = transfer.Amount

	verify, err := r.Verify(ctx, runID, w.Signer.PublicKey(), w.Receiver.PublicKey(), w.Mint.PublicKey())
	if err != nil {
		return err
	}
	report.SignerBalance = verify.Signer
	report.ReceiverBalance = verify.Receiver
	return nil
}
