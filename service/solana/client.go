package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/splflow/service/metrics"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	RequestAirdrop(
		ctx context.Context,
		account solanago.PublicKey,
		lamports uint64,
		commitment rpc.CommitmentType,
	) (solanago.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solanago.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetMinimumBalanceForRentExemption(
		ctx context.Context,
		dataSize uint64,
		commitment rpc.CommitmentType,
	) (uint64, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransaction(
		ctx context.Context,
		tx *solanago.Transaction,
		commitment rpc.CommitmentType,
	) (solanago.Signature, error)

	GetTokenAccountBalance(
		ctx context.Context,
		account solanago.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetTokenAccountBalanceResult, error)

	GetAccountInfo(
		ctx context.Context,
		account solanago.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetAccountInfoResult, error)

	GetBalance(
		ctx context.Context,
		account solanago.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)
}

// Options tunes commitment, confirmation polling and account classification.
type Options struct {
	Commitment     rpc.CommitmentType
	Confirm        ConfirmPolicy
	MissingAccount MissingAccountPolicy
}

// DefaultOptions returns confirmed commitment, the default confirmation
// policy and strict account classification.
func DefaultOptions() Options {
	return Options{
		Commitment:     rpc.CommitmentConfirmed,
		Confirm:        DefaultConfirmPolicy(),
		MissingAccount: MissingAccountStrict,
	}
}

// Client wraps the RPC client with the ledger operations the token flow needs.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "localnet", "devnet", rpc host)
	opts     Options
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if opts.MissingAccount == "" {
		opts.MissingAccount = MissingAccountStrict
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		opts:     opts,
	}
}

// Commitment returns the commitment level used for queries and confirmation.
func (c *Client) Commitment() rpc.CommitmentType {
	return c.opts.Commitment
}

// recordRPC records a single RPC round-trip.
func (c *Client) recordRPC(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordRPCCall(method, metrics.StatusFromError(err), c.endpoint, time.Since(start).Seconds())
}

// RequestAirdrop asks the ledger to credit lamports to the recipient and
// returns the crediting transaction's signature without waiting.
func (c *Client) RequestAirdrop(ctx context.Context, recipient solanago.PublicKey, lamports uint64) (solanago.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.RequestAirdrop(ctx, recipient, lamports, c.opts.Commitment)
	c.recordRPC("RequestAirdrop", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "airdrop request failed",
			"recipient", recipient.String(),
			"lamports", lamports,
			"error", err,
		)
		return solanago.Signature{}, fmt.Errorf("request airdrop: %w", err)
	}
	return sig, nil
}

// AirdropAndConfirm requests an airdrop and blocks until the ledger reports
// the crediting transaction at the client's commitment. Errors from either
// the request or a status query are returned immediately.
func (c *Client) AirdropAndConfirm(ctx context.Context, recipient solanago.PublicKey, lamports uint64) (solanago.Signature, error) {
	sig, err := c.RequestAirdrop(ctx, recipient, lamports)
	if err != nil {
		return solanago.Signature{}, err
	}

	c.logger.InfoContext(ctx, "awaiting airdrop confirmation",
		"signature", sig.String(),
		"recipient", recipient.String(),
		"lamports", lamports,
	)

	if err := c.WaitForConfirmation(ctx, sig); err != nil {
		return sig, fmt.Errorf("confirm airdrop %s: %w", sig, err)
	}

	c.logger.InfoContext(ctx, "airdrop confirmed",
		"signature", sig.String(),
		"recipient", recipient.String(),
	)
	return sig, nil
}

// MinimumRentExemption returns the lamports an account of size bytes must hold.
func (c *Client) MinimumRentExemption(ctx context.Context, size uint64) (uint64, error) {
	start := time.Now()
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, c.opts.Commitment)
	c.recordRPC("GetMinimumBalanceForRentExemption", start, err)
	if err != nil {
		return 0, fmt.Errorf("get rent exemption for %d bytes: %w", size, err)
	}
	return lamports, nil
}

// LatestBlockhash fetches a fresh blockhash to anchor a new transaction.
func (c *Client) LatestBlockhash(ctx context.Context) (solanago.Hash, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.opts.Commitment)
	c.recordRPC("GetLatestBlockhash", start, err)
	if err != nil {
		return solanago.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solanago.Hash{}, fmt.Errorf("get latest blockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// SOLBalance returns an account's native balance in lamports.
func (c *Client) SOLBalance(ctx context.Context, account solanago.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, account, c.opts.Commitment)
	c.recordRPC("GetBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("get balance of %s: %w", account, err)
	}
	if out == nil {
		return 0, fmt.Errorf("get balance of %s: empty response", account)
	}
	return out.Value, nil
}
