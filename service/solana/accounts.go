package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// AssociatedTokenAddress derives the associated token account of owner for mint.
// The derivation is pure: the same pair always yields the same address.
func AssociatedTokenAddress(owner, mint solanago.PublicKey) (solanago.PublicKey, error) {
	ata, _, err := solanago.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("derive associated token address for %s/%s: %w", owner, mint, err)
	}
	return ata, nil
}

// TokenBalance queries a token account's balance.
func (c *Client) TokenBalance(ctx context.Context, account solanago.PublicKey) (*TokenBalance, error) {
	start := time.Now()
	out, err := c.rpc.GetTokenAccountBalance(ctx, account, c.opts.Commitment)
	c.recordRPC("GetTokenAccountBalance", start, err)
	if err != nil {
		return nil, fmt.Errorf("get token balance of %s: %w", account, err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("get token balance of %s: %w", account, rpc.ErrNotFound)
	}

	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse token amount %q of %s: %w", out.Value.Amount, account, err)
	}

	return &TokenBalance{
		Account:  account.String(),
		Amount:   amount,
		Decimals: out.Value.Decimals,
		UIAmount: out.Value.UiAmountString,
	}, nil
}

// CheckTokenAccount classifies whether a token account exists by querying its
// balance. A definite "not found" answer yields AccountNotFound; any other
// lookup error is classified by the client's MissingAccountPolicy.
func (c *Client) CheckTokenAccount(ctx context.Context, account solanago.PublicKey) (AccountState, error) {
	state, err := c.checkTokenAccount(ctx, account)
	if c.metrics != nil {
		c.metrics.RecordAccountCheck(state.String())
	}
	return state, err
}

func (c *Client) checkTokenAccount(ctx context.Context, account solanago.PublicKey) (AccountState, error) {
	_, err := c.TokenBalance(ctx, account)
	if err == nil {
		return AccountExists, nil
	}

	if IsAccountNotFound(err) {
		c.logger.DebugContext(ctx, "token account does not exist", "account", account.String())
		return AccountNotFound, nil
	}

	if c.opts.MissingAccount == MissingAccountLenient {
		c.logger.WarnContext(ctx, "treating token account lookup error as missing account",
			"account", account.String(),
			"error", err,
		)
		return AccountNotFound, nil
	}

	return AccountTransientError, err
}

// IsAccountNotFound reports whether err means the queried account does not exist.
func IsAccountNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && isNotFoundMessage(rpcErr.Message) {
		return true
	}
	return isNotFoundMessage(err.Error())
}

func isNotFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "could not find account") ||
		strings.Contains(msg, "account not found")
}

// GetMint fetches and decodes a mint account.
func (c *Client) GetMint(ctx context.Context, mint solanago.PublicKey) (*MintInfo, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfo(ctx, mint, c.opts.Commitment)
	c.recordRPC("GetAccountInfo", start, err)
	if err != nil {
		return nil, fmt.Errorf("get mint account %s: %w", mint, err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, fmt.Errorf("get mint account %s: %w", mint, rpc.ErrNotFound)
	}
	if !out.Value.Owner.Equals(solanago.TokenProgramID) {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrNotTokenMint, mint, out.Value.Owner)
	}

	return DecodeMint(mint, out.Value.Data.GetBinary())
}

// DecodeMint decodes raw mint account data.
func DecodeMint(address solanago.PublicKey, data []byte) (*MintInfo, error) {
	if uint64(len(data)) < MintAccountSize {
		return nil, fmt.Errorf("%w: %s has %d bytes of data", ErrNotTokenMint, address, len(data))
	}

	var mint token.Mint
	if err := bin.NewBinDecoder(data).Decode(&mint); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrNotTokenMint, address, err)
	}

	info := &MintInfo{
		Address:       address.String(),
		Decimals:      mint.Decimals,
		Supply:        mint.Supply,
		IsInitialized: mint.IsInitialized,
	}
	if mint.MintAuthority != nil {
		s := mint.MintAuthority.String()
		info.MintAuthority = &s
	}
	if mint.FreezeAuthority != nil {
		s := mint.FreezeAuthority.String()
		info.FreezeAuthority = &s
	}
	return info, nil
}
