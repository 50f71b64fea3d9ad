package flow

import (
	"context"
	"fmt"

	"github.com/brojonat/splflow/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// FundResult is the outcome of the fund step.
type FundResult struct {
	Signature string `json:"signature"`
	Lamports  uint64 `json:"lamports"`
}

// MintResult is the outcome of the create-mint step.
type MintResult struct {
	Signature    string           `json:"signature"`
	RentLamports uint64           `json:"rent_lamports"`
	Mint         *solana.MintInfo `json:"mint"`
}

// IssueResult is the outcome of the issue step.
type IssueResult struct {
	Signature string `json:"signature"`
	SignerATA string `json:"signer_ata"`
	Amount    uint64 `json:"amount"`
}

// TransferResult is the outcome of the transfer step.
type TransferResult struct {
	Signature          string `json:"signature"`
	ReceiverATA        string `json:"receiver_ata"`
	Amount             uint64 `json:"amount"`
	CreatedReceiverATA bool   `json:"created_receiver_ata"`
}

// VerifyResult holds both token balances after the transfer.
type VerifyResult struct {
	Signer   *solana.TokenBalance `json:"signer"`
	Receiver *solana.TokenBalance `json:"receiver"`
}

// Fund airdrops the configured lamports to the signer and waits for the
// airdrop to confirm.
func (r *Runner) Fund(ctx context.Context, runID string, signer solanago.PublicKey) (*FundResult, error) {
	var result *FundResult
	err := r.track(ctx, runID, StepFund, func() (stepOutcome, error) {
		sig, err := r.ledger.AirdropAndConfirm(ctx, signer, r.cfg.AirdropLamports)
		if err != nil {
			return stepOutcome{account: signer.String()}, fmt.Errorf("fund signer %s: %w", signer, err)
		}
		result = &FundResult{Signature: sig.String(), Lamports: r.cfg.AirdropLamports}
		return stepOutcome{
			signature: result.Signature,
			account:   signer.String(),
			amount:    r.cfg.AirdropLamports,
		}, nil
	})
	return result, err
}

// CreateMint allocates a rent-exempt mint account owned by the token program
// and initialises it with the signer as mint authority and no freeze
// authority, in one transaction signed by both signer and mint.
func (r *Runner) CreateMint(ctx context.Context, runID string, signer, mint solanago.PrivateKey) (*MintResult, error) {
	var result *MintResult
	err := r.track(ctx, runID, StepCreateMint, func() (stepOutcome, error) {
		out := stepOutcome{account: mint.PublicKey().String()}

		rent, err := r.ledger.MinimumRentExemption(ctx, solana.MintAccountSize)
		if err != nil {
			return out, err
		}

		createIx, err := solana.CreateMintAccountInstruction(signer.PublicKey(), mint.PublicKey(), rent)
		if err != nil {
			return out, err
		}
		initIx, err := solana.InitializeMintInstruction(mint.PublicKey(), signer.PublicKey(), nil, r.cfg.Decimals)
		if err != nil {
			return out, err
		}

		tx, err := r.ledger.BuildTransaction(ctx, []solanago.Instruction{createIx, initIx}, signer.PublicKey(), signer, mint)
		if err != nil {
			return out, err
		}
		sig, err := r.ledger.SendAndConfirm(ctx, tx)
		if err != nil {
			return out, fmt.Errorf("create mint %s: %w", mint.PublicKey(), err)
		}
		out.signature = sig.String()

		info, err := r.ledger.GetMint(ctx, mint.PublicKey())
		if err != nil {
			return out, err
		}
		if info.Decimals != r.cfg.Decimals {
			return out, fmt.Errorf("mint %s reports %d decimals, want %d", info.Address, info.Decimals, r.cfg.Decimals)
		}

		out.detail = fmt.Sprintf("decimals=%d", info.Decimals)
		result = &MintResult{Signature: sig.String(), RentLamports: rent, Mint: info}
		return out, nil
	})
	return result, err
}

// Issue creates the signer's associated token account and mints the
// configured supply into it, in one transaction.
func (r *Runner) Issue(ctx context.Context, runID string, signer solanago.PrivateKey, mint solanago.PublicKey) (*IssueResult, error) {
	var result *IssueResult
	err := r.track(ctx, runID, StepIssue, func() (stepOutcome, error) {
		var out stepOutcome

		signerATA, err := solana.AssociatedTokenAddress(signer.PublicKey(), mint)
		if err != nil {
			return out, err
		}
		out.account = signerATA.String()
		out.amount = r.cfg.Supply

		createIx, err := solana.CreateAssociatedAccountInstruction(signer.PublicKey(), signer.PublicKey(), mint)
		if err != nil {
			return out, err
		}
		mintToIx, err := solana.MintToInstruction(mint, signerATA, signer.PublicKey(), r.cfg.Supply, nil)
		if err != nil {
			return out, err
		}

		r.logger.InfoContext(ctx, "minting tokens",
			"run_id", runID,
			"amount", r.cfg.Supply,
			"account", signerATA.String(),
			"owner", signer.PublicKey().String(),
		)

		tx, err := r.ledger.BuildTransaction(ctx, []solanago.Instruction{createIx, mintToIx}, signer.PublicKey(), signer)
		if err != nil {
			return out, err
		}
		sig, err := r.ledger.SendAndConfirm(ctx, tx)
		if err != nil {
			return out, fmt.Errorf("issue %d to %s: %w", r.cfg.Supply, signerATA, err)
		}
		out.signature = sig.String()

		result = &IssueResult{Signature: sig.String(), SignerATA: signerATA.String(), Amount: r.cfg.Supply}
		return out, nil
	})
	return result, err
}

// Transfer sends amount base units from the signer's token account to the
// receiver's. When the receiver's account does not exist it is created in
// the same transaction; otherwise the transfer is sent alone.
func (r *Runner) Transfer(
	ctx context.Context,
	runID string,
	signer solanago.PrivateKey,
	receiver solanago.PublicKey,
	mint solanago.PublicKey,
	amount uint64,
) (*TransferResult, error) {
	var result *TransferResult
	err := r.track(ctx, runID, StepTransfer, func() (stepOutcome, error) {
		out := stepOutcome{amount: amount}
		if err := r.cfg.CheckTransferAmount(amount); err != nil {
			return out, err
		}

		signerATA, err := solana.AssociatedTokenAddress(signer.PublicKey(), mint)
		if err != nil {
			return out, err
		}
		receiverATA, err := solana.AssociatedTokenAddress(receiver, mint)
		if err != nil {
			return out, err
		}
		out.account = receiverATA.String()

		state, err := r.ledger.CheckTokenAccount(ctx, receiverATA)
		if err != nil {
			return out, fmt.Errorf("check receiver account %s: %w", receiverATA, err)
		}

		var instructions []solanago.Instruction
		switch state {
		case solana.AccountNotFound:
			r.logger.InfoContext(ctx, "receiver account does not exist, creating it with the transfer",
				"run_id", runID,
				"account", receiverATA.String(),
			)
			createIx, err := solana.CreateAssociatedAccountInstruction(signer.PublicKey(), receiver, mint)
			if err != nil {
				return out, err
			}
			instructions = append(instructions, createIx)
		case solana.AccountExists:
			r.logger.InfoContext(ctx, "receiver account exists, sending transfer only",
				"run_id", runID,
				"account", receiverATA.String(),
			)
		default:
			return out, fmt.Errorf("receiver account %s in unexpected state %s", receiverATA, state)
		}
		out.detail = "receiver_account=" + state.String()

		transferIx, err := solana.TransferInstruction(signerATA, receiverATA, signer.PublicKey(), amount, nil)
		if err != nil {
			return out, err
		}
		instructions = append(instructions, transferIx)

		tx, err := r.ledger.BuildTransaction(ctx, instructions, signer.PublicKey(), signer)
		if err != nil {
			return out, err
		}
		sig, err := r.ledger.SendAndConfirm(ctx, tx)
		if err != nil {
			return out, fmt.Errorf("transfer %d to %s: %w", amount, receiverATA, err)
		}
		out.signature = sig.String()

		if r.metrics != nil {
			r.metrics.RecordTokensTransferred(state.String(), amount)
		}

		result = &TransferResult{
			Signature:          sig.String(),
			ReceiverATA:        receiverATA.String(),
			Amount:             amount,
			CreatedReceiverATA: state == solana.AccountNotFound,
		}
		return out, nil
	})
	return result, err
}

// Verify queries the signer's and receiver's token balances for mint.
func (r *Runner) Verify(ctx context.Context, runID string, signer, receiver, mint solanago.PublicKey) (*VerifyResult, error) {
	var result *VerifyResult
	err := r.track(ctx, runID, StepVerify, func() (stepOutcome, error) {
		var out stepOutcome

		signerATA, err := solana.AssociatedTokenAddress(signer, mint)
		if err != nil {
			return out, err
		}
		receiverATA, err := solana.AssociatedTokenAddress(receiver, mint)
		if err != nil {
			return out, err
		}

		signerBal, err := r.ledger.TokenBalance(ctx, signerATA)
		if err != nil {
			return out, err
		}
		receiverBal, err := r.ledger.TokenBalance(ctx, receiverATA)
		if err != nil {
			return out, err
		}

		out.account = receiverATA.String()
		out.amount = receiverBal.Amount
		out.detail = fmt.Sprintf("signer=%d receiver=%d", signerBal.Amount, receiverBal.Amount)
		result = &VerifyResult{Signer: signerBal, Receiver: receiverBal}
		return out, nil
	})
	return result, err
}
