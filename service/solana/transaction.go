package solana

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// NewSignedTransaction compiles instructions into a transaction paid by payer
// and anchored to blockhash, then signs it. Every account the message marks
// as a signer must have its key in signers.
func NewSignedTransaction(
	instructions []solanago.Instruction,
	blockhash solanago.Hash,
	payer solanago.PublicKey,
	signers ...solanago.PrivateKey,
) (*solanago.Transaction, error) {
	tx, err := solanago.NewTransaction(instructions, blockhash, solanago.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}

	keys := make(map[solanago.PublicKey]*solanago.PrivateKey, len(signers))
	for i := range signers {
		keys[signers[i].PublicKey()] = &signers[i]
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if _, ok := keys[tx.Message.AccountKeys[i]]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSigner, tx.Message.AccountKeys[i])
		}
	}

	if _, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		return keys[key]
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

// BuildTransaction fetches a fresh blockhash and returns a signed transaction.
// Each call uses a new anchor so transactions are never reused.
func (c *Client) BuildTransaction(
	ctx context.Context,
	instructions []solanago.Instruction,
	payer solanago.PublicKey,
	signers ...solanago.PrivateKey,
) (*solanago.Transaction, error) {
	blockhash, err := c.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	return NewSignedTransaction(instructions, blockhash, payer, signers...)
}

// SendAndConfirm submits a signed transaction and waits for it to reach the
// client's commitment.
func (c *Client) SendAndConfirm(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, c.opts.Commitment)
	c.recordRPC("SendTransaction", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "transaction rejected",
			"instructions", len(tx.Message.Instructions),
			"error", err,
		)
		return solanago.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.DebugContext(ctx, "transaction submitted",
		"signature", sig.String(),
		"instructions", len(tx.Message.Instructions),
	)

	if err := c.WaitForConfirmation(ctx, sig); err != nil {
		return sig, fmt.Errorf("confirm transaction %s: %w", sig, err)
	}
	return sig, nil
}
