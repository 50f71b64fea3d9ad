package solana

import (
	"context"
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintInstructions(t *testing.T, payer, mint solanago.PublicKey) []solanago.Instruction {
	t.Helper()
	create, err := CreateMintAccountInstruction(payer, mint, 1_461_600)
	require.NoError(t, err)
	init, err := InitializeMintInstruction(mint, payer, nil, 9)
	require.NoError(t, err)
	return []solanago.Instruction{create, init}
}

func TestNewSignedTransaction(t *testing.T) {
	payer := newKey(t)
	mint := newKey(t)
	blockhash := solanago.Hash{1, 2, 3}

	tx, err := NewSignedTransaction(
		mintInstructions(t, payer.PublicKey(), mint.PublicKey()),
		blockhash,
		payer.PublicKey(),
		payer, mint,
	)

	require.NoError(t, err)
	assert.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0]) // fee payer first
	assert.Equal(t, blockhash, tx.Message.RecentBlockhash)
	assert.Equal(t, uint8(2), tx.Message.Header.NumRequiredSignatures)
	require.Len(t, tx.Signatures, 2)
	for _, sig := range tx.Signatures {
		assert.NotEqual(t, solanago.Signature{}, sig)
	}
}

func TestNewSignedTransaction_MissingSigner(t *testing.T) {
	payer := newKey(t)
	mint := newKey(t)

	_, err := NewSignedTransaction(
		mintInstructions(t, payer.PublicKey(), mint.PublicKey()),
		solanago.Hash{1},
		payer.PublicKey(),
		payer, // mint key omitted
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSigner)
	assert.Contains(t, err.Error(), mint.PublicKey().String())
}

func TestBuildTransaction_FreshBlockhash(t *testing.T) {
	payer := newKey(t)
	mint := newKey(t)
	mock := &mockRPCClient{blockhash: solanago.Hash{9, 9, 9}}
	client := newTestClient(mock)

	tx, err := client.BuildTransaction(context.Background(),
		mintInstructions(t, payer.PublicKey(), mint.PublicKey()),
		payer.PublicKey(),
		payer, mint,
	)

	require.NoError(t, err)
	assert.Equal(t, solanago.Hash{9, 9, 9}, tx.Message.RecentBlockhash)
}

func TestSendAndConfirm(t *testing.T) {
	payer := newKey(t)
	mint := newKey(t)
	mock := &mockRPCClient{
		sendSig:  testSig,
		statuses: []*rpc.SignatureStatusesResult{status(rpc.ConfirmationStatusConfirmed)},
	}
	client := newTestClient(mock)

	tx, err := NewSignedTransaction(mintInstructions(t, payer.PublicKey(), mint.PublicKey()), solanago.Hash{1}, payer.PublicKey(), payer, mint)
	require.NoError(t, err)

	sig, err := client.SendAndConfirm(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, testSig, sig)
	assert.Len(t, mock.sent, 1)
}

func TestSendAndConfirm_Rejected(t *testing.T) {
	payer := newKey(t)
	mint := newKey(t)
	mock := &mockRPCClient{sendErr: errors.New("insufficient funds for rent")}
	client := newTestClient(mock)

	tx, err := NewSignedTransaction(mintInstructions(t, payer.PublicKey(), mint.PublicKey()), solanago.Hash{1}, payer.PublicKey(), payer, mint)
	require.NoError(t, err)

	_, err = client.SendAndConfirm(context.Background(), tx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
	assert.Equal(t, 0, mock.statusCalls)
}
