package solana

import (
	"encoding/binary"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssociatedTokenAddress_Deterministic(t *testing.T) {
	owner := newKey(t).PublicKey()
	mint := newKey(t).PublicKey()

	first, err := AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	second, err := AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	other, err := AssociatedTokenAddress(newKey(t).PublicKey(), mint)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestCreateMintAccountInstruction(t *testing.T) {
	payer := newKey(t).PublicKey()
	mint := newKey(t).PublicKey()

	ix, err := CreateMintAccountInstruction(payer, mint, 1_461_600)
	require.NoError(t, err)

	assert.Equal(t, solanago.SystemProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, mint, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsSigner)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 52)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(1_461_600), binary.LittleEndian.Uint64(data[4:12]))
	assert.Equal(t, MintAccountSize, binary.LittleEndian.Uint64(data[12:20]))
	assert.Equal(t, solanago.TokenProgramID[:], data[20:52])
}

func TestInitializeMintInstruction(t *testing.T) {
	mint := newKey(t).PublicKey()
	authority := newKey(t).PublicKey()

	ix, err := InitializeMintInstruction(mint, authority, nil, 9)
	require.NoError(t, err)

	assert.Equal(t, solanago.TokenProgramID, ix.ProgramID())
	accounts := ix.Accounts()
	require.GreaterOrEqual(t, len(accounts), 1)
	assert.Equal(t, mint, accounts[0].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 34)
	assert.Equal(t, byte(0), data[0]) // InitializeMint
	assert.Equal(t, byte(9), data[1])
	assert.Equal(t, authority[:], data[2:34])
}

func TestCreateAssociatedAccountInstruction(t *testing.T) {
	payer := newKey(t).PublicKey()
	owner := newKey(t).PublicKey()
	mint := newKey(t).PublicKey()

	ix, err := CreateAssociatedAccountInstruction(payer, owner, mint)
	require.NoError(t, err)

	ata, err := AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	assert.Equal(t, solanago.SPLAssociatedTokenAccountProgramID, ix.ProgramID())
	accounts := ix.Accounts()
	require.GreaterOrEqual(t, len(accounts), 4)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, ata, accounts[1].PublicKey)
	assert.Equal(t, owner, accounts[2].PublicKey)
	assert.Equal(t, mint, accounts[3].PublicKey)
}

func TestMintToInstruction(t *testing.T) {
	mint := newKey(t).PublicKey()
	dest := newKey(t).PublicKey()
	authority := newKey(t).PublicKey()

	ix, err := MintToInstruction(mint, dest, authority, 10_000_000_000_000, nil)
	require.NoError(t, err)

	assert.Equal(t, solanago.TokenProgramID, ix.ProgramID())
	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, mint, accounts[0].PublicKey)
	assert.Equal(t, dest, accounts[1].PublicKey)
	assert.Equal(t, authority, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 9)
	assert.Equal(t, byte(7), data[0]) // MintTo
	assert.Equal(t, uint64(10_000_000_000_000), binary.LittleEndian.Uint64(data[1:9]))
}

func TestTransferInstruction(t *testing.T) {
	source := newKey(t).PublicKey()
	dest := newKey(t).PublicKey()
	owner := newKey(t).PublicKey()

	ix, err := TransferInstruction(source, dest, owner, 500, nil)
	require.NoError(t, err)

	assert.Equal(t, solanago.TokenProgramID, ix.ProgramID())
	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, source, accounts[0].PublicKey)
	assert.Equal(t, dest, accounts[1].PublicKey)
	assert.Equal(t, owner, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 9)
	assert.Equal(t, byte(3), data[0]) // Transfer
	assert.Equal(t, uint64(500), binary.LittleEndian.Uint64(data[1:9]))
}
