package solana

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// CreateMintAccountInstruction allocates a rent-exempt account sized for a
// mint and assigns it to the token program.
func CreateMintAccountInstruction(payer, mint solanago.PublicKey, rentLamports uint64) (solanago.Instruction, error) {
	ix, err := system.NewCreateAccountInstruction(
		rentLamports,
		MintAccountSize,
		solanago.TokenProgramID,
		payer,
		mint,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build create account instruction: %w", err)
	}
	return ix, nil
}

// InitializeMintInstruction initializes a mint with the given authority.
// A nil freezeAuthority leaves the mint without one.
func InitializeMintInstruction(mint, authority solanago.PublicKey, freezeAuthority *solanago.PublicKey, decimals uint8) (solanago.Instruction, error) {
	builder := token.NewInitializeMintInstructionBuilder().
		SetDecimals(decimals).
		SetMintAuthority(authority).
		SetMintAccount(mint).
		SetSysVarRentPubkeyAccount(solanago.SysVarRentPubkey)
	if freezeAuthority != nil {
		builder.SetFreezeAuthority(*freezeAuthority)
	}

	ix, err := builder.ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build initialize mint instruction: %w", err)
	}
	return ix, nil
}

// CreateAssociatedAccountInstruction creates owner's associated token account
// for mint, funded by payer.
func CreateAssociatedAccountInstruction(payer, owner, mint solanago.PublicKey) (solanago.Instruction, error) {
	ix, err := associatedtokenaccount.NewCreateInstruction(payer, owner, mint).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build create associated account instruction: %w", err)
	}
	return ix, nil
}

// MintToInstruction mints amount base units into destination. Multisig
// signers are only needed when authority is a multisig account.
func MintToInstruction(mint, destination, authority solanago.PublicKey, amount uint64, multisigSigners []solanago.PublicKey) (solanago.Instruction, error) {
	ix, err := token.NewMintToInstruction(
		amount,
		mint,
		destination,
		authority,
		multisigSigners,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build mint-to instruction: %w", err)
	}
	return ix, nil
}

// TransferInstruction moves amount base units from source to destination.
func TransferInstruction(source, destination, owner solanago.PublicKey, amount uint64, multisigSigners []solanago.PublicKey) (solanago.Instruction, error) {
	ix, err := token.NewTransferInstruction(
		amount,
		source,
		destination,
		owner,
		multisigSigners,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build transfer instruction: %w", err)
	}
	return ix, nil
}
