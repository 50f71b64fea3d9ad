package flow

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// Wallets holds the three key pairs a run generates: the funded signer that
// pays for and authorises everything, the receiver of the transfer, and the
// key of the new mint account.
type Wallets struct {
	Signer   solanago.PrivateKey
	Receiver solanago.PrivateKey
	Mint     solanago.PrivateKey
}

// NewWallets generates three fresh key pairs.
func NewWallets() (Wallets, error) {
	var w Wallets
	for _, k := range []struct {
		name string
		dst  *solanago.PrivateKey
	}{
		{"signer", &w.Signer},
		{"receiver", &w.Receiver},
		{"mint", &w.Mint},
	} {
		key, err := solanago.NewRandomPrivateKey()
		if err != nil {
			return Wallets{}, fmt.Errorf("generate %s key: %w", k.name, err)
		}
		*k.dst = key
	}
	return w, nil
}

// WalletKeys is the base58 form of Wallets. It exists so a run can be handed
// to workflow activities as serialisable input; the keys are throwaway
// local-validator keys.
type WalletKeys struct {
	Signer   string `json:"signer"`
	Receiver string `json:"receiver"`
	Mint     string `json:"mint"`
}

// Keys encodes the wallets as base58 private keys.
func (w Wallets) Keys() WalletKeys {
	return WalletKeys{
		Signer:   w.Signer.String(),
		Receiver: w.Receiver.String(),
		Mint:     w.Mint.String(),
	}
}

// Wallets decodes base58 private keys.
func (k WalletKeys) Wallets() (Wallets, error) {
	signer, err := solanago.PrivateKeyFromBase58(k.Signer)
	if err != nil {
		return Wallets{}, fmt.Errorf("decode signer key: %w", err)
	}
	receiver, err := solanago.PrivateKeyFromBase58(k.Receiver)
	if err != nil {
		return Wallets{}, fmt.Errorf("decode receiver key: %w", err)
	}
	mint, err := solanago.PrivateKeyFromBase58(k.Mint)
	if err != nil {
		return Wallets{}, fmt.Errorf("decode mint key: %w", err)
	}
	return Wallets{Signer: signer, Receiver: receiver, Mint: mint}, nil
}
