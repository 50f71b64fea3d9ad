package solana

import (
	"errors"

	solanago "github.com/gagliardetto/solana-go"
)

// MintAccountSize is the on-chain size of an SPL token mint account.
const MintAccountSize uint64 = 82

// DefaultAirdropLamports is the funding credit requested for a fresh signer (10 SOL).
const DefaultAirdropLamports = 10 * solanago.LAMPORTS_PER_SOL

var (
	// ErrConfirmationTimeout is returned when a signature does not reach the
	// target commitment within the configured attempts or deadline.
	ErrConfirmationTimeout = errors.New("transaction not confirmed in time")

	// ErrTransactionFailed is returned when the ledger reports an execution
	// error for a submitted transaction.
	ErrTransactionFailed = errors.New("transaction failed on ledger")

	// ErrMissingSigner is returned when a transaction requires a signature
	// whose private key was not supplied.
	ErrMissingSigner = errors.New("missing required signer")

	// ErrNotTokenMint is returned when an account is not owned by the token
	// program or its data does not decode as a mint.
	ErrNotTokenMint = errors.New("account is not a token mint")
)

// AccountState is the classified result of looking up a token account.
type AccountState int

const (
	AccountStateUnknown AccountState = iota
	AccountExists
	AccountNotFound
	AccountTransientError
)

func (s AccountState) String() string {
	switch s {
	case AccountExists:
		return "exists"
	case AccountNotFound:
		return "not_found"
	case AccountTransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

// MissingAccountPolicy decides how a failed balance lookup that is not a
// definite "account not found" is classified.
type MissingAccountPolicy string

const (
	// MissingAccountStrict surfaces unclassified lookup errors as AccountTransientError.
	MissingAccountStrict MissingAccountPolicy = "strict"
	// MissingAccountLenient treats any lookup error as AccountNotFound.
	MissingAccountLenient MissingAccountPolicy = "lenient"
)

// ParseMissingAccountPolicy converts a configuration string to a policy.
func ParseMissingAccountPolicy(s string) (MissingAccountPolicy, error) {
	switch MissingAccountPolicy(s) {
	case MissingAccountStrict, "":
		return MissingAccountStrict, nil
	case MissingAccountLenient:
		return MissingAccountLenient, nil
	}
	return "", errors.New("unknown missing account policy: " + s)
}

// TokenBalance is a token account balance in base units.
type TokenBalance struct {
	Account  string `json:"account"`
	Amount   uint64 `json:"amount"`
	Decimals uint8  `json:"decimals"`
	UIAmount string `json:"ui_amount"`
}

// MintInfo describes a decoded SPL token mint account.
type MintInfo struct {
	Address         string  `json:"address"`
	Decimals        uint8   `json:"decimals"`
	Supply          uint64  `json:"supply"`
	MintAuthority   *string `json:"mint_authority,omitempty"`
	FreezeAuthority *string `json:"freeze_authority,omitempty"`
	IsInitialized   bool    `json:"is_initialized"`
}
