package flow

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/brojonat/splflow/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

const fakeMintRent = 1_461_600

type fakeMint struct {
	initialized bool
	decimals    uint8
	authority   solanago.PublicKey
	supply      uint64
}

type fakeTokenAccount struct {
	mint   solanago.PublicKey
	owner  solanago.PublicKey
	amount uint64
}

// fakeLedger implements solana.RPCClient over an in-memory ledger that
// interprets the system, token and associated token account instructions the
// flow submits.
type fakeLedger struct {
	mu sync.Mutex

	lamports map[solanago.PublicKey]uint64
	mints    map[solanago.PublicKey]*fakeMint
	tokens   map[solanago.PublicKey]*fakeTokenAccount
	landed   map[solanago.Signature]bool
	nextSig  uint64

	// Failure injection.
	airdropErr   error
	tokenErrOnce error
	sendErr      error
	submitted    []*solanago.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		lamports: make(map[solanago.PublicKey]uint64),
		mints:    make(map[solanago.PublicKey]*fakeMint),
		tokens:   make(map[solanago.PublicKey]*fakeTokenAccount),
		landed:   make(map[solanago.Signature]bool),
	}
}

func (f *fakeLedger) newSignature() solanago.Signature {
	f.nextSig++
	var sig solanago.Signature
	binary.LittleEndian.PutUint64(sig[:8], f.nextSig)
	return sig
}

// openTokenAccount creates a token account outside of any transaction.
func (f *fakeLedger) openTokenAccount(account, mint, owner solanago.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[account] = &fakeTokenAccount{mint: mint, owner: owner}
}

func (f *fakeLedger) RequestAirdrop(ctx context.Context, account solanago.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solanago.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.airdropErr != nil {
		return solanago.Signature{}, f.airdropErr
	}
	f.lamports[account] += lamports
	sig := f.newSignature()
	f.landed[sig] = true
	return sig, nil
}

func (f *fakeLedger) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solanago.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &rpc.GetSignatureStatusesResult{}
	for _, sig := range signatures {
		if !f.landed[sig] {
			out.Value = append(out.Value, nil)
			continue
		}
		out.Value = append(out.Value, &rpc.SignatureStatusesResult{
			ConfirmationStatus: rpc.ConfirmationStatusFinalized,
		})
	}
	return out, nil
}

func (f *fakeLedger) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	return fakeMintRent, nil
}

func (f *fakeLedger) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hash solanago.Hash
	binary.LittleEndian.PutUint64(hash[:8], f.nextSig+1)
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: hash, LastValidBlockHeight: 150},
	}, nil
}

func (f *fakeLedger) SendTransaction(ctx context.Context, tx *solanago.Transaction, commitment rpc.CommitmentType) (solanago.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, tx)
	if f.sendErr != nil {
		return solanago.Signature{}, f.sendErr
	}
	if len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		return solanago.Signature{}, fmt.Errorf("expected %d signatures, got %d", tx.Message.Header.NumRequiredSignatures, len(tx.Signatures))
	}
	if err := tx.VerifySignatures(); err != nil {
		return solanago.Signature{}, fmt.Errorf("signature verification failed: %w", err)
	}
	if err := f.apply(tx); err != nil {
		return solanago.Signature{}, err
	}
	sig := tx.Signatures[0]
	f.landed[sig] = true
	return sig, nil
}

// apply executes every instruction or none of them.
func (f *fakeLedger) apply(tx *solanago.Transaction) error {
	snapshot := f.snapshot()
	for i, ix := range tx.Message.Instructions {
		program := tx.Message.AccountKeys[ix.ProgramIDIndex]
		accounts := make([]solanago.PublicKey, len(ix.Accounts))
		for j, idx := range ix.Accounts {
			accounts[j] = tx.Message.AccountKeys[idx]
		}
		if err := f.execute(program, accounts, ix.Data); err != nil {
			f.restore(snapshot)
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return nil
}

type fakeSnapshot struct {
	lamports map[solanago.PublicKey]uint64
	mints    map[solanago.PublicKey]fakeMint
	tokens   map[solanago.PublicKey]fakeTokenAccount
}

func (f *fakeLedger) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		lamports: make(map[solanago.PublicKey]uint64, len(f.lamports)),
		mints:    make(map[solanago.PublicKey]fakeMint, len(f.mints)),
		tokens:   make(map[solanago.PublicKey]fakeTokenAccount, len(f.tokens)),
	}
	for k, v := range f.lamports {
		s.lamports[k] = v
	}
	for k, v := range f.mints {
		s.mints[k] = *v
	}
	for k, v := range f.tokens {
		s.tokens[k] = *v
	}
	return s
}

func (f *fakeLedger) restore(s fakeSnapshot) {
	f.lamports = s.lamports
	f.mints = make(map[solanago.PublicKey]*fakeMint, len(s.mints))
	for k, v := range s.mints {
		v := v
		f.mints[k] = &v
	}
	f.tokens = make(map[solanago.PublicKey]*fakeTokenAccount, len(s.tokens))
	for k, v := range s.tokens {
		v := v
		f.tokens[k] = &v
	}
}

func (f *fakeLedger) execute(program solanago.PublicKey, accounts []solanago.PublicKey, data []byte) error {
	switch {
	case program.Equals(solanago.SystemProgramID):
		return f.executeSystem(accounts, data)
	case program.Equals(solanago.TokenProgramID):
		return f.executeToken(accounts, data)
	case program.Equals(solanago.SPLAssociatedTokenAccountProgramID):
		return f.executeCreateATA(accounts)
	default:
		return fmt.Errorf("unknown program %s", program)
	}
}

func (f *fakeLedger) executeSystem(accounts []solanago.PublicKey, data []byte) error {
	if len(data) < 52 || binary.LittleEndian.Uint32(data[0:4]) != 0 {
		return errors.New("unsupported system instruction")
	}
	payer, account := accounts[0], accounts[1]
	lamports := binary.LittleEndian.Uint64(data[4:12])
	space := binary.LittleEndian.Uint64(data[12:20])
	owner := solanago.PublicKeyFromBytes(data[20:52])

	if _, exists := f.mints[account]; exists {
		return fmt.Errorf("account %s already in use", account)
	}
	if f.lamports[payer] < lamports {
		return fmt.Errorf("insufficient lamports in %s", payer)
	}
	if !owner.Equals(solanago.TokenProgramID) || space != solana.MintAccountSize {
		return fmt.Errorf("unsupported account allocation owner=%s space=%d", owner, space)
	}
	f.lamports[payer] -= lamports
	f.lamports[account] += lamports
	f.mints[account] = &fakeMint{}
	return nil
}

func (f *fakeLedger) executeToken(accounts []solanago.PublicKey, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty token instruction")
	}
	switch data[0] {
	case 0: // InitializeMint
		m, ok := f.mints[accounts[0]]
		if !ok {
			return fmt.Errorf("mint %s not allocated", accounts[0])
		}
		if m.initialized {
			return fmt.Errorf("mint %s already initialized", accounts[0])
		}
		m.initialized = true
		m.decimals = data[1]
		m.authority = solanago.PublicKeyFromBytes(data[2:34])
		return nil

	case 7: // MintTo
		mint, dest, authority := accounts[0], accounts[1], accounts[2]
		m, ok := f.mints[mint]
		if !ok || !m.initialized {
			return fmt.Errorf("mint %s not initialized", mint)
		}
		if !m.authority.Equals(authority) {
			return fmt.Errorf("owner does not match mint authority")
		}
		acct, ok := f.tokens[dest]
		if !ok || !acct.mint.Equals(mint) {
			return fmt.Errorf("invalid destination %s", dest)
		}
		amount := binary.LittleEndian.Uint64(data[1:9])
		acct.amount += amount
		m.supply += amount
		return nil

	case 3: // Transfer
		source, dest, owner := accounts[0], accounts[1], accounts[2]
		src, ok := f.tokens[source]
		if !ok {
			return fmt.Errorf("invalid source %s", source)
		}
		dst, ok := f.tokens[dest]
		if !ok {
			return fmt.Errorf("invalid account data for instruction: %s", dest)
		}
		if !src.owner.Equals(owner) {
			return errors.New("owner does not match")
		}
		if !src.mint.Equals(dst.mint) {
			return errors.New("account not associated with this mint")
		}
		amount := binary.LittleEndian.Uint64(data[1:9])
		if src.amount < amount {
			return errors.New("insufficient funds")
		}
		src.amount -= amount
		dst.amount += amount
		return nil
	}
	return fmt.Errorf("unsupported token instruction %d", data[0])
}

func (f *fakeLedger) executeCreateATA(accounts []solanago.PublicKey) error {
	ata, owner, mint := accounts[1], accounts[2], accounts[3]
	want, _, err := solanago.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return err
	}
	if !want.Equals(ata) {
		return fmt.Errorf("associated address mismatch: %s != %s", ata, want)
	}
	if _, exists := f.tokens[ata]; exists {
		return fmt.Errorf("account %s already in use", ata)
	}
	if m, ok := f.mints[mint]; !ok || !m.initialized {
		return fmt.Errorf("mint %s not initialized", mint)
	}
	f.tokens[ata] = &fakeTokenAccount{mint: mint, owner: owner}
	return nil
}

func (f *fakeLedger) GetTokenAccountBalance(ctx context.Context, account solanago.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.tokenErrOnce; err != nil {
		f.tokenErrOnce = nil
		return nil, err
	}
	acct, ok := f.tokens[account]
	if !ok {
		return nil, &jsonrpc.RPCError{Code: -32602, Message: "Invalid param: could not find account"}
	}
	var decimals uint8
	if m, ok := f.mints[acct.mint]; ok {
		decimals = m.decimals
	}
	return &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{
			Amount:   strconv.FormatUint(acct.amount, 10),
			Decimals: decimals,
		},
	}, nil
}

func (f *fakeLedger) GetAccountInfo(ctx context.Context, account solanago.PublicKey, commitment rpc.CommitmentType) (*rpc.GetAccountInfoResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mints[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	data := make([]byte, solana.MintAccountSize)
	if m.initialized {
		binary.LittleEndian.PutUint32(data[0:4], 1)
		copy(data[4:36], m.authority[:])
		data[45] = 1
	}
	binary.LittleEndian.PutUint64(data[36:44], m.supply)
	data[44] = m.decimals
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{
			Lamports: f.lamports[account],
			Owner:    solanago.TokenProgramID,
			Data:     rpc.DataBytesOrJSONFromBytes(data),
		},
	}, nil
}

func (f *fakeLedger) GetBalance(ctx context.Context, account solanago.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &rpc.GetBalanceResult{Value: f.lamports[account]}, nil
}

func (f *fakeLedger) tokenAmount(account solanago.PublicKey) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.tokens[account]
	if !ok {
		return 0, false
	}
	return acct.amount, true
}

func (f *fakeLedger) lamportsOf(account solanago.PublicKey) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lamports[account]
}
