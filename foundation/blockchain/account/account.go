// Package account is the core API for a participant of the blockchain. An
// account owns a key pair and a local copy of the ledger, builds and signs
// transfers, and decides which blocks and ledgers from the network it
// accepts.
package account

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Set of errors returned by the account.
var (
	ErrNoLedger         = errors.New("account has no ledger")
	ErrTxChained        = errors.New("transaction already exists in the ledger")
	ErrDuplicateTx      = errors.New("transaction appears more than once in the block")
	ErrRewardExceeded   = errors.New("reward is more than the mining reward plus fees")
	ErrRewardInvalid    = errors.New("reward transaction is malformed")
	ErrDifficultyTooLow = errors.New("block difficulty is below the genesis difficulty")
	ErrLedgerNotLonger  = errors.New("ledger is not longer than the local ledger")
	ErrGenesisMismatch  = errors.New("ledger has a different genesis creator")
)

// =============================================================================

// Config represents the configuration required to construct an account.
type Config struct {
	PrivateKey *ecdsa.PrivateKey
	Ledger     *database.Blockchain
	Storage    database.Storage
	EvHandler  database.EventHandler
	LookupName func(id signature.Identity) string
}

// Account manages a key pair and the local ledger.
type Account struct {
	privateKey *ecdsa.PrivateKey
	id         signature.Identity
	storage    database.Storage
	evHandler  database.EventHandler
	lookupName func(id signature.Identity) string

	mu       sync.RWMutex
	ledger   *database.Blockchain
	reserved map[string]struct{}
}

// New constructs an account. When a ledger is provided it becomes the local
// ledger and is written to storage. Otherwise the ledger is loaded from
// storage, or starts empty when there is no storage.
func New(cfg Config) (*Account, error) {
	if cfg.PrivateKey == nil {
		return nil, errors.New("private key is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	lookup := cfg.LookupName
	if lookup == nil {
		lookup = func(id signature.Identity) string { return id.Short() }
	}

	ledger := database.NewBlockchain(nil)
	switch {
	case cfg.Ledger != nil:
		ledger = cfg.Ledger.Snapshot()
		if cfg.Storage != nil {
			if err := database.Rewrite(cfg.Storage, ledger); err != nil {
				return nil, fmt.Errorf("write ledger: %w", err)
			}
		}

	case cfg.Storage != nil:
		bc, err := database.Load(cfg.Storage, ev)
		if err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
		ledger = bc
	}

	a := Account{
		privateKey: cfg.PrivateKey,
		id:         signature.PublicKeyToIdentity(cfg.PrivateKey.PublicKey),
		storage:    cfg.Storage,
		evHandler:  ev,
		lookupName: lookup,
		ledger:     ledger,
		reserved:   make(map[string]struct{}),
	}

	return &a, nil
}

// Identity returns the public identity of the account.
func (a *Account) Identity() signature.Identity {
	return a.id
}

// Name returns the display name of the account.
func (a *Account) Name() string {
	return a.lookupName(a.id)
}

// LookupName returns the display name for any identity.
func (a *Account) LookupName(id signature.Identity) string {
	return a.lookupName(id)
}

// EvHandler returns the event handler the account logs through.
func (a *Account) EvHandler() database.EventHandler {
	return a.evHandler
}

// Ledger returns a snapshot of the local ledger. The snapshot is safe to
// read while the account keeps accepting blocks.
func (a *Account) Ledger() *database.Blockchain {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.ledger.Snapshot()
}

// LedgerSize returns the number of blocks in the local ledger.
func (a *Account) LedgerSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.ledger.Size()
}

// =============================================================================

// Balance returns the balance of the account in the specified ledger. A nil
// ledger means the local ledger.
func (a *Account) Balance(ledger *database.Blockchain) decimal.Decimal {
	if ledger == nil {
		ledger = a.Ledger()
	}

	return ledger.CheckBalance(a.id)
}

// UnspentFor returns the unspent UTXOs for the identity in the local ledger.
func (a *Account) UnspentFor(id signature.Identity) []database.UTXO {
	return a.Ledger().FindUnspentUTXOs(id)
}

// View returns what the local ledger knows about the identity.
func (a *Account) View(id signature.Identity) database.AccountView {
	return a.Ledger().DeriveAccountView(id)
}

// =============================================================================

// Transfer builds and signs a transaction paying the amounts to the
// receivers. Unspent UTXOs are taken in ledger order until they cover the
// amounts plus the transaction fee. UTXOs already used by an earlier transfer
// that is not yet in the ledger are skipped.
func (a *Account) Transfer(receivers []signature.Identity, amounts []decimal.Decimal) (database.Tx, error) {
	if len(receivers) != len(amounts) {
		return database.Tx{}, database.ErrAmountsMismatch
	}

	required := database.TransactionFee
	for _, amount := range amounts {
		if !amount.IsPositive() {
			return database.Tx{}, fmt.Errorf("amount %s must be positive", amount)
		}
		required = required.Add(amount)
	}

	ledger := a.Ledger()

	a.mu.Lock()
	defer a.mu.Unlock()

	var inputs []database.UTXO
	available := decimal.Zero
	for _, u := range ledger.FindUnspentUTXOs(a.id) {
		if available.GreaterThanOrEqual(required) {
			break
		}
		if _, exists := a.reserved[u.ID]; exists {
			continue
		}
		inputs = append(inputs, u)
		available = available.Add(u.Amount)
	}

	if available.LessThan(required) {
		return database.Tx{}, fmt.Errorf("%w: available %s, required %s", database.ErrInsufficientFunds, available, required)
	}

	tx := database.NewTx(a.id, receivers, amounts, inputs)
	if err := tx.PrepareOutputs(); err != nil {
		return database.Tx{}, err
	}

	if err := tx.Sign(a.privateKey); err != nil {
		return database.Tx{}, err
	}

	for _, u := range inputs {
		a.reserved[u.ID] = struct{}{}
	}

	a.evHandler("account: Transfer: %s: tx[%s]: inputs[%d]: amount[%s]", a.Name(), tx, len(inputs), tx.TotalAmount())

	return tx, nil
}

// ReleaseTransaction frees the UTXOs a transfer reserved so a later transfer
// can spend them. This is used when a transaction is abandoned.
func (a *Account) ReleaseTransaction(tx database.Tx) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, u := range tx.Inputs {
		delete(a.reserved, u.ID)
	}
}

// SignTx signs a transaction the account is the sender of.
func (a *Account) SignTx(tx *database.Tx) error {
	return tx.Sign(a.privateKey)
}

// SignBlock signs a mined block the account created.
func (a *Account) SignBlock(block *database.Block) error {
	sig, err := signature.Sign(block.ID, a.privateKey)
	if err != nil {
		return err
	}

	return block.Sign(a.id, sig)
}
