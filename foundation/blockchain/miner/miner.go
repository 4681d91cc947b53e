// Package miner implements the consensus agent of the blockchain. A miner is
// an account that also assembles, mines, signs and announces blocks.
package miner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/account"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/mempool"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Set of errors returned by the miner.
var (
	ErrNoTransactions = errors.New("no transactions in mempool")
	ErrLostRace       = errors.New("another block took the tip while mining")
	ErrAttemptRunning = errors.New("a mining attempt is already running")
	ErrNotGenesis     = errors.New("only the genesis creator grants the sign-in bonus")
	ErrBonusDisabled  = errors.New("sign-in bonus is disabled")
	ErrBonusGranted   = errors.New("identity already received the sign-in bonus")
	ErrBonusLimit     = errors.New("sign-in bonus user limit reached")
)

// =============================================================================

// Broadcaster interface represents the behavior required to be implemented by
// any package providing support for announcing blocks and transactions to
// the network. A broadcaster must deliver a block back to the miner that
// announced it, that echo is what commits the block to the miner's ledger.
type Broadcaster interface {
	BroadcastBlock(block *database.Block) error
	BroadcastTransaction(tx database.Tx) error
}

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and transaction sharing.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx database.Tx)
}

// nopWorker is used until a worker registers itself.
type nopWorker struct{}

func (nopWorker) Shutdown()                         {}
func (nopWorker) SignalStartMining()                {}
func (nopWorker) SignalCancelMining() (done func()) { return func() {} }
func (nopWorker) SignalShareTx(tx database.Tx)      {}

// =============================================================================

// Config represents the configuration required to construct a miner.
type Config struct {
	Account        *account.Account
	SelectStrategy string
	Difficulty     uint
	TransPerBlock  int
	Mining         bool
	Broadcaster    Broadcaster
	BonusAmount    decimal.Decimal
	BonusLimit     int
}

// Miner is an account that takes part in consensus.
type Miner struct {
	*account.Account

	mempool       *mempool.Mempool
	difficulty    uint
	transPerBlock int
	mining        bool
	evHandler     database.EventHandler
	attempt       attempt

	mu          sync.RWMutex
	broadcaster Broadcaster

	bonusMu     sync.Mutex
	bonus       map[signature.Identity]struct{}
	bonusAmount decimal.Decimal
	bonusLimit  int

	// The Worker is not set here. The call to worker.Run will assign itself.
	Worker Worker
}

// New constructs a miner around the account.
func New(cfg Config) (*Miner, error) {
	if cfg.Account == nil {
		return nil, errors.New("account is required")
	}

	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = "oldest"
	}

	mp, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	difficulty := cfg.Difficulty
	if difficulty == 0 {
		difficulty = database.DefaultDifficulty
		if genesis := cfg.Account.Ledger().Genesis(); genesis != nil {
			difficulty = genesis.Header.Difficulty
		}
	}

	transPerBlock := cfg.TransPerBlock
	if transPerBlock <= 0 {
		transPerBlock = database.MaxTransPerBlock
	}

	m := Miner{
		Account:       cfg.Account,
		mempool:       mp,
		difficulty:    difficulty,
		transPerBlock: transPerBlock,
		mining:        cfg.Mining,
		evHandler:     cfg.Account.EvHandler(),
		broadcaster:   cfg.Broadcaster,
		bonus:         make(map[signature.Identity]struct{}),
		bonusAmount:   cfg.BonusAmount,
		bonusLimit:    cfg.BonusLimit,
	}

	return &m, nil
}

// SetBroadcaster replaces the broadcaster used to announce blocks. A nil
// broadcaster delivers blocks straight back to this miner.
func (m *Miner) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.broadcaster = b
}

// IsMiningAllowed reports if this miner is configured to mine blocks.
func (m *Miner) IsMiningAllowed() bool {
	return m.mining
}

// Difficulty returns the difficulty used for new blocks.
func (m *Miner) Difficulty() uint {
	return m.difficulty
}

// Status returns the state of the current mining attempt.
func (m *Miner) Status() Status {
	return m.attempt.status()
}

// MempoolLength returns the number of pending transactions.
func (m *Miner) MempoolLength() int {
	return m.mempool.Count()
}

// Mempool returns a copy of the pending transactions.
func (m *Miner) Mempool() []database.Tx {
	return m.mempool.Copy()
}

// =============================================================================

// CreateCandidateBlock constructs a new block that references the tip of the
// specified ledger.
func (m *Miner) CreateCandidateBlock(ledger *database.Blockchain, difficulty uint) (*database.Block, error) {
	tip := ledger.Tip()
	if tip == nil {
		return nil, account.ErrNoLedger
	}

	return database.NewBlock(tip.ID, difficulty, m.Identity(), m.transPerBlock), nil
}

// CollectTransaction re-validates the transaction and adds it to the block.
func (m *Miner) CollectTransaction(tx database.Tx, block *database.Block) error {
	if err := m.ValidateTransaction(tx); err != nil {
		return err
	}

	for _, btx := range block.Trans {
		if btx.Equals(tx) {
			return fmt.Errorf("tx[%s]: %w", tx, account.ErrDuplicateTx)
		}
	}

	return block.AddTransaction(tx, m.Identity())
}

// DeleteTransaction removes the transaction from a block that has not been
// mined yet.
func (m *Miner) DeleteTransaction(tx database.Tx, block *database.Block) error {
	return block.DeleteTransaction(tx, m.Identity())
}

// IssueRewardTransaction attaches the reward transaction paying the mining
// reward plus the fees of the collected transactions to this miner. It must
// be called after the transactions are collected.
func (m *Miner) IssueRewardTransaction(block *database.Block) error {
	amount := database.MiningReward.Add(block.TransactionFeeTotal())

	tx := database.NewRewardTx(m.Identity(), amount)
	if err := m.SignTx(&tx); err != nil {
		return err
	}

	return block.SetRewardTransaction(m.Identity(), tx)
}

// MineAndSign performs the proof of work for the block and then signs it.
func (m *Miner) MineAndSign(ctx context.Context, block *database.Block) error {
	if err := block.Mine(ctx, m.Identity(), m.evHandler); err != nil {
		return err
	}
	m.attempt.move(StateMined)

	if err := m.SignBlock(block); err != nil {
		return err
	}
	m.attempt.move(StateSigned)

	return nil
}

// MineNextBlock runs a full mining attempt against the current tip. The
// block is assembled from the mempool, rewarded, mined, signed and finally
// announced. The attempt stops early when the context is cancelled or the
// tip moves before the block can be announced. The block only becomes part
// of the local ledger when the announcement is delivered back to this miner.
func (m *Miner) MineNextBlock(ctx context.Context) (*database.Block, error) {
	if m.mempool.Count() == 0 {
		return nil, ErrNoTransactions
	}

	if !m.attempt.move(StateAssembling) {
		return nil, ErrAttemptRunning
	}

	abort := func(err error) (*database.Block, error) {
		m.attempt.move(StateAborted)
		m.evHandler("miner: MineNextBlock: %s: ABORTED: %s", m.Name(), err)
		return nil, err
	}

	ledger := m.Ledger()

	block, err := m.CreateCandidateBlock(ledger, m.difficulty)
	if err != nil {
		return abort(err)
	}

	for _, tx := range m.mempool.PickBest(m.transPerBlock) {
		err := m.CollectTransaction(tx, block)
		switch {
		case err == nil:
		case errors.Is(err, database.ErrBlockFull):
		default:
			m.evHandler("miner: MineNextBlock: %s: dropping tx[%s]: %s", m.Name(), tx, err)
			m.mempool.Delete(tx)
		}
	}

	if len(block.Trans) < database.MinTransPerBlock {
		return abort(ErrNoTransactions)
	}

	if err := m.IssueRewardTransaction(block); err != nil {
		return abort(err)
	}
	m.attempt.track(block.ID, len(block.Trans))

	m.evHandler("miner: MineNextBlock: %s: assembled: prevBlk[%s]: txs[%d]", m.Name(), short(block.Header.PrevBlockID), len(block.Trans))

	if ctx.Err() != nil {
		return abort(ctx.Err())
	}

	if err := m.MineAndSign(ctx, block); err != nil {
		return abort(err)
	}
	m.attempt.track(block.ID, len(block.Trans))

	if ctx.Err() != nil {
		return abort(ctx.Err())
	}

	if tip := m.Ledger().Tip(); tip == nil || tip.ID != block.Header.PrevBlockID {
		return abort(ErrLostRace)
	}

	m.attempt.move(StateAnnounced)
	m.evHandler("miner: MineNextBlock: %s: ANNOUNCED: blk[%s]", m.Name(), short(block.ID))

	if err := m.announce(block); err != nil {
		return block, fmt.Errorf("announce: %w", err)
	}

	return block, nil
}

// announce sends the block to the network.
func (m *Miner) announce(block *database.Block) error {
	m.mu.RLock()
	b := m.broadcaster
	m.mu.RUnlock()

	if b == nil {
		return m.ReceiveBlock(block)
	}

	return b.BroadcastBlock(block)
}

// =============================================================================

// SubmitTransaction accepts a transaction from a wallet. The transaction is
// added to the mempool and shared with the network.
func (m *Miner) SubmitTransaction(tx database.Tx) error {
	if err := m.ValidateTransaction(tx); err != nil {
		return err
	}

	n := m.mempool.Upsert(tx)
	m.evHandler("miner: SubmitTransaction: %s: tx[%s]: mempool[%d]", m.Name(), tx, n)

	m.worker().SignalShareTx(tx)
	m.worker().SignalStartMining()

	return nil
}

// SendTransfer builds a transfer from this miner's funds and submits it.
func (m *Miner) SendTransfer(receivers []signature.Identity, amounts []decimal.Decimal) (database.Tx, error) {
	tx, err := m.Transfer(receivers, amounts)
	if err != nil {
		return database.Tx{}, err
	}

	if err := m.SubmitTransaction(tx); err != nil {
		m.ReleaseTransaction(tx)
		return database.Tx{}, err
	}

	return tx, nil
}

// ReceiveTransaction accepts a transaction shared by the network.
func (m *Miner) ReceiveTransaction(tx database.Tx) error {
	if err := m.Account.ReceiveTransaction(tx); err != nil {
		return err
	}

	if m.mempool.Exists(tx.ID) {
		return nil
	}

	n := m.mempool.Upsert(tx)
	m.evHandler("miner: ReceiveTransaction: %s: tx[%s]: mempool[%d]", m.Name(), tx, n)

	m.worker().SignalStartMining()

	return nil
}

// ReceiveBlock accepts a block from the network, including the blocks this
// miner announced itself. An accepted block cancels the mining attempt on
// the old tip. When a block this miner announced is rejected its
// transactions go back to the mempool to be mined again.
func (m *Miner) ReceiveBlock(block *database.Block) error {
	if err := m.Account.ReceiveBlock(block); err != nil {
		if block.Header.Creator == m.Identity() {
			m.recoverRejected(block)
		}
		return err
	}

	// If a mining operation is running it needs to stop immediately. The G
	// doing the mining will not return until done is called, which lets the
	// mempool be updated before a new mining operation takes place.
	done := m.worker().SignalCancelMining()
	defer func() {
		done()
		if m.mempool.Count() > 0 {
			m.worker().SignalStartMining()
		}
	}()

	for _, tx := range block.Trans {
		m.mempool.Delete(tx)
	}

	return nil
}

// ReceiveLedger adopts a longer ledger from the network and drops the
// pending transactions it already contains.
func (m *Miner) ReceiveLedger(ledger *database.Blockchain) error {
	if err := m.Account.ReceiveLedger(ledger); err != nil {
		return err
	}

	done := m.worker().SignalCancelMining()
	defer func() {
		done()
		if m.mempool.Count() > 0 {
			m.worker().SignalStartMining()
		}
	}()

	local := m.Ledger()
	for _, tx := range m.mempool.Copy() {
		if local.TransactionExists(tx) {
			m.mempool.Delete(tx)
		}
	}

	return nil
}

// recoverRejected returns the transactions of a rejected block that are not
// in the ledger to the mempool and signals a new mining attempt.
func (m *Miner) recoverRejected(block *database.Block) {
	ledger := m.Ledger()

	var released int
	for _, tx := range block.Trans {
		if !ledger.TransactionExists(tx) {
			m.mempool.Upsert(tx)
			released++
		}
	}

	m.evHandler("miner: ReceiveBlock: %s: own blk[%s] rejected: released[%d]", m.Name(), short(block.ID), released)

	if released > 0 {
		m.worker().SignalStartMining()
	}
}

// worker returns the registered worker or one that does nothing.
func (m *Miner) worker() Worker {
	if m.Worker == nil {
		return nopWorker{}
	}
	return m.Worker
}

// short returns a shortened version of a block id for logging.
func short(id string) string {
	const size = 16
	if len(id) <= size {
		return id
	}
	return id[len(id)-size:]
}
