package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ardanlabs/utxochain/foundation/blockchain/merkle"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Set of values that define the economics of the blockchain.
var (
	TransactionFee = decimal.NewFromInt(1)
	MiningReward   = decimal.NewFromInt(100)
)

// Set of limits on the size and difficulty of blocks.
const (
	MaxTransPerBlock  = 100
	MinTransPerBlock  = 1
	DefaultDifficulty = 20
)

// Set of errors returned when working with blocks.
var (
	ErrNotCreator     = errors.New("requester is not the creator of the block")
	ErrBlockSealed    = errors.New("block has already been mined or signed")
	ErrBlockFull      = errors.New("block holds the maximum number of transactions")
	ErrBlockEmpty     = errors.New("block holds too few transactions")
	ErrRewardSet      = errors.New("block already has a reward transaction")
	ErrNotMined       = errors.New("block has not been mined")
	ErrNotSigned      = errors.New("block has not been signed")
	ErrTxNotFound     = errors.New("transaction not found in block")
	ErrHashNotSolved  = errors.New("block id does not solve the difficulty")
	ErrBlockIDChanged = errors.New("block id does not match its content")
)

// EventHandler defines a function that is called when events
// occur in the processing of the blockchain.
type EventHandler func(v string, args ...any)

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	PrevBlockID string             `json:"prev_block_id"` // Bitcoin: Id of the previous block in the chain.
	TimeStamp   uint64             `json:"timestamp"`     // Bitcoin: Time the block was created in milliseconds.
	Difficulty  uint               `json:"difficulty"`    // Number of leading zero bits needed to solve the puzzle.
	Nonce       uint64             `json:"nonce"`         // Bitcoin: Value identified to solve the hash solution.
	Creator     signature.Identity `json:"creator"`       // The miner who assembled, mined and signed the block.
}

// Block represents a group of transactions batched together with a single
// reward transaction for the creator.
type Block struct {
	Header    BlockHeader `json:"header"`
	Trans     []Tx        `json:"trans"`
	RewardTx  *Tx         `json:"reward_tx,omitempty"`
	ID        string      `json:"id"`
	Mined     bool        `json:"mined"`
	Signed    bool        `json:"signed"`
	Signature string      `json:"signature"`
	MaxTrans  int         `json:"max_trans"`
}

// NewBlock constructs a new block that references the specified previous
// block id. When maxTrans is zero the default maximum is used.
func NewBlock(prevBlockID string, difficulty uint, creator signature.Identity, maxTrans int) *Block {
	if maxTrans <= 0 {
		maxTrans = MaxTransPerBlock
	}

	b := Block{
		Header: BlockHeader{
			PrevBlockID: prevBlockID,
			TimeStamp:   now(),
			Difficulty:  difficulty,
			Creator:     creator,
		},
		MaxTrans: maxTrans,
	}
	b.ID = b.ComputeID()

	return &b
}

// MerkleRoot returns the root of the merkle tree built from the transaction
// ids in collection order followed by the reward transaction id.
func (b *Block) MerkleRoot() string {
	root, err := merkle.Root(b.leaves())
	if err != nil {
		return merkle.ZeroHash
	}

	return root
}

// Tree constructs the merkle tree for the block so inclusion proofs can
// be produced.
func (b *Block) Tree() (*merkle.Tree[Tx], error) {
	return merkle.NewTree(b.leaves())
}

// ComputeID calculates the id of the block from the previous block id, the
// timestamp, the merkle root and the nonce. The digest is returned as a bit
// string so the leading zeros can be counted.
func (b *Block) ComputeID() string {

	// CORE NOTE: Only the header values and the merkle root are hashed, not
	// the transactions themselves. Any change to a transaction changes the
	// merkle root which in turn changes the id.

	message := b.Header.PrevBlockID +
		strconv.FormatUint(b.Header.TimeStamp, 16) +
		b.MerkleRoot() +
		strconv.FormatUint(b.Header.Nonce, 10)

	return signature.ToBitString(signature.HashBytes(message))
}

// AddTransaction appends the transaction to the block. Only the creator can
// add transactions and only before the block is mined or signed.
func (b *Block) AddTransaction(tx Tx, requester signature.Identity) error {
	if len(b.Trans) >= b.maxTrans() {
		return ErrBlockFull
	}

	if err := b.canModify(requester); err != nil {
		return err
	}

	b.Trans = append(b.Trans, tx)

	return nil
}

// DeleteTransaction removes the transaction from the block. The same rules
// that apply to adding a transaction apply to deleting one.
func (b *Block) DeleteTransaction(tx Tx, requester signature.Identity) error {
	if err := b.canModify(requester); err != nil {
		return err
	}

	for i := range b.Trans {
		if b.Trans[i].Equals(tx) {
			b.Trans = append(b.Trans[:i:i], b.Trans[i+1:]...)
			return nil
		}
	}

	return ErrTxNotFound
}

// DeleteTransactionAt removes the transaction at the specified index.
func (b *Block) DeleteTransactionAt(index int, requester signature.Identity) error {
	if err := b.canModify(requester); err != nil {
		return err
	}

	if index < 0 || index >= len(b.Trans) {
		return fmt.Errorf("%w: index %d", ErrTxNotFound, index)
	}

	b.Trans = append(b.Trans[:index:index], b.Trans[index+1:]...)

	return nil
}

// SetRewardTransaction attaches the reward transaction to the block. This
// can only happen once and only by the creator.
func (b *Block) SetRewardTransaction(requester signature.Identity, tx Tx) error {
	if b.RewardTx != nil {
		return ErrRewardSet
	}

	if err := b.canModify(requester); err != nil {
		return err
	}

	b.RewardTx = &tx

	return nil
}

// Mine performs the work of finding a nonce that produces an id with the
// number of leading zero bits the difficulty requires. Mining a block that
// is already mined does nothing. The search only stops when the puzzle is
// solved or the context is cancelled.
func (b *Block) Mine(ctx context.Context, requester signature.Identity, ev EventHandler) error {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	if b.Mined {
		return nil
	}

	if requester != b.Header.Creator {
		return ErrNotCreator
	}

	if len(b.Trans) < MinTransPerBlock {
		return ErrBlockEmpty
	}

	ev("database: Mine: MINING: started: difficulty[%d]: txs[%d]", b.Header.Difficulty, len(b.Trans))
	defer ev("database: Mine: MINING: completed")

	// The id is recomputed from the same merkle root for every nonce, so
	// construct the part of the message that doesn't change once.
	prefix := b.Header.PrevBlockID + strconv.FormatUint(b.Header.TimeStamp, 16) + b.MerkleRoot()

	// Loop until we or another node finds a solution for the next block.
	var attempts uint64
	nonce := b.Header.Nonce
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: Mine: MINING: attempts[%d]", attempts)
		}

		// Did we get cancelled trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: Mine: MINING: CANCELLED: attempts[%d]", attempts)
			return ctx.Err()
		}

		id := signature.ToBitString(signature.HashBytes(prefix + strconv.FormatUint(nonce, 10)))
		if !IsHashSolved(b.Header.Difficulty, id) {
			nonce++
			continue
		}

		b.Header.Nonce = nonce
		b.ID = id
		b.Mined = true

		ev("database: Mine: MINING: SOLVED: prevBlk[%s]: attempts[%d]", short(b.Header.PrevBlockID), attempts)

		return nil
	}
}

// Sign stores the creator's signature over the block id. The block must be
// mined first and the signature must verify against the creator's identity.
// Signing a block that is already signed does nothing.
func (b *Block) Sign(requester signature.Identity, sig string) error {
	if b.Signed {
		return nil
	}

	if !b.Mined {
		return ErrNotMined
	}

	if requester != b.Header.Creator {
		return ErrNotCreator
	}

	if err := signature.Verify(requester, sig, b.ID); err != nil {
		return fmt.Errorf("verify block signature: %w", err)
	}

	b.Signature = sig
	b.Signed = true

	return nil
}

// VerifySignature checks the block was signed by its creator.
func (b *Block) VerifySignature() error {
	if !b.Signed || b.Signature == "" {
		return ErrNotSigned
	}

	return signature.Verify(b.Header.Creator, b.Signature, b.ID)
}

// VerifyWork checks the id solves the difficulty and that recomputing the
// id from the content of the block reproduces it.
func (b *Block) VerifyWork() error {
	if !IsHashSolved(b.Header.Difficulty, b.ID) {
		return ErrHashNotSolved
	}

	if b.ComputeID() != b.ID {
		return ErrBlockIDChanged
	}

	return nil
}

// TransactionFeeTotal returns the fees collected from the transactions in
// the block.
func (b *Block) TransactionFeeTotal() decimal.Decimal {
	return TransactionFee.Mul(decimal.NewFromInt(int64(len(b.Trans))))
}

// Transaction returns the transaction at the specified index.
func (b *Block) Transaction(index int) (Tx, error) {
	if index < 0 || index >= len(b.Trans) {
		return Tx{}, fmt.Errorf("%w: index %d", ErrTxNotFound, index)
	}

	return b.Trans[index], nil
}

// canModify validates the requester is allowed to change the block.
func (b *Block) canModify(requester signature.Identity) error {
	if requester != b.Header.Creator {
		return ErrNotCreator
	}

	if b.Mined || b.Signed {
		return ErrBlockSealed
	}

	return nil
}

// maxTrans returns the configured maximum number of transactions.
func (b *Block) maxTrans() int {
	if b.MaxTrans <= 0 {
		return MaxTransPerBlock
	}
	return b.MaxTrans
}

// leaves returns the values that make up the merkle tree for the block.
func (b *Block) leaves() []Tx {
	leaves := make([]Tx, 0, len(b.Trans)+1)
	leaves = append(leaves, b.Trans...)
	if b.RewardTx != nil {
		leaves = append(leaves, *b.RewardTx)
	}

	return leaves
}

// =============================================================================

// IsHashSolved checks the id to make sure it complies with the POW rules.
// The bit string must start with difficulty number of '0' characters.
func IsHashSolved(difficulty uint, id string) bool {
	if uint(len(id)) < difficulty {
		return false
	}

	for i := uint(0); i < difficulty; i++ {
		if id[i] != '0' {
			return false
		}
	}

	return true
}

// short returns a shortened version of an id for logging.
func short(id string) string {
	const size = 16
	if len(id) <= size {
		return id
	}
	return id[len(id)-size:]
}
