package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Set of errors returned when working with the blockchain.
var (
	ErrEmptyChain       = errors.New("blockchain has no blocks")
	ErrBlockExists      = errors.New("block already exists in the blockchain")
	ErrPrevBlockInvalid = errors.New("previous block id does not match the tip")
)

// =============================================================================

// Blockchain is an ordered, append only sequence of blocks starting with the
// genesis block. A Blockchain is not safe for concurrent mutation, owners
// are expected to guard it and hand out snapshots to readers.
type Blockchain struct {
	blocks []*Block
}

// NewBlockchain constructs a blockchain that starts with the genesis block.
func NewBlockchain(genesis *Block) *Blockchain {
	bc := Blockchain{}
	if genesis != nil {
		bc.blocks = append(bc.blocks, genesis)
	}

	return &bc
}

// Append adds the block to the end of the chain. An empty chain accepts any
// block as its genesis, otherwise the block must reference the tip.
func (bc *Blockchain) Append(block *Block) error {
	if len(bc.blocks) == 0 {
		bc.blocks = append(bc.blocks, block)
		return nil
	}

	for _, b := range bc.blocks {
		if b.ID == block.ID {
			return ErrBlockExists
		}
	}

	tip := bc.blocks[len(bc.blocks)-1]
	if block.Header.PrevBlockID != tip.ID {
		return ErrPrevBlockInvalid
	}

	bc.blocks = append(bc.blocks, block)

	return nil
}

// Validate walks the chain from the tip back to the genesis block checking
// every block is signed by its creator, solves its difficulty, produces the
// same id from its content and references its predecessor. Any failure
// rejects the whole chain.
func (bc *Blockchain) Validate() error {
	if len(bc.blocks) == 0 {
		return ErrEmptyChain
	}

	for i := len(bc.blocks) - 1; i > 0; i-- {
		block := bc.blocks[i]

		if err := block.VerifySignature(); err != nil {
			return fmt.Errorf("block[%d]: signature: %w", i, err)
		}

		if err := block.VerifyWork(); err != nil {
			return fmt.Errorf("block[%d]: work: %w", i, err)
		}

		if block.Header.PrevBlockID != bc.blocks[i-1].ID {
			return fmt.Errorf("block[%d]: %w", i, ErrPrevBlockInvalid)
		}
	}

	genesis := bc.blocks[0]

	if err := genesis.VerifySignature(); err != nil {
		return fmt.Errorf("genesis: signature: %w", err)
	}

	if err := genesis.VerifyWork(); err != nil {
		return fmt.Errorf("genesis: work: %w", err)
	}

	return nil
}

// =============================================================================

// AccountView represents everything the blockchain knows about an identity.
type AccountView struct {
	Identity signature.Identity `json:"identity"`
	All      []UTXO             `json:"all"`
	Spent    []UTXO             `json:"spent"`
	Unspent  []UTXO             `json:"unspent"`
	Sent     []Tx               `json:"sent"`
	Rewards  []UTXO             `json:"rewards"`
	Received decimal.Decimal    `json:"received"`
	Paid     decimal.Decimal    `json:"paid"`
	Balance  decimal.Decimal    `json:"balance"`
}

// DeriveAccountView replays every block in the chain to find the UTXOs the
// identity received, the UTXOs it spent, the ones still unspent, the
// transactions it sent and the rewards it minted.
func (bc *Blockchain) DeriveAccountView(id signature.Identity) AccountView {
	view := AccountView{
		Identity: id,
		Received: decimal.Zero,
		Paid:     decimal.Zero,
	}

	spent := make(map[string]struct{})

	for i, block := range bc.blocks {
		for _, tx := range block.Trans {

			// The inputs of the genesis transactions were never produced by
			// any block, so they are not counted as spent.
			if i != 0 && tx.Sender == id {
				for _, input := range tx.Inputs {
					spent[input.ID] = struct{}{}
					view.Spent = append(view.Spent, input)
					view.Paid = view.Paid.Add(input.Amount)
				}
				view.Sent = append(view.Sent, tx)
			}

			for _, output := range tx.Outputs {
				if output.Receiver == id {
					view.All = append(view.All, output)
					view.Received = view.Received.Add(output.Amount)
				}
			}
		}

		// A creator can only collect a reward paid to itself.
		if block.Header.Creator == id && block.RewardTx != nil {
			outputs := block.RewardTx.Outputs
			if len(outputs) == 1 && outputs[0].Receiver == id {
				view.All = append(view.All, outputs[0])
				view.Rewards = append(view.Rewards, outputs[0])
				view.Received = view.Received.Add(outputs[0].Amount)
			}
		}
	}

	for _, u := range view.All {
		if _, exists := spent[u.ID]; !exists {
			view.Unspent = append(view.Unspent, u)
		}
	}

	view.Balance = view.Received.Sub(view.Paid)

	return view
}

// CheckBalance returns the balance for the identity.
func (bc *Blockchain) CheckBalance(id signature.Identity) decimal.Decimal {
	return bc.DeriveAccountView(id).Balance
}

// FindUnspentUTXOs returns the UTXOs the identity can still spend.
func (bc *Blockchain) FindUnspentUTXOs(id signature.Identity) []UTXO {
	return bc.DeriveAccountView(id).Unspent
}

// TransactionExists reports if the transaction is already part of a block
// after the genesis block.
func (bc *Blockchain) TransactionExists(tx Tx) bool {
	return bc.TransactionExistsByID(tx.ID)
}

// TransactionExistsByID reports if a transaction with the id is already part
// of a block after the genesis block.
func (bc *Blockchain) TransactionExistsByID(txID string) bool {
	for i := 1; i < len(bc.blocks); i++ {
		for _, tx := range bc.blocks[i].Trans {
			if tx.ID == txID {
				return true
			}
		}
	}

	return false
}

// Identities returns every identity that appears in the chain as a sender,
// receiver or creator, sorted for a stable order.
func (bc *Blockchain) Identities() []signature.Identity {
	set := make(map[signature.Identity]struct{})

	for _, block := range bc.blocks {
		set[block.Header.Creator] = struct{}{}
		for _, tx := range block.Trans {
			set[tx.Sender] = struct{}{}
			for _, output := range tx.Outputs {
				set[output.Receiver] = struct{}{}
			}
		}
	}

	ids := make([]signature.Identity, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// =============================================================================

// Snapshot returns an independent copy of the chain. The blocks themselves
// are shared, only the sequence is copied, so each copy can grow on its own.
func (bc *Blockchain) Snapshot() *Blockchain {
	blocks := make([]*Block, len(bc.blocks))
	copy(blocks, bc.blocks)

	return &Blockchain{blocks: blocks}
}

// Size returns the number of blocks in the chain.
func (bc *Blockchain) Size() int {
	return len(bc.blocks)
}

// Tip returns the last block in the chain or nil if the chain is empty.
func (bc *Blockchain) Tip() *Block {
	if len(bc.blocks) == 0 {
		return nil
	}
	return bc.blocks[len(bc.blocks)-1]
}

// Genesis returns the first block in the chain or nil if the chain is empty.
func (bc *Blockchain) Genesis() *Block {
	if len(bc.blocks) == 0 {
		return nil
	}
	return bc.blocks[0]
}

// GenesisCreator returns the creator of the genesis block.
func (bc *Blockchain) GenesisCreator() signature.Identity {
	if len(bc.blocks) == 0 {
		return ""
	}
	return bc.blocks[0].Header.Creator
}

// BlockAt returns the block at the specified index.
func (bc *Blockchain) BlockAt(index int) (*Block, error) {
	if index < 0 || index >= len(bc.blocks) {
		return nil, fmt.Errorf("block index %d out of range", index)
	}
	return bc.blocks[index], nil
}

// Blocks returns a copy of the sequence of blocks.
func (bc *Blockchain) Blocks() []*Block {
	blocks := make([]*Block, len(bc.blocks))
	copy(blocks, bc.blocks)

	return blocks
}

// MarshalJSON implements the json.Marshaler interface.
func (bc *Blockchain) MarshalJSON() ([]byte, error) {
	blocks := bc.blocks
	if blocks == nil {
		blocks = []*Block{}
	}
	return json.Marshal(blocks)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (bc *Blockchain) UnmarshalJSON(data []byte) error {
	var blocks []*Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}

	bc.blocks = blocks
	return nil
}
