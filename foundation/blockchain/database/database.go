// Package database handles the core ledger types of the blockchain. It
// provides the UTXO, transaction, block and blockchain types along with the
// support for reading and writing the blockchain to storage.
package database

import (
	"fmt"
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// BlockData represents what is written to storage. The number is the
// position of the block in the chain starting with 1 for the genesis block.
type BlockData struct {
	Number uint64 `json:"number"`
	Block  Block  `json:"block"`
}

// NewBlockData constructs the value to serialize to storage.
func NewBlockData(number uint64, block *Block) BlockData {
	return BlockData{
		Number: number,
		Block:  *block,
	}
}

// ToBlock converts a BlockData into a Block.
func ToBlock(blockData BlockData) *Block {
	block := blockData.Block
	return &block
}

// =============================================================================

// Load reads all the blocks from storage, appending each one to a new
// blockchain. The final chain is validated before it is returned. Storage
// with no blocks produces an empty chain.
func Load(storage Storage, ev EventHandler) (*Blockchain, error) {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	ev("database: Load: started")
	defer ev("database: Load: completed")

	bc := NewBlockchain(nil)

	iter := storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		if err := bc.Append(ToBlock(blockData)); err != nil {
			return nil, fmt.Errorf("block[%d]: %w", blockData.Number, err)
		}

		ev("database: Load: blk[%d]: appended", blockData.Number)
	}

	if bc.Size() == 0 {
		return bc, nil
	}

	if err := bc.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return bc, nil
}

// Write stores the block at the specified chain position.
func Write(storage Storage, number uint64, block *Block) error {
	return storage.Write(NewBlockData(number, block))
}

// Rewrite clears the storage and writes every block of the chain. This is
// used when a longer chain replaces the one held in storage.
func Rewrite(storage Storage, bc *Blockchain) error {
	if err := storage.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	for i, block := range bc.Blocks() {
		if err := Write(storage, uint64(i+1), block); err != nil {
			return fmt.Errorf("write block[%d]: %w", i+1, err)
		}
	}

	return nil
}
