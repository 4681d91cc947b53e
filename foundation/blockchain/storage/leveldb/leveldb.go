// Package leveldb implements the database.Storage interface on top of a
// LevelDB key value store. Each block is stored as JSON under a key made
// from its zero padded block number so keys sort in chain order.
package leveldb

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// keyPrefix is the prefix for every block key.
const keyPrefix = "block:"

// ErrNotFound is returned when a block number does not exist.
var ErrNotFound = errors.New("block not found")

// LevelDB represents the serialization implementation for reading and
// storing blocks in a LevelDB database. This implements the
// database.Storage interface.
type LevelDB struct {
	db *leveldb.DB
}

// New opens or creates the LevelDB database at the specified path.
func New(dbPath string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &LevelDB{db: db}, nil
}

// Close releases the database files.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Write takes the specified database block and stores it under its number.
func (l *LevelDB) Write(blockData database.BlockData) error {
	data, err := json.Marshal(blockData)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}

	if err := l.db.Put(key(blockData.Number), data, nil); err != nil {
		return fmt.Errorf("failed to store block: %w", err)
	}

	return nil
}

// GetBlock locates and returns the contents of the specified block by number.
func (l *LevelDB) GetBlock(num uint64) (database.BlockData, error) {
	data, err := l.db.Get(key(num), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.BlockData{}, ErrNotFound
		}
		return database.BlockData{}, fmt.Errorf("failed to get block: %w", err)
	}

	var blockData database.BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("failed to unmarshal block: %w", err)
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (l *LevelDB) ForEach() database.Iterator {
	return &Iterator{storage: l}
}

// Reset deletes every block from the database.
func (l *LevelDB) Reset() error {
	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		batch.Delete(k)
	}

	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterator error: %w", err)
	}

	if err := l.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to delete blocks: %w", err)
	}

	return nil
}

// key forms the database key for the specified block.
func key(num uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, num))
}

// =============================================================================

// Iterator represents the iteration implementation for walking through and
// reading blocks from LevelDB. This implements the database Iterator
// interface.
type Iterator struct {
	storage *LevelDB // Access to the storage API.
	current uint64   // Current block number being iterated over.
	eoc     bool     // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from the database.
func (li *Iterator) Next() (database.BlockData, error) {
	if li.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	li.current++
	blockData, err := li.storage.GetBlock(li.current)
	if errors.Is(err, ErrNotFound) {
		li.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (li *Iterator) Done() bool {
	return li.eoc
}
