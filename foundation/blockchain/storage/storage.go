// Package storage selects one of the database.Storage implementations by
// name.
package storage

import (
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/leveldb"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/memory"
)

// Set of supported storage kinds.
const (
	KindDisk    = "disk"
	KindLevelDB = "leveldb"
	KindMemory  = "memory"
)

// Open constructs the storage of the specified kind. The path is ignored
// for memory storage.
func Open(kind string, path string) (database.Storage, error) {
	var s database.Storage
	var err error

	switch kind {
	case KindDisk:
		s, err = disk.New(path)
	case KindLevelDB:
		s, err = leveldb.New(path)
	case KindMemory:
		s, err = memory.New()
	default:
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", kind, err)
	}

	return s, nil
}
