// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyOldest = "oldest"
	StrategyFair   = "fair"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyOldest: oldestSelect,
	StrategyFair:   fairSelect,
}

// Func defines a function that takes a mempool of transactions grouped by
// sender and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST keep each sender's transactions in
// the order they were created. Receiving -1 for howMany must return all
// the transactions in the strategies ordering.
type Func func(transactions map[string][]database.Tx, howMany int) []database.Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byCreated provides sorting support by the time a transaction was created.
type byCreated []database.Tx

// Len returns the number of transactions in the list.
func (bc byCreated) Len() int {
	return len(bc)
}

// Less helps to sort the list by timestamp in ascending order. The sequence
// decides between transactions created in the same millisecond.
func (bc byCreated) Less(i, j int) bool {
	if bc[i].TimeStamp != bc[j].TimeStamp {
		return bc[i].TimeStamp < bc[j].TimeStamp
	}
	return bc[i].Sequence < bc[j].Sequence
}

// Swap moves transactions in the order of creation.
func (bc byCreated) Swap(i, j int) {
	bc[i], bc[j] = bc[j], bc[i]
}
