package selector

import (
	"sort"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// oldestSelect returns the transactions that have been waiting the longest
// regardless of who sent them.
var oldestSelect = func(m map[string][]database.Tx, howMany int) []database.Tx {
	var all []database.Tx
	for _, txs := range m {
		all = append(all, txs...)
	}

	sort.Sort(byCreated(all))

	if howMany >= 0 && len(all) > howMany {
		all = all[:howMany]
	}

	final := make([]database.Tx, len(all))
	copy(final, all)

	return final
}
