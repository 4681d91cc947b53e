package selector

import (
	"sort"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// fairSelect returns transactions one sender at a time so a single busy
// sender can't fill a block while others wait.
var fairSelect = func(m map[string][]database.Tx, howMany int) []database.Tx {

	/*
		Bill: {Seq: 7}, {Seq: 2}
		Pavl: {Seq: 3}, {Seq: 9}, {Seq: 4}
		Edua: {Seq: 5}
	*/

	// Sort the transactions per sender by creation.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byCreated(m[key]))
		}
	}

	/*
		Bill: {Seq: 2}, {Seq: 7}
		Pavl: {Seq: 3}, {Seq: 4}, {Seq: 9}
		Edua: {Seq: 5}
	*/

	// Order the senders by their oldest transaction so the rows come out the
	// same every time.
	senders := make([]string, 0, len(m))
	for key := range m {
		if len(m[key]) > 0 {
			senders = append(senders, key)
		}
	}
	sort.Slice(senders, func(i, j int) bool {
		return byCreated{m[senders[i]][0], m[senders[j]][0]}.Less(0, 1)
	})

	// Pick the first transaction in the slice for each sender. Each iteration
	// represents a new row of selections. Keep doing that until all the
	// transactions have been selected.
	var rows [][]database.Tx
	for {
		var row []database.Tx
		for _, key := range senders {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	/*
		0: Bill: {Seq: 2}, Pavl: {Seq: 3}, Edua: {Seq: 5}
		1: Bill: {Seq: 7}, Pavl: {Seq: 4}
		2: Pavl: {Seq: 9}
	*/

	// Keep pulling transactions from each row until the amount requested is
	// fulfilled or there are no more transactions.
	final := []database.Tx{}
done:
	for _, row := range rows {
		need := howMany - len(final)
		if len(row) > need {
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	return final
}
