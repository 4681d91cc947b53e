package selector_test

import (
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestSelect(t *testing.T) {
	tran := func(sender signature.Identity) database.Tx {
		return database.NewTx(sender, []signature.Identity{"receiver"}, []decimal.Decimal{decimal.NewFromInt(1)}, nil)
	}

	// Created in this order so the sequence values increase down the list.
	bill1 := tran("bill")
	pavl1 := tran("pavl")
	bill2 := tran("bill")
	bill3 := tran("bill")
	edua1 := tran("edua")
	pavl2 := tran("pavl")

	group := func() map[string][]database.Tx {
		return map[string][]database.Tx{
			"bill": {bill3, bill1, bill2},
			"pavl": {pavl2, pavl1},
			"edua": {edua1},
		}
	}

	type test struct {
		name     string
		strategy string
		howMany  int
		best     []database.Tx
	}

	tt := []test{
		{
			name:     "oldest all",
			strategy: selector.StrategyOldest,
			howMany:  -1,
			best:     []database.Tx{bill1, pavl1, bill2, bill3, edua1, pavl2},
		},
		{
			name:     "oldest three",
			strategy: selector.StrategyOldest,
			howMany:  3,
			best:     []database.Tx{bill1, pavl1, bill2},
		},
		{
			name:     "fair all",
			strategy: selector.StrategyFair,
			howMany:  6,
			best:     []database.Tx{bill1, pavl1, edua1, bill2, pavl2, bill3},
		},
		{
			name:     "fair one from second row",
			strategy: selector.StrategyFair,
			howMany:  4,
			best:     []database.Tx{bill1, pavl1, edua1, bill2},
		},
	}

	t.Log("Given the need to select transactions for a block.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s strategy.", testID, tst.name)
				{
					fn, err := selector.Retrieve(tst.strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to retrieve strategy: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to retrieve strategy.", success, testID)

					best := fn(group(), tst.howMany)
					if len(best) != len(tst.best) {
						t.Fatalf("\t%s\tTest %d:\tShould get %d transactions: got %d", failed, testID, len(tst.best), len(best))
					}
					t.Logf("\t%s\tTest %d:\tShould get %d transactions.", success, testID, len(tst.best))

					for i := range best {
						if best[i].ID != tst.best[i].ID {
							t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, best[i])
							t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.best[i])
							t.Fatalf("\t%s\tTest %d:\tShould get back the right transaction at %d.", failed, testID, i)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right order.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}
