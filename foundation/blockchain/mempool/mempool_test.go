package mempool_test

import (
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/mempool"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newTx(t *testing.T, sender signature.Identity, amount int64) database.Tx {
	t.Helper()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	to := signature.PublicKeyToIdentity(pk.PublicKey)

	return database.NewTx(sender, []signature.Identity{to}, []decimal.Decimal{decimal.NewFromInt(amount)}, nil)
}

func TestCRUD(t *testing.T) {
	t.Log("Given the need to validate mempool api.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
		{
			mp := mempool.New()

			var txs []database.Tx
			for i := int64(1); i <= 4; i++ {
				tx := newTx(t, "sender", i)
				txs = append(txs, tx)

				if n := mp.Upsert(tx); n != int(i) {
					t.Fatalf("\t%s\tTest %d:\tShould be able to add new transaction: count %d", failed, testID, n)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to add new transactions.", success, testID)

			if n := mp.Upsert(txs[0]); n != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould replace a transaction with the same id: count %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould replace a transaction with the same id.", success, testID)

			for i, tx := range mp.Copy() {
				if tx.ID != txs[i].ID {
					t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tx)
					t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, txs[i])
					t.Fatalf("\t%s\tTest %d:\tShould get back the transactions in order.", failed, testID)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould get back the transactions in order.", success, testID)

			if !mp.Exists(txs[1].ID) {
				t.Fatalf("\t%s\tTest %d:\tShould find an existing transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould find an existing transaction.", success, testID)

			if best := mp.PickBest(2); len(best) != 2 || best[0].ID != txs[0].ID {
				t.Fatalf("\t%s\tTest %d:\tShould pick the oldest transactions.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould pick the oldest transactions.", success, testID)

			mp.Delete(txs[1])
			if mp.Count() != 3 || mp.Exists(txs[1].ID) {
				t.Fatalf("\t%s\tTest %d:\tShould be able to remove a transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to remove a transaction.", success, testID)

			mp.Truncate()
			if mp.Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould be able to truncate mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to truncate mempool.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen handling an unknown strategy.", testID)
		{
			if _, err := mempool.NewWithStrategy("tip"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject the strategy.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the strategy.", success, testID)
		}
	}
}
