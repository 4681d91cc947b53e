package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/account"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// difficulty keeps the mining in these tests fast.
const difficulty = 6

func TestTransfer(t *testing.T) {
	gen, ledger := bootstrap(t)
	b := newAccount(t, ledger, nil)

	t.Log("Given the need to transfer funds.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling transfers from the genesis account.", testID)
		{
			if bal := gen.Balance(nil); !bal.Equal(decimal.NewFromInt(20000)) {
				t.Fatalf("\t%s\tTest %d:\tShould start with 20000: got %s", failed, testID, bal)
			}
			t.Logf("\t%s\tTest %d:\tShould start with 20000.", success, testID)

			tx1, err := gen.Transfer(ids(b.Identity(), b.Identity()), amounts(500, 200))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to transfer: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to transfer.", success, testID)

			if err := b.ValidateTransaction(tx1); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould produce a valid transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould produce a valid transaction.", success, testID)

			if len(tx1.Inputs) != 1 || !tx1.Outputs[2].Amount.Equal(decimal.NewFromInt(10000-701)) {
				t.Fatalf("\t%s\tTest %d:\tShould spend one UTXO and return the change: %+v", failed, testID, tx1.Outputs)
			}
			t.Logf("\t%s\tTest %d:\tShould spend one UTXO and return the change.", success, testID)

			tx2, err := gen.Transfer(ids(b.Identity()), amounts(100))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to transfer again: %v", failed, testID, err)
			}
			if tx2.Inputs[0].ID == tx1.Inputs[0].ID {
				t.Fatalf("\t%s\tTest %d:\tShould not spend a UTXO twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not spend a UTXO twice.", success, testID)

			if _, err := gen.Transfer(ids(b.Identity()), amounts(1)); !errors.Is(err, database.ErrInsufficientFunds) {
				t.Fatalf("\t%s\tTest %d:\tShould run out of unreserved UTXOs: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould run out of unreserved UTXOs.", success, testID)

			gen.ReleaseTransaction(tx2)
			if _, err := gen.Transfer(ids(b.Identity()), amounts(1)); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould spend a released UTXO: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould spend a released UTXO.", success, testID)

			if _, err := b.Transfer(ids(gen.Identity()), amounts(1)); !errors.Is(err, database.ErrInsufficientFunds) {
				t.Fatalf("\t%s\tTest %d:\tShould not let an empty account pay: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not let an empty account pay.", success, testID)

			if _, err := gen.Transfer(ids(b.Identity()), amounts(0)); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a zero amount.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a zero amount.", success, testID)
		}
	}
}

func TestReceiveBlock(t *testing.T) {
	gen, ledger := bootstrap(t)
	miner := newAccount(t, ledger, nil)
	b := newAccount(t, ledger, nil)
	c := newAccount(t, ledger, nil)

	t.Log("Given the need to accept blocks from the network.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a valid block.", testID)
		{
			tx, err := gen.Transfer(ids(b.Identity(), b.Identity(), c.Identity(), c.Identity()), amounts(500, 200, 300, 100))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to transfer: %v", failed, testID, err)
			}

			block := seal(t, miner, []database.Tx{tx}, database.MiningReward.Add(database.TransactionFee))

			for _, a := range []*account.Account{gen, miner, b, c} {
				if err := a.VerifyGuestBlock(block); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould verify the block: %v", failed, testID, err)
				}
				if err := a.ReceiveBlock(block); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould accept the block: %v", failed, testID, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould accept the block.", success, testID)

			exp := map[*account.Account]int64{gen: 18899, miner: 101, b: 700, c: 400}
			for a, amount := range exp {
				if bal := a.Balance(nil); !bal.Equal(decimal.NewFromInt(amount)) {
					t.Fatalf("\t%s\tTest %d:\tShould have balance %d: got %s", failed, testID, amount, bal)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould have the expected balances.", success, testID)

			if err := b.ReceiveBlock(block); !errors.Is(err, database.ErrPrevBlockInvalid) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the same block twice: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the same block twice.", success, testID)

			if err := b.ValidateTransaction(tx); !errors.Is(err, account.ErrTxChained) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a chained transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a chained transaction.", success, testID)

			replay := seal(t, miner, []database.Tx{tx}, database.MiningReward.Add(database.TransactionFee))
			if err := b.ReceiveBlock(replay); !errors.Is(err, account.ErrTxChained) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a block holding a chained transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a block holding a chained transaction.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen handling invalid blocks.", testID)
		{
			tx, err := b.Transfer(ids(c.Identity()), amounts(10))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to transfer: %v", failed, testID, err)
			}

			greedy := seal(t, miner, []database.Tx{tx}, database.MiningReward.Add(decimal.NewFromInt(2)))
			if err := c.VerifyGuestBlock(greedy); !errors.Is(err, account.ErrRewardExceeded) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an over rewarded block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an over rewarded block.", success, testID)

			dup := seal(t, miner, []database.Tx{tx, tx}, database.MiningReward)
			if err := c.VerifyGuestBlock(dup); !errors.Is(err, account.ErrDuplicateTx) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a duplicated transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a duplicated transaction.", success, testID)

			tampered := seal(t, miner, []database.Tx{tx}, database.MiningReward)
			tampered.Trans[0].Amounts = amounts(1)
			if err := c.VerifyGuestBlock(tampered); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a tampered block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a tampered block.", success, testID)

			easy := database.NewBlock(miner.Ledger().Tip().ID, difficulty-1, miner.Identity(), 0)
			if err := easy.AddTransaction(tx, miner.Identity()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould add the transaction: %v", failed, testID, err)
			}
			mineAndSign(t, miner, easy)
			if err := c.VerifyGuestBlock(easy); !errors.Is(err, account.ErrDifficultyTooLow) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an easier block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an easier block.", success, testID)

			unsigned := database.NewBlock(miner.Ledger().Tip().ID, difficulty, miner.Identity(), 0)
			if err := unsigned.AddTransaction(tx, miner.Identity()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould add the transaction: %v", failed, testID, err)
			}
			if err := unsigned.Mine(context.Background(), miner.Identity(), nil); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould mine: %v", failed, testID, err)
			}
			if err := c.VerifyGuestBlock(unsigned); !errors.Is(err, database.ErrNotSigned) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an unsigned block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an unsigned block.", success, testID)
		}
	}
}

func TestReceiveLedger(t *testing.T) {
	gen, ledger := bootstrap(t)
	other, _ := bootstrap(t)

	t.Log("Given the need to adopt ledgers from the network.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling an account that starts empty.", testID)
		{
			storage, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould open storage: %v", failed, testID, err)
			}

			empty := newAccount(t, nil, storage)
			if empty.LedgerSize() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould start without a ledger.", failed, testID)
			}

			if err := empty.ReceiveLedger(ledger); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould adopt the first valid ledger: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt the first valid ledger.", success, testID)

			if err := empty.ReceiveLedger(ledger); !errors.Is(err, account.ErrLedgerNotLonger) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a ledger of the same size: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a ledger of the same size.", success, testID)

			tx, err := gen.Transfer(ids(empty.Identity()), amounts(50))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to transfer: %v", failed, testID, err)
			}
			if err := gen.ReceiveBlock(seal(t, gen, []database.Tx{tx}, database.MiningReward.Add(database.TransactionFee))); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the block: %v", failed, testID, err)
			}

			if err := empty.ReceiveLedger(gen.Ledger()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould adopt a longer ledger: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt a longer ledger.", success, testID)

			if bal := empty.Balance(nil); !bal.Equal(decimal.NewFromInt(50)) {
				t.Fatalf("\t%s\tTest %d:\tShould see its funds: got %s", failed, testID, bal)
			}
			t.Logf("\t%s\tTest %d:\tShould see its funds.", success, testID)

			loaded, err := database.Load(storage, nil)
			if err != nil || loaded.Size() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould persist the adopted ledger: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould persist the adopted ledger.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen handling a ledger from another genesis.", testID)
		{
			for _, amount := range []int64{1, 2} {
				tx, err := other.Transfer(ids(other.Identity()), amounts(amount))
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to transfer: %v", failed, testID, err)
				}
				if err := other.ReceiveBlock(seal(t, other, []database.Tx{tx}, database.MiningReward.Add(database.TransactionFee))); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould accept the block: %v", failed, testID, err)
				}
			}

			if err := gen.ReceiveLedger(other.Ledger()); !errors.Is(err, account.ErrGenesisMismatch) {
				t.Fatalf("\t%s\tTest %d:\tShould reject another genesis: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject another genesis.", success, testID)
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen adopting a ledger while transfers are pending.", testID)
		{
			owner, base := bootstrap(t)
			miner := newAccount(t, base, nil)

			tx1, err := owner.Transfer(ids(miner.Identity()), amounts(50))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build tx1: %v", failed, testID, err)
			}
			tx2, err := owner.Transfer(ids(miner.Identity()), amounts(60))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build tx2: %v", failed, testID, err)
			}

			if err := miner.ReceiveBlock(seal(t, miner, []database.Tx{tx2}, database.MiningReward.Add(database.TransactionFee))); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould chain tx2 on the other account: %v", failed, testID, err)
			}

			if err := owner.ReceiveLedger(miner.Ledger()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould adopt the longer ledger: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt the longer ledger.", success, testID)

			tx3, err := owner.Transfer(ids(miner.Identity()), amounts(70))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build tx3: %v", failed, testID, err)
			}

			pending := make(map[string]bool)
			for _, u := range tx1.Inputs {
				pending[u.ID] = true
			}
			for _, u := range tx3.Inputs {
				if pending[u.ID] {
					t.Fatalf("\t%s\tTest %d:\tShould keep the inputs of pending tx1 reserved: %s", failed, testID, u.ID)
				}
				if u.ParentTxID != tx2.ID {
					t.Fatalf("\t%s\tTest %d:\tShould spend the change of chained tx2: parent %s", failed, testID, u.ParentTxID)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould keep the inputs of pending tx1 reserved.", success, testID)

			if _, err := owner.Transfer(ids(miner.Identity()), amounts(10)); !errors.Is(err, database.ErrInsufficientFunds) {
				t.Fatalf("\t%s\tTest %d:\tShould have every unspent output reserved: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould have every unspent output reserved.", success, testID)
		}
	}
}

// =============================================================================

// bootstrap constructs a genesis account holding a fresh genesis ledger.
func bootstrap(t *testing.T) (*account.Account, *database.Blockchain) {
	t.Helper()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	g := genesis.Default()
	g.Difficulty = difficulty

	block, err := genesis.Block(context.Background(), g, pk, nil)
	if err != nil {
		t.Fatalf("genesis block: %v", err)
	}
	ledger := database.NewBlockchain(block)

	a, err := account.New(account.Config{PrivateKey: pk, Ledger: ledger})
	if err != nil {
		t.Fatalf("new account: %v", err)
	}

	return a, ledger
}

func newAccount(t *testing.T, ledger *database.Blockchain, storage database.Storage) *account.Account {
	t.Helper()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	a, err := account.New(account.Config{PrivateKey: pk, Ledger: ledger, Storage: storage})
	if err != nil {
		t.Fatalf("new account: %v", err)
	}

	return a
}

// seal builds a block on the creator's tip holding the transactions and the
// specified reward, then mines and signs it.
func seal(t *testing.T, creator *account.Account, txs []database.Tx, reward decimal.Decimal) *database.Block {
	t.Helper()

	block := database.NewBlock(creator.Ledger().Tip().ID, difficulty, creator.Identity(), 0)
	for _, tx := range txs {
		if err := block.AddTransaction(tx, creator.Identity()); err != nil {
			t.Fatalf("add tx: %v", err)
		}
	}

	rewardTx := database.NewRewardTx(creator.Identity(), reward)
	if err := creator.SignTx(&rewardTx); err != nil {
		t.Fatalf("sign reward: %v", err)
	}
	if err := block.SetRewardTransaction(creator.Identity(), rewardTx); err != nil {
		t.Fatalf("set reward: %v", err)
	}

	mineAndSign(t, creator, block)

	return block
}

func mineAndSign(t *testing.T, creator *account.Account, block *database.Block) {
	t.Helper()

	if err := block.Mine(context.Background(), creator.Identity(), nil); err != nil {
		t.Fatalf("mine: %v", err)
	}
	if err := creator.SignBlock(block); err != nil {
		t.Fatalf("sign block: %v", err)
	}
}

func ids(v ...signature.Identity) []signature.Identity {
	return v
}

func amounts(v ...int64) []decimal.Decimal {
	d := make([]decimal.Decimal, len(v))
	for i := range v {
		d[i] = decimal.NewFromInt(v[i])
	}
	return d
}
