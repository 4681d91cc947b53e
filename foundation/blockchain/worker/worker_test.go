package worker_test

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/account"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/miner"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/blockchain/worker"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestMining(t *testing.T) {
	hub := network.NewHub(nil)
	pk, ledger := bootstrap(t)

	gen := newMiner(t, pk, ledger, hub)
	a := newMiner(t, nil, ledger, hub)

	wGen := worker.Run(worker.Config{Miner: gen, Sharer: hub, EvHandler: t.Logf})
	wA := worker.Run(worker.Config{Miner: a, Sharer: hub})
	defer func() {
		wGen.Shutdown()
		wA.Shutdown()
	}()

	t.Log("Given the need to mine in the background.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen transfers are submitted to a miner.", testID)
		{
			for _, amount := range []int64{10, 20} {
				if _, err := gen.SendTransfer([]signature.Identity{a.Identity()}, []decimal.Decimal{decimal.NewFromInt(amount)}); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould submit the transfer: %v", failed, testID, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould submit the transfers.", success, testID)

			deadline := time.Now().Add(30 * time.Second)
			for gen.MempoolLength() > 0 || a.MempoolLength() > 0 || gen.Ledger().Tip().ID != a.Ledger().Tip().ID {
				if time.Now().After(deadline) {
					t.Fatalf("\t%s\tTest %d:\tShould mine the transfers and agree on the tip in time: gen[%d] a[%d]", failed, testID, gen.MempoolLength(), a.MempoolLength())
				}
				time.Sleep(10 * time.Millisecond)
			}
			t.Logf("\t%s\tTest %d:\tShould mine the transfers and agree on the tip.", success, testID)

			supply := gen.Balance(nil).Add(a.Balance(nil))
			want := decimal.NewFromInt(20000 + int64(gen.LedgerSize()-1)*100)
			if !supply.Equal(want) {
				t.Fatalf("\t%s\tTest %d:\tShould keep the supply closed: got %s, exp %s", failed, testID, supply, want)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the supply closed.", success, testID)
		}
	}
}

func TestSignalCancelMining(t *testing.T) {
	hub := network.NewHub(nil)
	pk, ledger := bootstrap(t)
	gen := newMiner(t, pk, ledger, hub)

	w := worker.Run(worker.Config{Miner: gen})
	defer w.Shutdown()

	t.Log("Given the need to cancel mining.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen no mining operation is running.", testID)
		{
			finished := make(chan struct{})
			go func() {
				for i := 0; i < 3; i++ {
					done := w.SignalCancelMining()
					done()
				}
				close(finished)
			}()

			select {
			case <-finished:
				t.Logf("\t%s\tTest %d:\tShould not block the caller.", success, testID)
			case <-time.After(5 * time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould not block the caller.", failed, testID)
			}
		}
	}
}

func TestCancelRunningAttempt(t *testing.T) {
	hub := network.NewHub(nil)
	pk, ledger := bootstrap(t)

	// A difficulty no attempt can solve keeps the attempt running until
	// it is cancelled.
	acct, err := account.New(account.Config{PrivateKey: pk, Ledger: ledger})
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	gen, err := miner.New(miner.Config{Account: acct, Difficulty: 200, Mining: true, Broadcaster: hub})
	if err != nil {
		t.Fatalf("new miner: %v", err)
	}
	hub.Join(gen)

	var rec recorder
	w := worker.Run(worker.Config{Miner: gen, Sharer: hub, EvHandler: rec.logf})
	defer w.Shutdown()

	t.Log("Given the need to cancel a running mining attempt.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a block arrives while the miner is working.", testID)
		{
			if _, err := gen.SendTransfer([]signature.Identity{gen.Identity()}, []decimal.Decimal{decimal.NewFromInt(10)}); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould submit the transfer: %v", failed, testID, err)
			}

			if !waitFor(func() bool { return gen.Status().State == miner.StateAssembling.String() }) {
				t.Fatalf("\t%s\tTest %d:\tShould start an attempt: state[%s]", failed, testID, gen.Status().State)
			}
			t.Logf("\t%s\tTest %d:\tShould start an attempt.", success, testID)

			done := w.SignalCancelMining()

			if !waitFor(func() bool { return rec.has("termination signal: waiting") }) {
				t.Fatalf("\t%s\tTest %d:\tShould stop the attempt and wait for the receiver.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould stop the attempt and wait for the receiver.", success, testID)

			if !rec.has("CANCEL: complete") {
				t.Fatalf("\t%s\tTest %d:\tShould report the attempt as cancelled.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould report the attempt as cancelled.", success, testID)

			time.Sleep(100 * time.Millisecond)
			if rec.has("termination signal: received") {
				t.Fatalf("\t%s\tTest %d:\tShould hold the next attempt until the receiver is done.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hold the next attempt until the receiver is done.", success, testID)

			done()

			if !waitFor(func() bool { return rec.has("termination signal: received") }) {
				t.Fatalf("\t%s\tTest %d:\tShould resume once the receiver is done.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould resume once the receiver is done.", success, testID)

			if gen.MempoolLength() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the transfer pending: mempool[%d]", failed, testID, gen.MempoolLength())
			}
			t.Logf("\t%s\tTest %d:\tShould keep the transfer pending.", success, testID)
		}
	}
}

// =============================================================================

// recorder keeps the worker events so tests can look for them.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) has(fragment string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range r.events {
		if strings.Contains(ev, fragment) {
			return true
		}
	}
	return false
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

func bootstrap(t *testing.T) (*ecdsa.PrivateKey, *database.Blockchain) {
	t.Helper()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	g := genesis.Default()
	g.Difficulty = 6

	block, err := genesis.Block(context.Background(), g, pk, nil)
	if err != nil {
		t.Fatalf("genesis block: %v", err)
	}

	return pk, database.NewBlockchain(block)
}

func newMiner(t *testing.T, pk *ecdsa.PrivateKey, ledger *database.Blockchain, hub *network.Hub) *miner.Miner {
	t.Helper()

	if pk == nil {
		var err error
		if pk, err = crypto.GenerateKey(); err != nil {
			t.Fatalf("generate key: %v", err)
		}
	}

	acct, err := account.New(account.Config{PrivateKey: pk, Ledger: ledger})
	if err != nil {
		t.Fatalf("new account: %v", err)
	}

	m, err := miner.New(miner.Config{Account: acct, Difficulty: 6, Mining: true, Broadcaster: hub})
	if err != nil {
		t.Fatalf("new miner: %v", err)
	}
	hub.Join(m)

	return m
}
