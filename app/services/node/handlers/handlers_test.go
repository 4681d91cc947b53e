package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/utxochain/app/services/node/handlers"
	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/blockchain/account"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/miner"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type node struct {
	miner   *miner.Miner
	public  http.Handler
	private http.Handler
}

func TestRoutes(t *testing.T) {
	n := newNode(t)

	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	otherID := string(signature.PublicKeyToIdentity(other.PublicKey))

	t.Log("Given the need to serve the node api.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen querying the public api.", testID)
		{
			var bals struct {
				Balances []struct {
					Balance decimal.Decimal `json:"balance"`
				} `json:"balances"`
			}
			if code := call(t, n.public, http.MethodGet, "/v1/balances/list/"+string(n.miner.Identity()), nil, &bals); code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get the balance: status %d", failed, testID, code)
			}
			if len(bals.Balances) != 1 || !bals.Balances[0].Balance.Equal(decimal.NewFromInt(20000)) {
				t.Fatalf("\t%s\tTest %d:\tShould report 20000: %+v", failed, testID, bals)
			}
			t.Logf("\t%s\tTest %d:\tShould report the genesis balance.", success, testID)

			var gen struct {
				Settings genesis.Genesis `json:"settings"`
				Block    database.Block  `json:"block"`
			}
			if code := call(t, n.public, http.MethodGet, "/v1/genesis/list", nil, &gen); code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get the genesis: status %d", failed, testID, code)
			}
			if gen.Settings.Difficulty != 6 || gen.Block.ID != n.miner.Ledger().Genesis().ID {
				t.Fatalf("\t%s\tTest %d:\tShould return the genesis settings and block: %+v", failed, testID, gen.Settings)
			}
			t.Logf("\t%s\tTest %d:\tShould return the genesis settings and block.", success, testID)

			var er errs.Response
			if code := call(t, n.public, http.MethodGet, "/v1/utxos/list/bad", nil, &er); code != http.StatusBadRequest || er.Error == "" {
				t.Fatalf("\t%s\tTest %d:\tShould reject a bad identity: status %d", failed, testID, code)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a bad identity.", success, testID)

			if code := call(t, n.public, http.MethodPost, "/v1/tx/transfer", map[string]any{"receivers": []any{}}, &er); code != http.StatusBadRequest || len(er.Fields) == 0 {
				t.Fatalf("\t%s\tTest %d:\tShould report field errors: status %d: %+v", failed, testID, code, er)
			}
			t.Logf("\t%s\tTest %d:\tShould report field errors.", success, testID)

			req := map[string]any{
				"receivers": []map[string]any{{"identity": otherID, "amount": "250"}},
			}
			if code := call(t, n.public, http.MethodPost, "/v1/tx/transfer", req, nil); code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould accept the transfer: status %d", failed, testID, code)
			}
			if n.miner.MempoolLength() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould pool the transfer.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould pool the transfer.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen querying the private api.", testID)
		{
			var ps peer.PeerStatus
			if code := call(t, n.private, http.MethodGet, "/v1/node/status", nil, &ps); code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get the status: status %d", failed, testID, code)
			}
			if ps.LedgerSize != 1 || ps.GenesisCreator != n.miner.Identity() {
				t.Fatalf("\t%s\tTest %d:\tShould describe the ledger: %+v", failed, testID, ps)
			}
			t.Logf("\t%s\tTest %d:\tShould describe the ledger.", success, testID)

			if code := call(t, n.private, http.MethodPost, "/v1/node/bonus/"+otherID, nil, nil); code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould grant the bonus: status %d", failed, testID, code)
			}
			if code := call(t, n.private, http.MethodPost, "/v1/node/bonus/"+otherID, nil, nil); code != http.StatusConflict {
				t.Fatalf("\t%s\tTest %d:\tShould grant the bonus once: status %d", failed, testID, code)
			}
			t.Logf("\t%s\tTest %d:\tShould grant the bonus once.", success, testID)

			if code := call(t, n.private, http.MethodPost, "/v1/node/block/next", n.miner.Ledger().Genesis(), nil); code == http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould reject a block already in the ledger.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a block already in the ledger.", success, testID)

			var bc database.Blockchain
			if code := call(t, n.private, http.MethodGet, "/v1/node/ledger", nil, &bc); code != http.StatusOK || bc.Size() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould return the ledger: status %d", failed, testID, code)
			}
			t.Logf("\t%s\tTest %d:\tShould return the ledger.", success, testID)
		}
	}
}

// =============================================================================

func newNode(t *testing.T) node {
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

	acct, err := account.New(account.Config{PrivateKey: pk, Ledger: database.NewBlockchain(block)})
	if err != nil {
		t.Fatalf("new account: %v", err)
	}

	m, err := miner.New(miner.Config{
		Account:     acct,
		Difficulty:  6,
		BonusAmount: g.SignInBonus,
		BonusLimit:  g.BonusLimit,
	})
	if err != nil {
		t.Fatalf("new miner: %v", err)
	}

	client := network.NewClient("localhost:9080", peer.NewPeerSet(), nil)
	client.Attach(m)

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("nameservice: %v", err)
	}

	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		Miner:    m,
		Net:      client,
		Genesis:  g,
		NS:       ns,
		Evts:     events.New(),
	}

	return node{
		miner:   m,
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
	}
}

func call(t *testing.T, h http.Handler, method string, path string, send any, recv any) int {
	t.Helper()

	var body bytes.Buffer
	if send != nil {
		if err := json.NewEncoder(&body).Encode(send); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, &body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if recv != nil && w.Body.Len() > 0 {
		if err := json.NewDecoder(w.Body).Decode(recv); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}

	return w.Code
}
