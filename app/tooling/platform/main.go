// This program replays a small network in process. A genesis miner, two
// more miners and a wallet share a hub and build the first blocks of a
// chain, printing the balances after every block.
package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/utxochain/foundation/blockchain/account"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/miner"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/logger"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("PLATFORM")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("platform", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		Difficulty uint `conf:"default:12"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "PLATFORM"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	ev := func(v string, args ...any) {
		log.Debugw(fmt.Sprintf(v, args...))
	}

	ctx := context.Background()

	// =========================================================================
	// Genesis

	genKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	g := genesis.Default()
	g.Difficulty = cfg.Difficulty

	block, err := genesis.Block(ctx, g, genKey, ev)
	if err != nil {
		return fmt.Errorf("genesis block: %w", err)
	}
	ledger := database.NewBlockchain(block)

	hub := network.NewHub(ev)
	names := make(map[signature.Identity]string)

	gen, err := newMiner("genesis", genKey, ledger, hub, names, ev)
	if err != nil {
		return err
	}
	a, err := newMiner("miner-a", nil, ledger, hub, names, ev)
	if err != nil {
		return err
	}
	c, err := newMiner("miner-c", nil, ledger, hub, names, ev)
	if err != nil {
		return err
	}
	b, err := newAccount("wallet-b", ledger, names, ev)
	if err != nil {
		return err
	}
	hub.Join(b)

	report(log, "b1", gen.Ledger(), names)

	// =========================================================================
	// b2: the genesis miner funds the other miners.

	if _, err := gen.SendTransfer(ids(a.Identity(), c.Identity()), amounts(5000, 1000)); err != nil {
		return fmt.Errorf("b2 transfer: %w", err)
	}
	if _, err := gen.MineNextBlock(ctx); err != nil {
		return fmt.Errorf("b2 mine: %w", err)
	}
	report(log, "b2", gen.Ledger(), names)

	// =========================================================================
	// b3: miner A pays the wallet and miner C.

	prior := a.Balance(nil)
	if _, err := a.SendTransfer(ids(b.Identity(), c.Identity()), amounts(700, 400)); err != nil {
		return fmt.Errorf("b3 transfer: %w", err)
	}
	if _, err := a.MineNextBlock(ctx); err != nil {
		return fmt.Errorf("b3 mine: %w", err)
	}
	report(log, "b3", a.Ledger(), names)

	want := prior.Sub(decimal.NewFromInt(1101)).Add(database.MiningReward).Add(database.TransactionFee)
	if !a.Balance(nil).Equal(want) {
		return fmt.Errorf("b3: miner-a balance %s, expected %s", a.Balance(nil), want)
	}

	// =========================================================================
	// b4: the wallet shares a transfer and miner C mines it.

	tx, err := b.Transfer(ids(c.Identity()), amounts(200))
	if err != nil {
		return fmt.Errorf("b4 transfer: %w", err)
	}
	if err := hub.BroadcastTransaction(tx); err != nil {
		return fmt.Errorf("b4 share: %w", err)
	}
	if _, err := c.MineNextBlock(ctx); err != nil {
		return fmt.Errorf("b4 mine: %w", err)
	}
	report(log, "b4", c.Ledger(), names)

	// =========================================================================
	// Every member must hold the same valid chain.

	tip := gen.Ledger().Tip().ID
	for _, m := range hub.Members() {
		l := m.Ledger()
		if l.Tip().ID != tip {
			return fmt.Errorf("%s: tip %s, expected %s", names[m.Identity()], l.Tip().ID, tip)
		}
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%s: %w", names[m.Identity()], err)
		}
	}

	final := gen.Ledger()
	supply := decimal.Zero
	for _, id := range final.Identities() {
		supply = supply.Add(final.CheckBalance(id))
	}

	// Each block after genesis mints exactly one reward.
	minted := database.MiningReward.Mul(decimal.NewFromInt(int64(final.Size() - 1)))
	if want := ledger.CheckBalance(gen.Identity()).Add(minted); !supply.Equal(want) {
		return fmt.Errorf("supply %s, expected %s", supply, want)
	}

	log.Infow("platform", "status", "converged", "blocks", gen.LedgerSize(), "tip", tip, "supply", supply)

	return nil
}

// =============================================================================

func newMiner(name string, pk *ecdsa.PrivateKey, ledger *database.Blockchain, hub *network.Hub, names map[signature.Identity]string, ev database.EventHandler) (*miner.Miner, error) {
	acct, err := newKeyedAccount(name, pk, ledger, names, ev)
	if err != nil {
		return nil, err
	}

	m, err := miner.New(miner.Config{
		Account:     acct,
		Mining:      true,
		Broadcaster: hub,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	hub.Join(m)

	return m, nil
}

func newAccount(name string, ledger *database.Blockchain, names map[signature.Identity]string, ev database.EventHandler) (*account.Account, error) {
	return newKeyedAccount(name, nil, ledger, names, ev)
}

func newKeyedAccount(name string, pk *ecdsa.PrivateKey, ledger *database.Blockchain, names map[signature.Identity]string, ev database.EventHandler) (*account.Account, error) {
	if pk == nil {
		var err error
		if pk, err = crypto.GenerateKey(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	names[signature.PublicKeyToIdentity(pk.PublicKey)] = name

	acct, err := account.New(account.Config{
		PrivateKey: pk,
		Ledger:     ledger,
		EvHandler:  ev,
		LookupName: func(id signature.Identity) string {
			if n, ok := names[id]; ok {
				return n
			}
			return id.Short()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return acct, nil
}

func report(log *zap.SugaredLogger, label string, ledger *database.Blockchain, names map[signature.Identity]string) {
	for _, id := range ledger.Identities() {
		name, ok := names[id]
		if !ok {
			name = id.Short()
		}
		log.Infow("balance", "block", label, "account", name, "balance", ledger.CheckBalance(id))
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
