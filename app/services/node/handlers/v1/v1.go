// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/utxochain/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/utxochain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/miner"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
	"github.com/ardanlabs/utxochain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Miner   *miner.Miner
	Net     *network.Client
	Genesis genesis.Genesis
	NS      *nameservice.NameService
	Evts    *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config, mw ...web.Middleware) {
	pbl := public.Handlers{
		Log:      cfg.Log,
		Miner:    cfg.Miner,
		Settings: cfg.Genesis,
		NS:       cfg.NS,
		WS:       websocket.Upgrader{},
		Evts:     cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis, mw...)
	app.Handle(http.MethodGet, version, "/balances/list", pbl.Balances, mw...)
	app.Handle(http.MethodGet, version, "/balances/list/:identity", pbl.Balances, mw...)
	app.Handle(http.MethodGet, version, "/utxos/list/:identity", pbl.UTXOs, mw...)
	app.Handle(http.MethodGet, version, "/blocks/list", pbl.Blocks, mw...)
	app.Handle(http.MethodGet, version, "/blocks/list/:identity", pbl.Blocks, mw...)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool, mw...)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitWalletTransaction, mw...)
	app.Handle(http.MethodPost, version, "/tx/transfer", pbl.Transfer, mw...)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		Miner: cfg.Miner,
		Net:   cfg.Net,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/mining", prv.Mining)
	app.Handle(http.MethodGet, version, "/node/ledger", prv.Ledger)
	app.Handle(http.MethodPost, version, "/node/ledger", prv.ReceiveLedger)
	app.Handle(http.MethodPost, version, "/node/peers", prv.SubmitPeer)
	app.Handle(http.MethodPost, version, "/node/block/next", prv.NextBlock)
	app.Handle(http.MethodPost, version, "/node/tx/submit", prv.SubmitNodeTransaction)
	app.Handle(http.MethodPost, version, "/node/bonus/:identity", prv.SignInBonus)
}
