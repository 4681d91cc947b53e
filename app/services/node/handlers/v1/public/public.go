// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/genesis"
	"github.com/ardanlabs/utxochain/foundation/blockchain/miner"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
	"github.com/ardanlabs/utxochain/foundation/web"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	Miner    *miner.Miner
	Settings genesis.Genesis
	NS       *nameservice.NameService
	WS       websocket.Upgrader
	Evts     *events.Events
}

// Events handles a web socket to provide events to a client. The optional
// prefix query parameter limits the events to the named components.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	var prefixes []string
	if p := r.URL.Query().Get("prefix"); p != "" {
		prefixes = append(prefixes, p)
	}

	id, ch := h.Evts.Acquire(prefixes...)
	defer h.Evts.Release(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis settings and block.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Settings genesis.Genesis `json:"settings"`
		Block    *database.Block `json:"block"`
	}{
		Settings: h.Settings,
		Block:    h.Miner.Ledger().Genesis(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balances returns the balance of the specified identity, or of every
// identity in the ledger.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ledger := h.Miner.Ledger()

	identities := ledger.Identities()
	if p := web.Param(r, "identity"); p != "" {
		id, err := h.toIdentity(p)
		if err != nil {
			return err
		}
		identities = []signature.Identity{id}
	}

	bals := balances{
		Uncommitted: h.Miner.MempoolLength(),
		Balances:    make([]balance, len(identities)),
	}
	if tip := ledger.Tip(); tip != nil {
		bals.LatestBlock = tip.ID
	}

	for i, id := range identities {
		bals.Balances[i] = balance{
			Identity: id,
			Name:     h.NS.Lookup(id),
			Balance:  ledger.CheckBalance(id),
		}
	}

	return web.Respond(ctx, w, bals, http.StatusOK)
}

// UTXOs returns the unspent outputs of the specified identity. Wallets use
// these to build transactions to sign.
func (h Handlers) UTXOs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := h.toIdentity(web.Param(r, "identity"))
	if err != nil {
		return err
	}

	ledger := h.Miner.Ledger()

	resp := utxos{
		Identity: id,
		Balance:  ledger.CheckBalance(id),
		Unspent:  ledger.FindUnspentUTXOs(id),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Blocks returns the blocks of the ledger. With an identity only the blocks
// the identity takes part in are returned.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var filter signature.Identity
	if p := web.Param(r, "identity"); p != "" {
		id, err := h.toIdentity(p)
		if err != nil {
			return err
		}
		filter = id
	}

	dbBlocks := h.Miner.Ledger().Blocks()

	blocks := make([]block, 0, len(dbBlocks))
	for i, blk := range dbBlocks {
		if filter != "" && !involves(blk, filter) {
			continue
		}
		blocks = append(blocks, h.toBlock(i+1, blk))
	}

	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pool := h.Miner.Mempool()

	trans := make([]tx, len(pool))
	for i, tran := range pool {
		trans[i] = h.toTx(tran)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// SubmitWalletTransaction adds a transaction signed by a wallet to the
// mempool and shares it with the network.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tran database.Tx
	if err := web.Decode(r, &tran); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("submit wallet tran", "traceid", v.TraceID, "tx", tran, "sender", h.NS.Lookup(tran.Sender), "amount", tran.TotalAmount())

	if err := h.Miner.SubmitTransaction(tran); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, status{Status: "transaction added to mempool", TxID: tran.ID}, http.StatusOK)
}

// Transfer spends the funds of the account held by this node.
func (h Handlers) Transfer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req transfer
	if err := web.Decode(r, &req); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	receivers := make([]signature.Identity, len(req.Receivers))
	amounts := make([]decimal.Decimal, len(req.Receivers))
	for i, rcv := range req.Receivers {
		id, err := h.toIdentity(rcv.Identity)
		if err != nil {
			return err
		}
		receivers[i] = id
		amounts[i] = rcv.Amount
	}

	tran, err := h.Miner.SendTransfer(receivers, amounts)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("transfer", "traceid", v.TraceID, "tx", tran, "receivers", len(receivers), "amount", tran.TotalAmount())

	return web.Respond(ctx, w, status{Status: "transaction added to mempool", TxID: tran.ID}, http.StatusOK)
}

// =============================================================================

// toIdentity accepts either an identity or a name known to the name service.
func (h Handlers) toIdentity(s string) (signature.Identity, error) {
	if id, exists := h.NS.Identity(s); exists {
		return id, nil
	}

	id, err := signature.ToIdentity(s)
	if err != nil {
		return "", errs.NewTrusted(err, http.StatusBadRequest)
	}

	return id, nil
}

func (h Handlers) toTx(tran database.Tx) tx {
	names := make([]string, len(tran.Receivers))
	for i, rcv := range tran.Receivers {
		names[i] = h.NS.Lookup(rcv)
	}

	fee := database.TransactionFee
	if tran.IsReward() {
		fee = decimal.Zero
	}

	return tx{
		ID:         tran.ID,
		Sender:     tran.Sender,
		SenderName: h.NS.Lookup(tran.Sender),
		Receivers:  tran.Receivers,
		Names:      names,
		Amounts:    tran.Amounts,
		Fee:        fee,
		TimeStamp:  tran.TimeStamp,
		Reward:     tran.IsReward(),
	}
}

func (h Handlers) toBlock(number int, blk *database.Block) block {
	trans := make([]tx, len(blk.Trans))
	for i, tran := range blk.Trans {
		trans[i] = h.toTx(tran)
	}

	b := block{
		ID:          blk.ID,
		Number:      number,
		PrevBlockID: blk.Header.PrevBlockID,
		Creator:     blk.Header.Creator,
		CreatorName: h.NS.Lookup(blk.Header.Creator),
		Difficulty:  blk.Header.Difficulty,
		Nonce:       blk.Header.Nonce,
		TimeStamp:   blk.Header.TimeStamp,
		MerkleRoot:  blk.MerkleRoot(),
		Trans:       trans,
	}

	if blk.RewardTx != nil {
		reward := h.toTx(*blk.RewardTx)
		b.Reward = &reward
	}

	return b
}

// involves reports if the identity created the block or sends or receives
// funds in it.
func involves(blk *database.Block, id signature.Identity) bool {
	if blk.Header.Creator == id {
		return true
	}

	for _, tran := range blk.Trans {
		if tran.Sender == id {
			return true
		}
		for _, rcv := range tran.Receivers {
			if rcv == id {
				return true
			}
		}
	}

	return false
}
