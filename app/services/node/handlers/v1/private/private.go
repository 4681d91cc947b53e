// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/miner"
	"github.com/ardanlabs/utxochain/foundation/blockchain/network"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	Miner *miner.Miner
	Net   *network.Client
}

type status struct {
	Status string `json:"status"`
}

// SubmitNodeTransaction adds a transaction shared by a peer to the mempool.
func (h Handlers) SubmitNodeTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("node tran", "traceid", v.TraceID, "tx", tx)

	if err := h.Miner.ReceiveTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, status{Status: "transaction added to mempool"}, http.StatusOK)
}

// NextBlock takes a block announced by a peer and, if it extends the local
// ledger, appends it.
func (h Handlers) NextBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var block database.Block
	if err := web.Decode(r, &block); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := h.Miner.ReceiveBlock(&block); err != nil {
		h.Log.Infow("next block", "traceid", v.TraceID, "blk", block.ID, "status", "rejected", "reason", err)

		// A peer ahead of us shows up as a previous block mismatch. The
		// ledger is pulled on the next sync.
		if errors.Is(err, database.ErrPrevBlockInvalid) {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(err, http.StatusNotAcceptable)
	}

	return web.Respond(ctx, w, status{Status: "accepted"}, http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ledger := h.Miner.Ledger()

	ps := peer.PeerStatus{
		LedgerSize:     ledger.Size(),
		GenesisCreator: ledger.GenesisCreator(),
		KnownPeers:     h.Net.KnownPeers(),
	}
	if tip := ledger.Tip(); tip != nil {
		ps.LatestBlockID = tip.ID
	}

	return web.Respond(ctx, w, ps, http.StatusOK)
}

// Mining returns the state of the current mining attempt.
func (h Handlers) Mining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Miner.Status(), http.StatusOK)
}

// Ledger returns the complete local ledger.
func (h Handlers) Ledger(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Miner.Ledger(), http.StatusOK)
}

// ReceiveLedger offers a ledger to this node. It is adopted only when it is
// valid and longer than the local ledger.
func (h Handlers) ReceiveLedger(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ledger database.Blockchain
	if err := web.Decode(r, &ledger); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := h.Miner.ReceiveLedger(&ledger); err != nil {
		return errs.NewTrusted(err, http.StatusNotAcceptable)
	}

	return web.Respond(ctx, w, status{Status: "adopted"}, http.StatusOK)
}

// SubmitPeer is called by a node so they can be added to the known peer list.
func (h Handlers) SubmitPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var pr peer.Peer
	if err := web.Decode(r, &pr); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if !h.Net.AddPeer(pr) {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	h.Log.Infow("adding peer", "traceid", v.TraceID, "host", pr.Host)

	return web.Respond(ctx, w, status{Status: "added"}, http.StatusOK)
}

// SignInBonus asks the genesis miner to grant the sign-in bonus.
func (h Handlers) SignInBonus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := signature.ToIdentity(web.Param(r, "identity"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx, err := h.Miner.SignInBonus(id)
	if err != nil {
		switch {
		case errors.Is(err, miner.ErrNotGenesis), errors.Is(err, miner.ErrBonusDisabled):
			return errs.NewTrusted(err, http.StatusForbidden)
		case errors.Is(err, miner.ErrBonusGranted), errors.Is(err, miner.ErrBonusLimit):
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		TxID   string `json:"tx_id"`
	}{
		Status: "bonus granted",
		TxID:   tx.ID,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
