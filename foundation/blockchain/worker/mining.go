package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/miner"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation runs one mining attempt against the current tip. A
// block accepted from the network while the attempt runs cancels it, and
// the next attempt only starts once the receiver has updated the mempool.
func (w *Worker) runMiningOperation() {
	if !w.miner.IsMiningAllowed() {
		w.evHandler("worker: runMiningOperation: MINING: turned off")
		return
	}

	if n := w.miner.MempoolLength(); n == 0 {
		w.evHandler("worker: runMiningOperation: MINING: no transactions to mine: Txs[%d]", n)
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	defer w.resignalMining()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	released := w.watchCancel(ctx, cancel)

	start := time.Now()
	block, err := w.miner.MineNextBlock(ctx)
	w.reportAttempt(ctx, block, err, time.Since(start))

	// Stop the watcher and, if it took a cancel request, hold here until
	// the requester is done with its changes.
	cancel()
	if wait := released(); wait != nil {
		w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
		<-wait
		w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
	}
}

// watchCancel drains any stale cancel request and starts a G that cancels
// the attempt when a new request arrives. The returned function blocks
// until that G is finished and returns the request it took, if any.
func (w *Worker) watchCancel(ctx context.Context, cancel context.CancelFunc) func() chan struct{} {
	select {
	case <-w.cancelMining:
		w.evHandler("worker: watchCancel: MINING: drained cancel channel")
	default:
	}

	taken := make(chan chan struct{}, 1)

	go func() {
		select {
		case wait := <-w.cancelMining:
			w.evHandler("worker: watchCancel: MINING: CANCEL: requested")
			cancel()
			taken <- wait
		case <-ctx.Done():
			taken <- nil
		}
	}()

	return func() chan struct{} {
		return <-taken
	}
}

// reportAttempt logs how a mining attempt ended.
func (w *Worker) reportAttempt(ctx context.Context, block *database.Block, err error, duration time.Duration) {
	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

	switch {
	case err == nil:
		w.evHandler("worker: runMiningOperation: MINING: SOLVED: blk[%s]", block.ID)
	case errors.Is(err, miner.ErrNoTransactions):
		w.evHandler("worker: runMiningOperation: MINING: WARNING: no transactions in mempool")
	case errors.Is(err, miner.ErrLostRace):
		w.evHandler("worker: runMiningOperation: MINING: lost the race for the tip")
	case errors.Is(err, miner.ErrAttemptRunning):
		w.evHandler("worker: runMiningOperation: MINING: another attempt is running")
	case ctx.Err() != nil:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
	case block != nil:
		w.evHandler("worker: runMiningOperation: MINING: blk[%s] announced: WARNING: %s", block.ID, err)
	default:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
	}
}

// resignalMining starts another attempt while transactions remain pending.
func (w *Worker) resignalMining() {
	if n := w.miner.MempoolLength(); n > 0 && !w.isShutdown() {
		w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", n)
		w.SignalStartMining()
	}
}
