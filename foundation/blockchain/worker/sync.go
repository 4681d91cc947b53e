package worker

import (
	"context"
	"time"
)

// syncTimeout bounds a single sync with the network.
const syncTimeout = 30 * time.Second

// syncOperations periodically updates the peer list and the ledger.
func (w *Worker) syncOperations() {
	w.evHandler("worker: syncOperations: G started")
	defer w.evHandler("worker: syncOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.Sync()
			}
		case <-w.shut:
			w.evHandler("worker: syncOperations: received shut signal")
			return
		}
	}
}

// Sync updates the peer list and pulls a longer ledger when a peer has one.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	if w.syncer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if err := w.syncer.Sync(ctx); err != nil {
		w.evHandler("worker: sync: ERROR: %s", err)
	}
}
