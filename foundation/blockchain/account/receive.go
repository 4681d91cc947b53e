package account

import (
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// ValidateTransaction checks the transaction is signed by its sender and is
// not already part of the local ledger.
func (a *Account) ValidateTransaction(tx database.Tx) error {
	return validateTransaction(a.Ledger(), tx)
}

// VerifyGuestBlock checks a block received from the network can be appended
// to the local ledger.
func (a *Account) VerifyGuestBlock(block *database.Block) error {
	return verifyGuestBlock(a.Ledger(), block)
}

// ReceiveTransaction accepts a transaction from the network. A plain account
// only validates it, there is no pool to keep it in.
func (a *Account) ReceiveTransaction(tx database.Tx) error {
	if err := a.ValidateTransaction(tx); err != nil {
		a.evHandler("account: ReceiveTransaction: %s: REJECTED: tx[%s]: %s", a.Name(), tx, err)
		return err
	}

	a.evHandler("account: ReceiveTransaction: %s: tx[%s]: valid", a.Name(), tx)

	return nil
}

// ReceiveBlock verifies the block against the local ledger and appends it.
// Verification and append happen under the same lock so no other block can
// take the tip in between.
func (a *Account) ReceiveBlock(block *database.Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.evHandler("account: ReceiveBlock: %s: started: blk[%s]: creator[%s]: txs[%d]", a.Name(), short(block.ID), a.lookupName(block.Header.Creator), len(block.Trans))

	if err := verifyGuestBlock(a.ledger, block); err != nil {
		a.evHandler("account: ReceiveBlock: %s: REJECTED: blk[%s]: %s", a.Name(), short(block.ID), err)
		return err
	}

	if a.storage != nil {
		if err := database.Write(a.storage, uint64(a.ledger.Size()+1), block); err != nil {
			return fmt.Errorf("write block: %w", err)
		}
	}

	if err := a.ledger.Append(block); err != nil {
		return err
	}

	for _, tx := range block.Trans {
		for _, u := range tx.Inputs {
			delete(a.reserved, u.ID)
		}
	}

	a.evHandler("account: ReceiveBlock: %s: ACCEPTED: blk[%s]: size[%d]", a.Name(), short(block.ID), a.ledger.Size())

	return nil
}

// ReceiveLedger replaces the local ledger with the one provided if it is
// strictly longer, shares the same genesis creator and fully validates. An
// account without a ledger adopts the first valid one it receives.
func (a *Account) ReceiveLedger(ledger *database.Blockchain) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.evHandler("account: ReceiveLedger: %s: started: local[%d]: remote[%d]", a.Name(), a.ledger.Size(), ledger.Size())

	if a.ledger.Size() > 0 {
		if ledger.Size() <= a.ledger.Size() {
			return ErrLedgerNotLonger
		}

		if ledger.GenesisCreator() != a.ledger.GenesisCreator() {
			return ErrGenesisMismatch
		}
	}

	if err := ledger.Validate(); err != nil {
		a.evHandler("account: ReceiveLedger: %s: REJECTED: %s", a.Name(), err)
		return err
	}

	adopted := ledger.Snapshot()

	if a.storage != nil {
		if err := database.Rewrite(a.storage, adopted); err != nil {
			return fmt.Errorf("rewrite ledger: %w", err)
		}
	}

	// Transfers still pending keep their inputs reserved as long as the
	// adopted ledger leaves those inputs unspent.
	unspent := make(map[string]struct{})
	for _, u := range adopted.FindUnspentUTXOs(a.id) {
		unspent[u.ID] = struct{}{}
	}
	for id := range a.reserved {
		if _, exists := unspent[id]; !exists {
			delete(a.reserved, id)
		}
	}

	a.ledger = adopted

	a.evHandler("account: ReceiveLedger: %s: ADOPTED: size[%d]", a.Name(), a.ledger.Size())

	return nil
}

// =============================================================================

// validateTransaction checks the transaction against the specified ledger.
func validateTransaction(ledger *database.Blockchain, tx database.Tx) error {
	if err := tx.VerifySignature(); err != nil {
		return fmt.Errorf("tx[%s]: %w", tx, err)
	}

	if ledger.TransactionExists(tx) {
		return fmt.Errorf("tx[%s]: %w", tx, ErrTxChained)
	}

	return nil
}

// verifyGuestBlock checks the block against the specified ledger. The inputs
// of each transaction are not checked against the UTXOs already spent in
// the ledger.
func verifyGuestBlock(ledger *database.Blockchain, block *database.Block) error {
	tip := ledger.Tip()
	if tip == nil {
		return ErrNoLedger
	}

	if err := block.VerifySignature(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	if block.Header.Difficulty < ledger.Genesis().Header.Difficulty {
		return ErrDifficultyTooLow
	}

	if err := block.VerifyWork(); err != nil {
		return fmt.Errorf("work: %w", err)
	}

	if block.Header.PrevBlockID != tip.ID {
		return database.ErrPrevBlockInvalid
	}

	seen := make(map[string]struct{}, len(block.Trans))
	for _, tx := range block.Trans {
		if _, exists := seen[tx.ID]; exists {
			return fmt.Errorf("tx[%s]: %w", tx, ErrDuplicateTx)
		}
		seen[tx.ID] = struct{}{}

		if err := validateTransaction(ledger, tx); err != nil {
			return err
		}
	}

	if block.RewardTx != nil {
		reward := block.RewardTx
		if !reward.IsReward() {
			return ErrRewardInvalid
		}

		limit := database.MiningReward.Add(block.TransactionFeeTotal())
		if reward.TotalOutput().GreaterThan(limit) {
			return fmt.Errorf("%w: reward %s, limit %s", ErrRewardExceeded, reward.TotalOutput(), limit)
		}
	}

	return nil
}

// short returns a shortened version of a block id for logging.
func short(id string) string {
	const size = 16
	if len(id) <= size {
		return id
	}
	return id[len(id)-size:]
}
