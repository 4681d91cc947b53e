package commands

import (
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
)

// Transactions prints the transactions of the ledger block by block. With
// an identity only the transactions it sends or receives are printed.
func Transactions(only string, ledger *database.Blockchain, ns *nameservice.NameService) error {
	var filter string
	if only != "" {
		id, err := resolve(only, ns)
		if err != nil {
			return err
		}
		filter = string(id)
	}

	for i, block := range ledger.Blocks() {
		fmt.Printf("Block: %d  ID: %s  Creator: %s\n", i+1, block.ID, ns.Lookup(block.Header.Creator))

		for _, tx := range block.Trans {
			if filter != "" && !touches(tx, filter) {
				continue
			}

			fmt.Printf("  Tx: %s  From: %s  Inputs: %s  Amount: %s\n", tx, ns.Lookup(tx.Sender), tx.TotalInput(), tx.TotalAmount())
			for j, rcv := range tx.Receivers {
				fmt.Printf("    To: %s  Amount: %s\n", ns.Lookup(rcv), tx.Amounts[j])
			}
		}

		if block.RewardTx != nil && (filter == "" || string(block.Header.Creator) == filter) {
			fmt.Printf("  Reward: %s  To: %s\n", block.RewardTx.TotalOutput(), ns.Lookup(block.Header.Creator))
		}
	}

	return nil
}

// Validate replays every stored block, checking the links, proof of work
// and signatures of the chain.
func Validate(store database.Storage, ev database.EventHandler) error {
	ledger, err := database.Load(store, ev)
	if err != nil {
		return err
	}

	if ledger.Size() == 0 {
		return database.ErrEmptyChain
	}

	fmt.Printf("Ledger is valid: blocks[%d] tip[%s]\n", ledger.Size(), ledger.Tip().ID)

	return nil
}

func touches(tx database.Tx, id string) bool {
	if string(tx.Sender) == id {
		return true
	}
	for _, rcv := range tx.Receivers {
		if string(rcv) == id {
			return true
		}
	}
	return false
}
