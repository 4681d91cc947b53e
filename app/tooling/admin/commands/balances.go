// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
	"github.com/shopspring/decimal"
)

// ErrHelp provides context that help was given.
var ErrHelp = errors.New("provided help")

// Balances prints the balance of every identity in the ledger, or only the
// specified one.
func Balances(only string, ledger *database.Blockchain, ns *nameservice.NameService) error {
	tip := ledger.Tip()
	if tip == nil {
		return database.ErrEmptyChain
	}

	fmt.Printf("LatestBlock: %s  Blocks: %d\n\n", tip.ID, ledger.Size())

	identities := ledger.Identities()
	if only != "" {
		id, err := resolve(only, ns)
		if err != nil {
			return err
		}
		identities = []signature.Identity{id}
	}

	supply := decimal.Zero
	for _, id := range identities {
		bal := ledger.CheckBalance(id)
		supply = supply.Add(bal)
		fmt.Printf("Identity: %s  Name: %-10s  Balance: %s\n", id.Short(), ns.Lookup(id), bal)
	}

	if only == "" {
		fmt.Printf("\nSupply: %s\n", supply)
	}

	return nil
}

// resolve accepts a name from the name service or an identity.
func resolve(s string, ns *nameservice.NameService) (signature.Identity, error) {
	if id, exists := ns.Identity(s); exists {
		return id, nil
	}
	return signature.ToIdentity(s)
}
