// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup for the identities of the known accounts.
package nameservice

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of identities for name lookup.
type NameService struct {
	names      map[signature.Identity]string
	identities map[string]signature.Identity
}

// New constructs a name service with the accounts found in the folder. Each
// account is a private key file named <name>.ecdsa.
func New(root string) (*NameService, error) {
	ns := NameService{
		names:      make(map[signature.Identity]string),
		identities: make(map[string]signature.Identity),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		id := signature.PublicKeyToIdentity(privateKey.PublicKey)
		name := strings.TrimSuffix(path.Base(fileName), ".ecdsa")

		ns.names[id] = name
		ns.identities[name] = id

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified identity. Unknown identities
// are returned in their short form.
func (ns *NameService) Lookup(id signature.Identity) string {
	name, exists := ns.names[id]
	if !exists {
		return id.Short()
	}
	return name
}

// Identity returns the identity registered under the name.
func (ns *NameService) Identity(name string) (signature.Identity, bool) {
	id, exists := ns.identities[name]
	return id, exists
}

// Copy returns a copy of the map of names and identities.
func (ns *NameService) Copy() map[signature.Identity]string {
	cpy := make(map[signature.Identity]string, len(ns.names))
	for id, name := range ns.names {
		cpy[id] = name
	}
	return cpy
}
