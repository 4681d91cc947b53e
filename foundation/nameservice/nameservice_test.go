package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestNameService(t *testing.T) {
	t.Log("Given the need to look up account names.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a folder of key files.", testID)
		{
			root := t.TempDir()

			pk, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a key: %v", failed, testID, err)
			}
			if err := crypto.SaveECDSA(filepath.Join(root, "miner1.ecdsa"), pk); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to save the key: %v", failed, testID, err)
			}
			id := signature.PublicKeyToIdentity(pk.PublicKey)

			ns, err := nameservice.New(root)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the folder: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to load the folder.", success, testID)

			if name := ns.Lookup(id); name != "miner1" {
				t.Fatalf("\t%s\tTest %d:\tShould find the name: got %s", failed, testID, name)
			}
			t.Logf("\t%s\tTest %d:\tShould find the name.", success, testID)

			if got, ok := ns.Identity("miner1"); !ok || got != id {
				t.Fatalf("\t%s\tTest %d:\tShould find the identity.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould find the identity.", success, testID)

			unknown := signature.Identity("0x04abcdef0123456789abcdef")
			if name := ns.Lookup(unknown); name != unknown.Short() {
				t.Fatalf("\t%s\tTest %d:\tShould shorten unknown identities: got %s", failed, testID, name)
			}
			t.Logf("\t%s\tTest %d:\tShould shorten unknown identities.", success, testID)

			if len(ns.Copy()) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould copy one entry.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould copy one entry.", success, testID)
		}
	}
}
