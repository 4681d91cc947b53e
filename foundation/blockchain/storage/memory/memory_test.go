package memory_test

import (
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestMemory(t *testing.T) {
	t.Log("Given the need to store blocks in memory.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a set of blocks.", testID)
		{
			d, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open storage: %v", failed, testID, err)
			}
			defer d.Close()
			t.Logf("\t%s\tTest %d:\tShould be able to open storage.", success, testID)

			ids := []string{"b1", "b2", "b3"}
			for i, id := range ids {
				block := database.NewBlock(signature.ZeroHash, 1, "", 0)
				block.ID = id
				if err := database.Write(d, uint64(i+1), block); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write block %d: %v", failed, testID, i+1, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to write blocks.", success, testID)

			if err := database.Write(d, 5, database.NewBlock(signature.ZeroHash, 1, "", 0)); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a block out of order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a block out of order.", success, testID)

			blockData, err := d.GetBlock(2)
			if err != nil || blockData.Block.ID != "b2" {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read block 2: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to read block 2.", success, testID)

			var got []string
			iter := d.ForEach()
			for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to iterate: %v", failed, testID, err)
				}
				got = append(got, blockData.Block.ID)
			}
			if len(got) != len(ids) || got[0] != "b1" || got[2] != "b3" {
				t.Fatalf("\t%s\tTest %d:\tShould iterate in order: got %v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould iterate in order.", success, testID)

			if err := d.Reset(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reset: %v", failed, testID, err)
			}
			if _, err := d.GetBlock(1); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould have no blocks after reset.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have no blocks after reset.", success, testID)
		}
	}
}
