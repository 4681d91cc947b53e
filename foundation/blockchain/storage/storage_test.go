package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/storage"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestOpen(t *testing.T) {
	tt := []struct {
		kind    string
		success bool
	}{
		{kind: storage.KindDisk, success: true},
		{kind: storage.KindLevelDB, success: true},
		{kind: storage.KindMemory, success: true},
		{kind: "tape", success: false},
	}

	t.Log("Given the need to open storage by name.")
	{
		for testID, test := range tt {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen opening %q storage.", testID, test.kind)
				{
					s, err := storage.Open(test.kind, filepath.Join(t.TempDir(), "blocks"))
					if (err == nil) != test.success {
						t.Fatalf("\t%s\tTest %d:\tShould get the expected result: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected result.", success, testID)

					if s != nil {
						if err := s.Close(); err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould close the storage: %v", failed, testID, err)
						}
					}
				}
			}

			t.Run(test.kind, tf)
		}
	}
}
