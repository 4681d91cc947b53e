package events_test

import (
	"testing"

	"github.com/ardanlabs/utxochain/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestEvents(t *testing.T) {
	t.Log("Given the need to fan out events to listeners.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling filtered and unfiltered listeners.", testID)
		{
			evts := events.New()

			allID, all := evts.Acquire()
			_, miner := evts.Acquire("miner:")

			if evts.Count() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould have two listeners: got %d", failed, testID, evts.Count())
			}
			t.Logf("\t%s\tTest %d:\tShould have two listeners.", success, testID)

			evts.Send("account: ReceiveBlock: accepted")
			evts.Send("miner: MineNextBlock: announced")

			if len(all) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould deliver every message: got %d", failed, testID, len(all))
			}
			t.Logf("\t%s\tTest %d:\tShould deliver every message.", success, testID)

			if len(miner) != 1 || <-miner != "miner: MineNextBlock: announced" {
				t.Fatalf("\t%s\tTest %d:\tShould deliver only matching messages.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould deliver only matching messages.", success, testID)

			if err := evts.Release(allID); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to release: %v", failed, testID, err)
			}
			if err := evts.Release(allID); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not release twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to release once.", success, testID)

			evts.Shutdown()
			if _, open := <-miner; open {
				t.Fatalf("\t%s\tTest %d:\tShould close channels on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close channels on shutdown.", success, testID)
		}
	}
}
