package database

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// sequence is the process wide counter used to break ties between values
// created within the same millisecond.
var sequence atomic.Uint64

// nextSequence returns the next value of the global sequence.
func nextSequence() uint64 {
	return sequence.Add(1)
}

// now returns the current time as unix milliseconds.
func now() uint64 {
	return uint64(time.Now().UTC().UnixMilli())
}

// =============================================================================

// UTXO represents an unspent transaction output. It is an indivisible amount
// of funds owed to the receiver. A UTXO is never changed once constructed,
// whether it has been spent is derived by replaying the blockchain.
type UTXO struct {
	ID         string             `json:"id"`
	ParentTxID string             `json:"parent_tx_id"`
	Sender     signature.Identity `json:"sender"`
	Receiver   signature.Identity `json:"receiver"`
	Amount     decimal.Decimal    `json:"amount"`
	TimeStamp  uint64             `json:"timestamp"`
	Sequence   uint64             `json:"sequence"`
	Reward     bool               `json:"reward"`
}

// NewUTXO constructs a UTXO produced by the specified transaction.
func NewUTXO(parentTxID string, sender signature.Identity, receiver signature.Identity, amount decimal.Decimal) UTXO {
	u := UTXO{
		ParentTxID: parentTxID,
		Sender:     sender,
		Receiver:   receiver,
		Amount:     amount,
		TimeStamp:  now(),
		Sequence:   nextSequence(),
	}
	u.ID = u.computeID()

	return u
}

// NewRewardUTXO constructs a UTXO that is minted as the reward for mining
// a block.
func NewRewardUTXO(parentTxID string, sender signature.Identity, receiver signature.Identity, amount decimal.Decimal) UTXO {
	u := NewUTXO(parentTxID, sender, receiver, amount)
	u.Reward = true

	return u
}

// IsMiningReward reports if this UTXO was minted as a mining reward.
func (u UTXO) IsMiningReward() bool {
	return u.Reward
}

// Equals reports if the two UTXOs are the same output.
func (u UTXO) Equals(other UTXO) bool {
	return u.ID == other.ID
}

// String implements the fmt.Stringer interface for logging.
func (u UTXO) String() string {
	return fmt.Sprintf("%s:%s", u.Receiver.Short(), u.Amount)
}

// computeID hashes the content of the UTXO that makes it unique.
func (u UTXO) computeID() string {
	message := u.ParentTxID +
		string(u.Sender) +
		string(u.Receiver) +
		u.Amount.String() +
		strconv.FormatUint(u.TimeStamp, 16) +
		strconv.FormatUint(u.Sequence, 16)

	return signature.Hash(message)
}

// SumAmounts adds the amounts of the specified UTXOs.
func SumAmounts(utxos []UTXO) decimal.Decimal {
	total := decimal.Zero
	for _, u := range utxos {
		total = total.Add(u.Amount)
	}

	return total
}
