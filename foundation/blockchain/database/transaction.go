package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Set of errors returned when preparing and signing transactions.
var (
	ErrAmountsMismatch   = errors.New("receivers and amounts are not the same length")
	ErrInsufficientFunds = errors.New("inputs can't cover the amounts and the transaction fee")
	ErrTxSigned          = errors.New("transaction is already signed")
	ErrTxNotSigned       = errors.New("transaction is not signed")
	ErrNotSender         = errors.New("private key does not belong to the sender")
	ErrTxIDMismatch      = errors.New("transaction id does not match its content")
)

// =============================================================================

// Tx represents a transfer of funds from the sender to one or more receivers.
// The inputs are the UTXOs being spent, the outputs are the UTXOs paid to the
// receivers plus the change owed back to the sender. The transaction fee is
// not emitted as an output, it is burned from the sender and minted again in
// the reward transaction of the block that includes this transaction.
type Tx struct {
	ID        string               `json:"id"`
	Sender    signature.Identity   `json:"sender"`
	Receivers []signature.Identity `json:"receivers" validate:"required,min=1"`
	Amounts   []decimal.Decimal    `json:"amounts" validate:"required,min=1"`
	TimeStamp uint64               `json:"timestamp"`
	Sequence  uint64               `json:"sequence"`
	Inputs    []UTXO               `json:"inputs"`
	Outputs   []UTXO               `json:"outputs"`
	Signature string               `json:"signature"`
	Signed    bool                 `json:"signed"`
}

// NewTx constructs a new unsigned transaction spending the specified inputs.
func NewTx(sender signature.Identity, receivers []signature.Identity, amounts []decimal.Decimal, inputs []UTXO) Tx {
	tx := Tx{
		Sender:    sender,
		Receivers: receivers,
		Amounts:   amounts,
		TimeStamp: now(),
		Sequence:  nextSequence(),
		Inputs:    inputs,
	}
	tx.ID = signature.Hash(tx.message())

	return tx
}

// NewRewardTx constructs the transaction that pays the block creator. It
// has no inputs and a single output marked as a mining reward.
func NewRewardTx(creator signature.Identity, amount decimal.Decimal) Tx {
	tx := NewTx(creator, []signature.Identity{creator}, []decimal.Decimal{amount}, nil)
	tx.Outputs = []UTXO{NewRewardUTXO(tx.ID, creator, creator, amount)}

	return tx
}

// PrepareOutputs constructs the outputs for the transaction. There is one
// output per receiver and a final change output back to the sender. Any
// previously prepared outputs are replaced.
func (tx *Tx) PrepareOutputs() error {
	if tx.Signed {
		return ErrTxSigned
	}

	if len(tx.Receivers) != len(tx.Amounts) {
		return ErrAmountsMismatch
	}

	available := tx.TotalInput()
	required := tx.TotalAmount().Add(TransactionFee)
	if available.LessThan(required) {
		return fmt.Errorf("%w: available %s, required %s", ErrInsufficientFunds, available, required)
	}

	outputs := make([]UTXO, 0, len(tx.Receivers)+1)
	for i, receiver := range tx.Receivers {
		outputs = append(outputs, NewUTXO(tx.ID, tx.Sender, receiver, tx.Amounts[i]))
	}

	change := available.Sub(required)
	outputs = append(outputs, NewUTXO(tx.ID, tx.Sender, tx.Sender, change))

	tx.Outputs = outputs

	return nil
}

// Sign uses the specified private key to sign the transaction. Signing a
// transaction that is already signed does nothing.
func (tx *Tx) Sign(privateKey *ecdsa.PrivateKey) error {
	if tx.Signed {
		return nil
	}

	if signature.PublicKeyToIdentity(privateKey.PublicKey) != tx.Sender {
		return ErrNotSender
	}

	// CORE NOTE: The signature is over the same message used to construct the
	// id. The outputs are not part of that message.

	sig, err := signature.Sign(tx.message(), privateKey)
	if err != nil {
		return err
	}

	tx.Signature = sig
	tx.Signed = true

	return nil
}

// VerifySignature re-derives the message for the transaction and checks the
// signature belongs to the sender.
func (tx Tx) VerifySignature() error {
	if !tx.Signed || tx.Signature == "" {
		return ErrTxNotSigned
	}

	message := tx.message()
	if signature.Hash(message) != tx.ID {
		return ErrTxIDMismatch
	}

	if err := signature.Verify(tx.Sender, tx.Signature, message); err != nil {
		return err
	}

	return nil
}

// TotalInput returns the sum of the inputs being spent.
func (tx Tx) TotalInput() decimal.Decimal {
	return SumAmounts(tx.Inputs)
}

// TotalOutput returns the sum of the outputs including the change.
func (tx Tx) TotalOutput() decimal.Decimal {
	return SumAmounts(tx.Outputs)
}

// TotalAmount returns the sum of the amounts paid to the receivers.
func (tx Tx) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range tx.Amounts {
		total = total.Add(amount)
	}

	return total
}

// IsReward reports if this transaction has the shape of a reward transaction.
func (tx Tx) IsReward() bool {
	return len(tx.Inputs) == 0 && len(tx.Outputs) == 1 && tx.Outputs[0].IsMiningReward()
}

// Hash implements the merkle Hashable interface. The id of the transaction
// is already a digest of its content.
func (tx Tx) Hash() (string, error) {
	return tx.ID, nil
}

// Equals implements the merkle Hashable interface.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.ID == otherTx.ID
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%d:%s", tx.Sender.Short(), tx.Sequence, tx.TotalAmount())
}

// message constructs the canonical message for the transaction, made up of
// the sender, timestamp, sequence, receiver and amount pairs and input ids.
func (tx Tx) message() string {
	var b strings.Builder

	b.WriteString(string(tx.Sender))
	b.WriteString(strconv.FormatUint(tx.TimeStamp, 16))
	b.WriteString(strconv.FormatUint(tx.Sequence, 10))

	for i, receiver := range tx.Receivers {
		b.WriteString(string(receiver))
		if i < len(tx.Amounts) {
			b.WriteString(tx.Amounts[i].String())
		}
	}

	for _, input := range tx.Inputs {
		b.WriteString(input.ID)
	}

	return b.String()
}
