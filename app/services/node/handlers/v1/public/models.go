package public

import (
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

type balance struct {
	Identity signature.Identity `json:"identity"`
	Name     string             `json:"name"`
	Balance  decimal.Decimal    `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latest_block"`
	Uncommitted int       `json:"uncommitted"`
	Balances    []balance `json:"balances"`
}

type tx struct {
	ID         string               `json:"id"`
	Sender     signature.Identity   `json:"sender"`
	SenderName string               `json:"sender_name"`
	Receivers  []signature.Identity `json:"receivers"`
	Names      []string             `json:"receiver_names"`
	Amounts    []decimal.Decimal    `json:"amounts"`
	Fee        decimal.Decimal      `json:"fee"`
	TimeStamp  uint64               `json:"timestamp"`
	Reward     bool                 `json:"reward"`
}

type block struct {
	ID          string             `json:"id"`
	Number      int                `json:"number"`
	PrevBlockID string             `json:"prev_block_id"`
	Creator     signature.Identity `json:"creator"`
	CreatorName string             `json:"creator_name"`
	Difficulty  uint               `json:"difficulty"`
	Nonce       uint64             `json:"nonce"`
	TimeStamp   uint64             `json:"timestamp"`
	MerkleRoot  string             `json:"merkle_root"`
	Trans       []tx               `json:"trans"`
	Reward      *tx                `json:"reward,omitempty"`
}

type utxos struct {
	Identity signature.Identity `json:"identity"`
	Balance  decimal.Decimal    `json:"balance"`
	Unspent  []database.UTXO    `json:"unspent"`
}

type receiver struct {
	Identity string          `json:"identity" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

type transfer struct {
	Receivers []receiver `json:"receivers" validate:"required,min=1,dive"`
}

type status struct {
	Status string `json:"status"`
	TxID   string `json:"tx_id,omitempty"`
}
