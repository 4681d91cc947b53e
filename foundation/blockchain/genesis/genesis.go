// Package genesis maintains access to the genesis file and constructs the
// genesis block from it.
package genesis

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time         `json:"date"`
	Creator       string            `json:"creator"`         // Account name of the miner that creates the genesis block.
	Difficulty    uint              `json:"difficulty"`      // How difficult it needs to be to solve the work problem.
	TransPerBlock int               `json:"trans_per_block"` // The maximum number of transactions that can be in a block.
	Endowments    []decimal.Decimal `json:"endowments"`      // Amounts spent into existence by the genesis transaction.
	SelfTransfer  decimal.Decimal   `json:"self_transfer"`   // Amount the genesis transaction pays to its creator.
	SignInBonus   decimal.Decimal   `json:"sign_in_bonus"`   // Amount granted once to each new identity.
	BonusLimit    int               `json:"bonus_limit"`     // Maximum number of identities granted the bonus.
}

// Default returns the genesis settings used when no file is provided.
func Default() Genesis {
	return Genesis{
		Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Creator:       "genesis",
		Difficulty:    database.DefaultDifficulty,
		TransPerBlock: database.MaxTransPerBlock,
		Endowments:    []decimal.Decimal{decimal.NewFromInt(10001), decimal.NewFromInt(10000)},
		SelfTransfer:  decimal.NewFromInt(10000),
		SignInBonus:   decimal.NewFromInt(1000),
		BonusLimit:    1000,
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if err := genesis.validate(); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}

// validate checks the settings can produce a genesis block.
func (g Genesis) validate() error {
	if len(g.Endowments) == 0 {
		return errors.New("no endowments")
	}

	total := decimal.Zero
	for _, e := range g.Endowments {
		if !e.IsPositive() {
			return fmt.Errorf("endowment %s must be positive", e)
		}
		total = total.Add(e)
	}

	if total.LessThan(g.SelfTransfer.Add(database.TransactionFee)) {
		return fmt.Errorf("endowments %s can't cover self transfer %s", total, g.SelfTransfer)
	}

	return nil
}

// =============================================================================

// Block constructs, mines and signs the genesis block. The single genesis
// transaction spends the endowments into a self transfer so the creator
// owns the whole starting supply.
func Block(ctx context.Context, g Genesis, privateKey *ecdsa.PrivateKey, ev database.EventHandler) (*database.Block, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	creator := signature.PublicKeyToIdentity(privateKey.PublicKey)

	// The endowments are not produced by any block so they are never
	// counted as spent.
	inputs := make([]database.UTXO, len(g.Endowments))
	for i, amount := range g.Endowments {
		inputs[i] = database.NewUTXO("", creator, creator, amount)
	}

	tx := database.NewTx(creator, []signature.Identity{creator}, []decimal.Decimal{g.SelfTransfer}, inputs)
	if err := tx.PrepareOutputs(); err != nil {
		return nil, fmt.Errorf("prepare genesis tx: %w", err)
	}

	if err := tx.Sign(privateKey); err != nil {
		return nil, fmt.Errorf("sign genesis tx: %w", err)
	}

	block := database.NewBlock(signature.ZeroHash, g.Difficulty, creator, g.TransPerBlock)
	if err := block.AddTransaction(tx, creator); err != nil {
		return nil, fmt.Errorf("add genesis tx: %w", err)
	}

	if err := block.Mine(ctx, creator, ev); err != nil {
		return nil, fmt.Errorf("mine genesis block: %w", err)
	}

	sig, err := signature.Sign(block.ID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign genesis block: %w", err)
	}

	if err := block.Sign(creator, sig); err != nil {
		return nil, fmt.Errorf("sign genesis block: %w", err)
	}

	return block, nil
}
