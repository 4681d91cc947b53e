package miner

import (
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// SignInBonus grants the sign-in bonus to a new identity. Only the genesis
// creator grants the bonus, once per identity and up to the user limit. The
// bonus is a normal transfer placed in this miner's mempool.
func (m *Miner) SignInBonus(id signature.Identity) (database.Tx, error) {
	if m.Ledger().GenesisCreator() != m.Identity() {
		return database.Tx{}, ErrNotGenesis
	}

	if !m.bonusAmount.IsPositive() || m.bonusLimit <= 0 {
		return database.Tx{}, ErrBonusDisabled
	}

	if _, err := id.PublicKey(); err != nil {
		return database.Tx{}, err
	}

	m.bonusMu.Lock()
	defer m.bonusMu.Unlock()

	if _, exists := m.bonus[id]; exists || id == m.Identity() {
		return database.Tx{}, ErrBonusGranted
	}

	if len(m.bonus) >= m.bonusLimit {
		return database.Tx{}, ErrBonusLimit
	}

	tx, err := m.SendTransfer([]signature.Identity{id}, []decimal.Decimal{m.bonusAmount})
	if err != nil {
		return database.Tx{}, err
	}

	m.bonus[id] = struct{}{}

	m.evHandler("miner: SignInBonus: %s: granted[%s]: amount[%s]: users[%d]", m.Name(), m.LookupName(id), m.bonusAmount, len(m.bonus))

	return tx, nil
}
