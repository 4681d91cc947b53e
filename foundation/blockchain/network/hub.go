// Package network provides the broadcast mediums nodes use to share blocks,
// transactions and ledgers. The Hub connects members living in the same
// process and the Client connects a node to its peers over HTTP.
package network

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
)

// Member interface represents the behavior required to receive broadcasts
// from a network.
type Member interface {
	Identity() signature.Identity
	Ledger() *database.Blockchain
	ReceiveBlock(block *database.Block) error
	ReceiveTransaction(tx database.Tx) error
	ReceiveLedger(ledger *database.Blockchain) error
}

// Hub delivers every broadcast to every member, sender included, in the
// order the members joined. Delivery is synchronous and each member receives
// its own copy of the data.
type Hub struct {
	mu        sync.RWMutex
	members   []Member
	evHandler database.EventHandler
}

// NewHub constructs an empty hub.
func NewHub(evHandler database.EventHandler) *Hub {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Hub{evHandler: ev}
}

// Join adds the member to the hub. A member with the same identity is only
// added once.
func (h *Hub) Join(m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, mbr := range h.members {
		if mbr.Identity() == m.Identity() {
			return
		}
	}

	h.members = append(h.members, m)
	h.evHandler("hub: Join: member[%s]: members[%d]", m.Identity().Short(), len(h.members))
}

// Leave removes the member with the specified identity.
func (h *Hub) Leave(id signature.Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, mbr := range h.members {
		if mbr.Identity() == id {
			h.members = append(h.members[:i], h.members[i+1:]...)
			return
		}
	}
}

// Members returns a copy of the current members.
func (h *Hub) Members() []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]Member, len(h.members))
	copy(members, h.members)
	return members
}

// BroadcastBlock delivers the block to every member. Members that reject the
// block are logged.
func (h *Hub) BroadcastBlock(block *database.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}

	for _, m := range h.Members() {
		var b database.Block
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("unmarshal block: %w", err)
		}

		if err := m.ReceiveBlock(&b); err != nil {
			h.evHandler("hub: BroadcastBlock: member[%s]: blk[%s]: REJECTED: %s", m.Identity().Short(), b.ID, err)
		}
	}

	return nil
}

// BroadcastTransaction delivers the transaction to every member.
func (h *Hub) BroadcastTransaction(tx database.Tx) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal tx: %w", err)
	}

	for _, m := range h.Members() {
		var t database.Tx
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("unmarshal tx: %w", err)
		}

		if err := m.ReceiveTransaction(t); err != nil {
			h.evHandler("hub: BroadcastTransaction: member[%s]: tx[%s]: REJECTED: %s", m.Identity().Short(), t, err)
		}
	}

	return nil
}

// BroadcastLedger offers the ledger to every member.
func (h *Hub) BroadcastLedger(ledger *database.Blockchain) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	for _, m := range h.Members() {
		var bc database.Blockchain
		if err := json.Unmarshal(data, &bc); err != nil {
			return fmt.Errorf("unmarshal ledger: %w", err)
		}

		if err := m.ReceiveLedger(&bc); err != nil {
			h.evHandler("hub: BroadcastLedger: member[%s]: REJECTED: %s", m.Identity().Short(), err)
		}
	}

	return nil
}

// RequestLedger asks the other members for their ledgers and offers the
// longest one to the requester. It reports if the requester adopted it.
func (h *Hub) RequestLedger(requester Member) (bool, error) {
	var longest *database.Blockchain
	for _, m := range h.Members() {
		if m.Identity() == requester.Identity() {
			continue
		}

		ledger := m.Ledger()
		if longest == nil || ledger.Size() > longest.Size() {
			longest = ledger
		}
	}

	if longest == nil || longest.Size() <= requester.Ledger().Size() {
		return false, nil
	}

	data, err := json.Marshal(longest)
	if err != nil {
		return false, fmt.Errorf("marshal ledger: %w", err)
	}

	var bc database.Blockchain
	if err := json.Unmarshal(data, &bc); err != nil {
		return false, fmt.Errorf("unmarshal ledger: %w", err)
	}

	if err := requester.ReceiveLedger(&bc); err != nil {
		return false, err
	}

	h.evHandler("hub: RequestLedger: member[%s]: adopted size[%d]", requester.Identity().Short(), bc.Size())

	return true, nil
}
