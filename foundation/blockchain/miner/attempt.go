package miner

import (
	"sync"
)

// State represents where a mining attempt is in its life cycle.
type State int

// Set of states a mining attempt moves through. An attempt can be aborted
// from any state before it is announced.
const (
	StateIdle State = iota
	StateAssembling
	StateMined
	StateSigned
	StateAnnounced
	StateAborted
)

var stateNames = map[State]string{
	StateIdle:       "IDLE",
	StateAssembling: "ASSEMBLING",
	StateMined:      "MINED",
	StateSigned:     "SIGNED",
	StateAnnounced:  "ANNOUNCED",
	StateAborted:    "ABORTED",
}

// String implements the fmt.Stringer interface.
func (s State) String() string {
	if name, exists := stateNames[s]; exists {
		return name
	}
	return "UNKNOWN"
}

// next lists the legal transitions.
var next = map[State][]State{
	StateIdle:       {StateAssembling},
	StateAssembling: {StateMined, StateAborted},
	StateMined:      {StateSigned, StateAborted},
	StateSigned:     {StateAnnounced, StateAborted},
	StateAnnounced:  {StateAssembling},
	StateAborted:    {StateAssembling},
}

// =============================================================================

// Status is a point in time view of the current mining attempt.
type Status struct {
	State   string `json:"state"`
	BlockID string `json:"block_id"`
	Txs     int    `json:"txs"`
}

// attempt tracks the state of the mining attempt that is in progress.
type attempt struct {
	mu      sync.RWMutex
	state   State
	blockID string
	txs     int
}

// move changes the state if the transition is legal. It reports if the
// transition happened.
func (a *attempt) move(to State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range next[a.state] {
		if s == to {
			a.state = to
			return true
		}
	}

	return false
}

// track records the block that is being worked on.
func (a *attempt) track(blockID string, txs int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.blockID = blockID
	a.txs = txs
}

func (a *attempt) status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Status{
		State:   a.state.String(),
		BlockID: a.blockID,
		Txs:     a.txs,
	}
}
