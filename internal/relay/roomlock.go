package relay

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// roomLocks serializes the precondition-through-settlement window per room.
// Two concurrent votes for the same room could otherwise both pass the 2x
// balance check against the same stale balance; taking the broader lock keeps
// the non-negative-balance invariant without slowing unrelated rooms.
type roomLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[common.Address]*sync.Mutex)}
}

// acquire locks the room and returns its unlock func.
func (r *roomLocks) acquire(room common.Address) func() {
	r.mu.Lock()
	l, ok := r.locks[room]
	if !ok {
		l = &sync.Mutex{}
		r.locks[room] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
