package repository

import "sync"

// accountLocks hands out one mutex per account key so read-modify-write
// sequences for the same account serialize while different accounts proceed
// in parallel. Mutexes are never evicted; the working set is bounded by the
// number of distinct accounts this instance has touched.
type accountLocks struct {
	locks sync.Map // accountID -> *sync.Mutex
}

func (al *accountLocks) lock(accountID string) *sync.Mutex {
	v, _ := al.locks.LoadOrStore(accountID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}
