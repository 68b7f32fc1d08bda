// Package keylock provides a sharded mutex keyed by string. Operations on
// the same key serialize; operations on different keys proceed in parallel
// (modulo shard collisions). Used for the per-user critical section around
// reward application - never a single global lock over all users.
// No external dependencies - uses only standard library.
package keylock

import (
	"hash/fnv"
	"sync"
)

// DefaultShards is the shard count used by New.
// Power of two so the hash maps to a shard with a mask.
const DefaultShards = 256

// KeyLock is a fixed array of mutexes indexed by key hash.
// Two distinct keys may share a shard; that only costs parallelism,
// never correctness.
type KeyLock struct {
	shards []sync.Mutex
	mask   uint32
}

// New creates a KeyLock with DefaultShards shards.
func New() *KeyLock {
	return NewWithShards(DefaultShards)
}

// NewWithShards creates a KeyLock with the given shard count,
// rounded up to the next power of two.
func NewWithShards(n int) *KeyLock {
	if n < 1 {
		n = 1
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return &KeyLock{
		shards: make([]sync.Mutex, size),
		mask:   uint32(size - 1),
	}
}

// Lock acquires the shard for the key.
func (k *KeyLock) Lock(key string) {
	k.shards[k.index(key)].Lock()
}

// Unlock releases the shard for the key.
func (k *KeyLock) Unlock(key string) {
	k.shards[k.index(key)].Unlock()
}

// WithLock runs fn while holding the key's shard.
func (k *KeyLock) WithLock(key string, fn func() error) error {
	k.Lock(key)
	defer k.Unlock(key)
	return fn()
}

func (k *KeyLock) index(key string) uint32 {
	h := fnv.New32a()
	// fnv.Write never returns an error.
	_, _ = h.Write([]byte(key))
	return h.Sum32() & k.mask
}
