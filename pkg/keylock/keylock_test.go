package keylock

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithShards_RoundsUpToPowerOfTwo(t *testing.T) {
	assert.Len(t, NewWithShards(1).shards, 1)
	assert.Len(t, NewWithShards(3).shards, 4)
	assert.Len(t, NewWithShards(64).shards, 64)
	assert.Len(t, NewWithShards(100).shards, 128)
	assert.Len(t, NewWithShards(0).shards, 1)
}

func TestSameKeySerializes(t *testing.T) {
	kl := New()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			kl.Lock("user-1")
			counter++
			kl.Unlock("user-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestWithLock_ReturnsCallbackError(t *testing.T) {
	kl := New()
	wantErr := errors.New("boom")

	err := kl.WithLock("user-1", func() error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// The shard is released even after an error.
	err = kl.WithLock("user-1", func() error { return nil })
	assert.NoError(t, err)
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	// One shard forces every key onto the same mutex; many shards let
	// distinct keys proceed. Exercise both to catch index bugs.
	kl := NewWithShards(256)

	keyA := "user-0"
	keyB := ""
	for i := 1; i < 1000; i++ {
		candidate := fmt.Sprintf("user-%d", i)
		if kl.index(candidate) != kl.index(keyA) {
			keyB = candidate
			break
		}
	}
	assert.NotEmpty(t, keyB)

	kl.Lock(keyA)
	done := make(chan struct{})
	go func() {
		kl.Lock(keyB)
		kl.Unlock(keyB)
		close(done)
	}()

	<-done
	kl.Unlock(keyA)
}

func TestSingleShardStillCorrect(t *testing.T) {
	kl := NewWithShards(1)

	counter := 0
	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		key := "user-a"
		if i%2 == 0 {
			key = "user-b"
		}
		go func(k string) {
			defer wg.Done()
			_ = kl.WithLock(k, func() error {
				counter++
				return nil
			})
		}(key)
	}
	wg.Wait()

	assert.Equal(t, 20, counter)
}
