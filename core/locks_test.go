package core

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	locks := newKeyedMutex()
	key := addr(0x01)
	release := locks.Lock(key)

	acquired := make(chan struct{})
	go func() {
		r := locks.Lock(key)
		close(acquired)
		r()
	}()
	select {
	case <-acquired:
		t.Fatalf("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("waiter never acquired the key")
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locks := newKeyedMutex()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release := locks.Lock(addr(byte(i)))
			release()
		}(i)
	}
	wg.Wait()
	if n := locks.size(); n != 0 {
		t.Fatalf("expected lock table to drain, got %d", n)
	}
}
