package services

import (
	"context"
	"sync"
	"testing"
)

func TestKeyedLocksSerializesSameKey(t *testing.T) {
	locks := NewKeyedLocks(nil)
	ctx := context.Background()

	const workers = 20
	const iterations = 50

	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				release, err := locks.Acquire(ctx, "usage:op-1")
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				counter++
				release()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Errorf("counter = %d, want %d (lost updates without mutual exclusion)", counter, workers*iterations)
	}
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := NewKeyedLocks(nil)
	ctx := context.Background()

	releaseA, err := locks.Acquire(ctx, "docid:deliveries:05032024")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer releaseA()

	// A different key must not block behind the held one.
	done := make(chan struct{})
	go func() {
		releaseB, err := locks.Acquire(ctx, "docid:invoices:05032024")
		if err != nil {
			t.Errorf("Acquire failed: %v", err)
		} else {
			releaseB()
		}
		close(done)
	}()
	<-done
}
