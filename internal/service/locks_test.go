package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLocksSerializeWithinOwner(t *testing.T) {
	locks := NewUserLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("alice")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestUserLocksIndependentAcrossOwners(t *testing.T) {
	locks := NewUserLocks()

	// Лок alice удерживается; bob не должен на нём блокироваться.
	unlockAlice := locks.Lock("alice")
	defer unlockAlice()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("bob")
		unlock()
		close(done)
	}()

	<-done
}
