package processor

import (
	"sync"
)

// ConcLimiter bounds the number of goroutines running stage work.
type ConcLimiter struct {
	*sync.WaitGroup
	Pool chan struct{}
}

func (c *ConcLimiter) Increase() {
	c.Add(1)
	c.Pool <- struct{}{}
}

func (c *ConcLimiter) Decrease() {
	<-c.Pool
	c.Done()
}

// Go blocks until a slot is free and then runs fn in a new goroutine.
func (c *ConcLimiter) Go(fn func()) {
	c.Increase()
	go func() {
		defer c.Decrease()
		fn()
	}()
}

func NewConcLimiter(cLevel int) *ConcLimiter {
	if cLevel < 1 {
		cLevel = 1
	}
	var wg sync.WaitGroup
	return &ConcLimiter{&wg, make(chan struct{}, cLevel)}
}
