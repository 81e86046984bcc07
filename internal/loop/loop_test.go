package loop_test

import (
	"sync"
	"testing"

	"github.com/aretw0/arbor/internal/loop"
	"github.com/stretchr/testify/assert"
)

func TestLoop_SerializesWork(t *testing.T) {
	l := loop.New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Do(func() {
				v := counter
				counter = v + 1
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}

func TestLoop_DoErr(t *testing.T) {
	l := loop.New()
	assert.ErrorIs(t, l.DoErr(func() error { return assert.AnError }), assert.AnError)
	assert.NoError(t, l.DoErr(func() error { return nil }))
}
