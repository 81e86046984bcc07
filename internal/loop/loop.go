// Package loop provides the single logical thread every tree mutation and
// script execution runs on.
package loop

import "sync"

// Loop serializes work. Asynchronous directive evaluations run as goroutines
// that queue on it, so their completion order is unspecified while mutation
// stays single-threaded.
type Loop struct {
	mu sync.Mutex
}

// New creates a Loop.
func New() *Loop {
	return &Loop{}
}

// Do runs fn while holding the loop. It must not be called from inside fn.
func (l *Loop) Do(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// DoErr is Do for functions that return an error.
func (l *Loop) DoErr(fn func() error) error {
	var err error
	l.Do(func() { err = fn() })
	return err
}
