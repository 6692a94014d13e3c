// Package errors provides panic recovery for the goroutine boundaries
// of the scheduler: watcher callbacks, janitor jobs, and fetch pool
// workers.
package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error recovered from a panic
type PanicError struct {
	Value      interface{}
	Stacktrace string
}

// Error implements the error interface
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.Value)
}

// Guard runs fn and converts a panic inside it into an error
func Guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Value:      r,
				Stacktrace: string(debug.Stack()),
			}
		}
	}()
	fn()
	return nil
}
