package batch

import "fmt"

// PanicError reports a panic raised by a ProcessFunc.
type PanicError struct {
	Queue string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("batch queue %s: process panicked: %v", e.Queue, e.Value)
}
