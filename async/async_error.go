package async

// AsyncError is a future holding the error returned by some asynchronous work.
// The producer calls SetValue exactly once; the owner polls with TryGetValue.
type AsyncError struct {
	errCh     chan error
	val       error
	completed bool
	onSet     func()
}

func newAsyncError(onSet func()) *AsyncError {
	return &AsyncError{
		errCh: make(chan error, 1),
		onSet: onSet,
	}
}

// SetValue completes the AsyncError. Calling it twice panics.
func (e *AsyncError) SetValue(err error) {
	e.errCh <- err
	close(e.errCh)
	if e.onSet != nil {
		e.onSet()
	}
}

// TryGetValue reports whether the value has been set and, if so, returns it.
func (e *AsyncError) TryGetValue() (bool, error) {
	if e.completed {
		return true, e.val
	}
	select {
	case err := <-e.errCh:
		e.val = err
		e.completed = true
		return true, err
	default:
		return false, nil
	}
}
