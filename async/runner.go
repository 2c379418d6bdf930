// Package async runs blocking work on goroutines and delivers the results back to a
// single owning goroutine as callbacks, so that the owner's state never needs a lock.
package async

// Runner spawns a goroutine per function and queues its callback in a Mailbox.
// The owning loop calls ProcessMessages to run completed callbacks.
//
//	runner := NewRunner()
//	runner.RunAsync(func() error { return journal.write(unit) }, func(err error) {
//	  // runs on the owner's goroutine
//	})
//	...
//	select {
//	case <-runner.Ready():
//	  runner.ProcessMessages()
//	}
type Runner struct {
	bx *Mailbox
}

func NewRunner() Runner {
	return Runner{
		bx: NewMailbox(),
	}
}

// NumRunning counts functions whose callbacks haven't been processed yet.
func (r *Runner) NumRunning() int {
	return r.bx.Count()
}

// Ready signals that at least one function completed.
func (r *Runner) Ready() <-chan struct{} {
	return r.bx.Ready()
}

// RunAsync runs f in a new goroutine. cb is invoked with f's result by a later
// ProcessMessages call.
func (r *Runner) RunAsync(f func() error, cb AsyncErrorResponseHandler) {
	asyncErr := r.bx.NewAsyncError(cb)
	go func(rsp *AsyncError) {
		rsp.SetValue(f())
	}(asyncErr)
}

// ProcessMessages invokes the callbacks of all completed functions on the calling
// goroutine and returns how many ran.
func (r *Runner) ProcessMessages() int {
	return r.bx.ProcessMessages()
}
