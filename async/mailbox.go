package async

// Mailbox tracks in-flight AsyncErrors together with the callback to run once each
// completes. Callbacks run inside ProcessMessages, on whichever goroutine calls it,
// one at a time. A Mailbox must only be used from that one goroutine; only
// AsyncError.SetValue may be called from elsewhere.
//
//	bx := NewMailbox()
//	go func(rsp *AsyncError) {
//	  rsp.SetValue(store.Commit(h))
//	}(bx.NewAsyncError(func(err error) { ... }))
//
//	for bx.Count() > 0 {
//	  <-bx.Ready()
//	  bx.ProcessMessages()
//	}
type Mailbox struct {
	msgs  []message
	ready chan struct{}
}

// AsyncErrorResponseHandler is invoked with the completed value.
type AsyncErrorResponseHandler func(error)

type message struct {
	Err      *AsyncError
	callback AsyncErrorResponseHandler
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		msgs:  make([]message, 0),
		ready: make(chan struct{}, 1),
	}
}

// Count is the number of messages whose callback hasn't run yet.
func (bx *Mailbox) Count() int {
	return len(bx.msgs)
}

// Ready receives a value whenever at least one AsyncError completed since the last
// receive. Wakeups coalesce.
func (bx *Mailbox) Ready() <-chan struct{} {
	return bx.ready
}

// NewAsyncError registers cb to run on the first ProcessMessages after the returned
// AsyncError is completed.
func (bx *Mailbox) NewAsyncError(cb AsyncErrorResponseHandler) *AsyncError {
	msg := message{Err: newAsyncError(bx.notify), callback: cb}
	bx.msgs = append(bx.msgs, msg)
	return msg.Err
}

func (bx *Mailbox) notify() {
	select {
	case bx.ready <- struct{}{}:
	default:
	}
}

// ProcessMessages runs the callback of every completed message, in registration
// order, and forgets them. It returns the number of callbacks run.
func (bx *Mailbox) ProcessMessages() int {
	var pending []message
	ran := 0
	for _, msg := range bx.msgs {
		if ok, err := msg.Err.TryGetValue(); ok {
			msg.callback(err)
			ran++
		} else {
			pending = append(pending, msg)
		}
	}
	bx.msgs = pending
	return ran
}
