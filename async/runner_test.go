package async

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Three writers, success once two of them acknowledge.
func storeValue(writes []func() error) error {
	runner := NewRunner()
	successful, returned := 0, 0
	cb := func(err error) {
		if err == nil {
			successful++
		}
		returned++
	}
	for _, w := range writes {
		runner.RunAsync(w, cb)
	}
	for successful < 2 && returned < len(writes) {
		<-runner.Ready()
		runner.ProcessMessages()
	}
	if successful >= 2 {
		return nil
	}
	return errors.New("could not durably store value")
}

func Test_RunnerQuorum(t *testing.T) {
	ok := func() error { return nil }
	bad := func() error { return errors.New("replica down") }

	assert.NoError(t, storeValue([]func() error{ok, bad, ok}))
	assert.Error(t, storeValue([]func() error{bad, bad, ok}))
}

func Test_RunnerCallbacksOnCaller(t *testing.T) {
	runner := NewRunner()
	var inFlight int32
	release := make(chan struct{})
	runner.RunAsync(func() error {
		atomic.AddInt32(&inFlight, 1)
		<-release
		return nil
	}, func(err error) {
		assert.NoError(t, err)
	})
	assert.Equal(t, 1, runner.NumRunning())
	close(release)

	deadline := time.After(5 * time.Second)
	for runner.NumRunning() > 0 {
		select {
		case <-runner.Ready():
			runner.ProcessMessages()
		case <-deadline:
			t.Fatal("callback never ran")
		}
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&inFlight))
}
