package www

import (
	"context"
	"sync"

	"steptracker/bridge"
)

type callResult struct {
	value interface{}
	err   *bridge.Error
}

// pendingCall is one HTTP request waiting on a bridge operation.
type pendingCall struct {
	once sync.Once
	done chan callResult
}

func newPendingCall() *pendingCall {
	return &pendingCall{done: make(chan callResult, 1)}
}

func (c *pendingCall) Resolve(value interface{}) {
	c.once.Do(func() { c.done <- callResult{value: value} })
}

func (c *pendingCall) Reject(code, message string, err error) {
	c.once.Do(func() {
		c.done <- callResult{err: &bridge.Error{Code: code, Message: message, Err: err}}
	})
}

// wait blocks until the call settles or ctx ends. A rejection is returned
// as a *bridge.Error.
func (c *pendingCall) wait(ctx context.Context) (interface{}, error) {
	select {
	case res := <-c.done:
		if res.err != nil {
			return nil, res.err
		}
		return res.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
